package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shelfmark/bookmeta/pkg/isbn"
	"github.com/shelfmark/bookmeta/pkg/provider"
	"github.com/shelfmark/bookmeta/pkg/resolve"
)

// envelope is the success response body for single resolutions.
type envelope struct {
	Items          []provider.BookRecord `json:"items"`
	Provider       string                `json:"provider"`
	ProviderForced bool                  `json:"providerForced"`
	Cached         string                `json:"cached"`
	RequestID      string                `json:"requestId"`
}

// batchItem is one entry in the batch response map. Exactly one of
// Items and Error is present.
type batchItem struct {
	Items          []provider.BookRecord `json:"items,omitempty"`
	Provider       string                `json:"provider,omitempty"`
	ProviderForced bool                  `json:"providerForced,omitempty"`
	Error          string                `json:"error,omitempty"`
	Attempts       int                   `json:"attempts,omitempty"`
}

// writeEnvelope sends a resolved outcome with its cache headers.
func writeEnvelope(c *gin.Context, out *resolve.Outcome) {
	c.Header("X-Cache", out.CacheStatus)
	c.Header("X-Provider", out.Result.Provider)
	if out.Result.Forced {
		c.Header("X-Provider-Forced", "true")
	}

	items := out.Result.Items
	if items == nil {
		items = []provider.BookRecord{}
	}

	c.JSON(http.StatusOK, envelope{
		Items:          items,
		Provider:       out.Result.Provider,
		ProviderForced: out.Result.Forced,
		Cached:         out.CacheStatus,
		RequestID:      requestID(c),
	})
}

// writeError sends the error envelope: {error, status, requestId} plus
// any error-specific context keys.
func writeError(c *gin.Context, status int, message string, extra gin.H) {
	body := gin.H{
		"error":     message,
		"status":    status,
		"requestId": requestID(c),
	}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}

// writeResolveError maps a resolution failure onto the HTTP surface.
func writeResolveError(c *gin.Context, err error) {
	var unavailable *resolve.ProviderUnavailableError
	var allFailed *resolve.AllFailedError

	switch {
	case errors.Is(err, provider.ErrNoResults):
		writeError(c, http.StatusNotFound, "no results", nil)
	case errors.Is(err, resolve.ErrUnknownProvider):
		writeError(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, resolve.ErrBatchTooLarge):
		writeError(c, http.StatusBadRequest, err.Error(), nil)
	case isValidationError(err):
		writeError(c, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &unavailable):
		writeError(c, http.StatusServiceUnavailable, "provider unavailable", gin.H{
			"provider": unavailable.Provider,
			"cause":    unavailable.Err.Error(),
		})
	case errors.As(err, &allFailed):
		writeError(c, http.StatusServiceUnavailable, "all providers failed", gin.H{
			"providers": allFailed.Errors,
		})
	default:
		writeError(c, http.StatusInternalServerError, "internal error", nil)
	}
}

// isValidationError reports whether err is an ISBN validation failure.
func isValidationError(err error) bool {
	return errors.Is(err, isbn.ErrInvalidLength) ||
		errors.Is(err, isbn.ErrInvalidCharacter) ||
		errors.Is(err, isbn.ErrInvalidChecksum)
}
