// Package cache implements the two-tier resolution cache: a low-latency
// Redis hot tier and a durable bbolt cold tier, behind a single Manager
// with read-through promotion.
//
// Read path: tiers are consulted in order. A hit in a later tier is
// promoted asynchronously into every earlier tier with the hot TTL, so a
// subsequent identical request is served from the hot tier. Expired
// cold-tier entries are treated as absent and lazily evicted on read,
// since bbolt has no native per-key TTL.
//
// Write path: all tiers are written concurrently, best-effort. A partial
// tier failure is logged but never fails the request; resolved payloads
// are reconstructible from the providers.
//
// Key derivation is centralized in Key: inputs are normalized before
// hashing, and a forced-provider override partitions the keyspace so
// forced results never collide with fallback-chain results. Two requests
// that are semantically identical after normalization always hash to the
// same key.
//
// Consistency is deliberately weak: concurrent writers for the same key
// do not synchronize (last writer wins), and concurrent misses may each
// call providers independently. Provider calls are idempotent, so this
// avoids a distributed lock.
package cache
