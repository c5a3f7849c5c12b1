package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte cache with per-entry TTL
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key for an item in a namespace, e.g. Key("locale", "en-US")
func Key(namespace, id string) string {
	hash := sha256.Sum256([]byte(id))
	return "cslbridge:" + namespace + ":v1:" + hex.EncodeToString(hash[:])
}
