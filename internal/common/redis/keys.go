package redis

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	entryKeyPrefix = "entry:"
	tagKeyPrefix   = "tag:"
	pathIndexKey   = "paths"
	routeKeyPrefix = "route:"
	routeIndexKey  = "routes"
)

// KeyGenerator builds the Redis keys of the render cache index.
// Every key shares the namespace prefix so several sites can use one Redis.
type KeyGenerator struct {
	namespace string
}

// NewKeyGenerator creates a generator; an empty namespace defaults to "rc"
func NewKeyGenerator(namespace string) *KeyGenerator {
	if namespace == "" {
		namespace = "rc"
	}
	return &KeyGenerator{namespace: namespace + ":"}
}

// EntryKey returns the hash key holding one cached route.
// Format: {ns}:entry:{xxhash64(path) in base 16}
func (kg *KeyGenerator) EntryKey(path string) string {
	return kg.namespace + entryKeyPrefix + strconv.FormatUint(xxhash.Sum64String(path), 16)
}

// TagKey returns the set key listing entry keys labelled with tag
func (kg *KeyGenerator) TagKey(tag string) string {
	return kg.namespace + tagKeyPrefix + tag
}

// PathIndexKey returns the hash mapping every cached path to its entry key
func (kg *KeyGenerator) PathIndexKey() string {
	return kg.namespace + pathIndexKey
}

// RouteKey returns the set key listing entry keys rendered from a dynamic route
func (kg *KeyGenerator) RouteKey(route string) string {
	return kg.namespace + routeKeyPrefix + route
}

// RouteIndexKey returns the set of every dynamic route with cached entries
func (kg *KeyGenerator) RouteIndexKey() string {
	return kg.namespace + routeIndexKey
}
