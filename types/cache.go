package types

import (
	"time"
)

const (
	UserContainer          = "userCache"
	PostContainer          = "postCache"
	CountContainer         = "countCache"
	AvatarContainer        = "avatarCache"
	FrequentPostsContainer = "frequentPostsCache"
	ProfileContainer       = "profileCache"
	PostMetadataContainer  = "postMetadataCache"
)

// ContainerNames lists the named containers in reporting order.
var ContainerNames = []string{
	UserContainer,
	PostContainer,
	AvatarContainer,
	ProfileContainer,
	FrequentPostsContainer,
	PostMetadataContainer,
	CountContainer,
}

type ContainerStats struct {
	Name   string        `json:"name"`
	Hits   uint64        `json:"hits"`
	Misses uint64        `json:"misses"`
	Keys   int           `json:"keys"`
	TTL    time.Duration `json:"ttl"`
}

// CacheStore is the surface the monitor and the read-through services need.
type CacheStore interface {
	LifecycleManager
	Stats() []ContainerStats
	Keys() map[string][]string
	TotalKeys() int
	Totals() (hits uint64, misses uint64)
	ClearAll()
	ClearContainers(names ...string)
	FlushExpired() int
	FlushAll()
}
