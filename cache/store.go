package cache

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

type StoreState int32

const (
	StoreStateStopped StoreState = iota
	StoreStateStarting
	StoreStateRunning
	StoreStateStopping
)

const (
	DefaultPage  = 1
	DefaultLimit = 10

	frequentPostsPrefix = "frequent_posts_"
)

// tier is what the store needs from a container regardless of its value type.
type tier interface {
	Name() string
	Keys() []string
	Len() int
	Stats() types.ContainerStats
	Flush()
	FlushExpired() int
}

var _ types.CacheStore = (*Store)(nil)

type Store struct {
	parent      context.Context
	ctx         context.Context
	cancel      context.CancelFunc
	logger      types.Logger
	clock       types.Clock
	checkPeriod time.Duration

	users         *Container[types.UserData]
	posts         *Container[bool]
	counts        *Container[int]
	avatars       *Container[string]
	frequentPosts *Container[types.PostsPage]
	profiles      *Container[types.Profile]
	metadata      *Container[types.PostMetadata]

	tiers       map[string]tier
	state       atomic.Value
	cleanupDone chan struct{}
}

func NewStore(ctx context.Context, config *types.CacheConfig, logger types.Logger, metrics types.MetricsManager, clock types.Clock) *Store {
	if clock == nil {
		clock = utils.SystemClock{}
	}

	recorder := newOperationRecorder(metrics)
	ttl := config.TTL

	s := &Store{
		parent:        ctx,
		logger:        logger,
		clock:         clock,
		checkPeriod:   config.CheckPeriod,
		users:         newContainer[types.UserData](types.UserContainer, "user_", ttl.User, clock, recorder),
		posts:         newContainer[bool](types.PostContainer, "post_", ttl.Post, clock, recorder),
		counts:        newContainer[int](types.CountContainer, "count_", ttl.Count, clock, recorder),
		avatars:       newContainer[string](types.AvatarContainer, "avatar_", ttl.Avatar, clock, recorder),
		frequentPosts: newContainer[types.PostsPage](types.FrequentPostsContainer, frequentPostsPrefix, ttl.FrequentPosts, clock, recorder),
		profiles:      newContainer[types.Profile](types.ProfileContainer, "profile_", ttl.Profile, clock, recorder),
		metadata:      newContainer[types.PostMetadata](types.PostMetadataContainer, "metadata_", ttl.PostMetadata, clock, recorder),
	}

	s.tiers = map[string]tier{
		types.UserContainer:          s.users,
		types.PostContainer:          s.posts,
		types.CountContainer:         s.counts,
		types.AvatarContainer:        s.avatars,
		types.FrequentPostsContainer: s.frequentPosts,
		types.ProfileContainer:       s.profiles,
		types.PostMetadataContainer:  s.metadata,
	}

	s.state.Store(StoreStateStopped)

	return s
}

func (s *Store) GetUserData(userID string) (types.UserData, bool) {
	return s.users.Get(userID)
}

func (s *Store) SetUserData(userID string, data types.UserData) {
	s.users.Set(userID, data)
}

// InvalidateUserData also drops the profile and avatar of the same user.
func (s *Store) InvalidateUserData(userID string) {
	s.users.Delete(userID)
	s.profiles.Delete(userID)
	s.avatars.Delete(userID)
}

func (s *Store) GetPostExists(postID string) (bool, bool) {
	return s.posts.Get(postID)
}

func (s *Store) SetPostExists(postID string, exists bool) {
	s.posts.Set(postID, exists)
}

func (s *Store) GetPostMetadata(postID string) (types.PostMetadata, bool) {
	return s.metadata.Get(postID)
}

func (s *Store) SetPostMetadata(postID string, metadata types.PostMetadata) {
	s.metadata.Set(postID, metadata)
}

func (s *Store) InvalidatePostMetadata(postID string) {
	s.metadata.Delete(postID)
}

func (s *Store) GetAvatarURL(userID string) (string, bool) {
	return s.avatars.Get(userID)
}

func (s *Store) SetAvatarURL(userID, url string) {
	s.avatars.Set(userID, url)
}

func (s *Store) InvalidateUserAvatar(userID string) {
	s.avatars.Delete(userID)
}

func (s *Store) GetUserProfile(userID string) (types.Profile, bool) {
	return s.profiles.Get(userID)
}

func (s *Store) SetUserProfile(userID string, profile types.Profile) {
	s.profiles.Set(userID, profile)
}

func (s *Store) InvalidateUserProfile(userID string) {
	s.profiles.Delete(userID)
}

func (s *Store) GetFrequentPosts(page, limit int) (types.PostsPage, bool) {
	return s.frequentPosts.Get(pageKey(page, limit))
}

func (s *Store) SetFrequentPosts(page, limit int, posts types.PostsPage) {
	s.frequentPosts.Set(pageKey(page, limit), posts)
}

// InvalidateFrequentPosts drops every cached page regardless of page size.
func (s *Store) InvalidateFrequentPosts() {
	s.frequentPosts.DeletePrefix(frequentPostsPrefix)
}

func (s *Store) GetCommentCount(postID string) (int, bool) {
	return s.counts.Get(postID)
}

func (s *Store) SetCommentCount(postID string, count int) {
	s.counts.Set(postID, count)
}

func (s *Store) InvalidatePostCount(postID string) {
	s.counts.Delete(postID)
}

func (s *Store) InvalidatePostData(postID string) {
	s.metadata.Delete(postID)
	s.counts.Delete(postID)
	s.posts.Delete(postID)
	s.InvalidateFrequentPosts()

	s.logger.Debug("Post cache invalidated", zap.String("post_id", postID))
}

func (s *Store) InvalidateUserAllData(userID string) {
	s.InvalidateUserData(userID)

	s.logger.Debug("User cache invalidated", zap.String("user_id", userID))
}

func (s *Store) Stats() []types.ContainerStats {
	stats := make([]types.ContainerStats, 0, len(types.ContainerNames))
	for _, name := range types.ContainerNames {
		stats = append(stats, s.tiers[name].Stats())
	}
	return stats
}

func (s *Store) StatsFor(name string) (types.ContainerStats, bool) {
	t, ok := s.tiers[name]
	if !ok {
		return types.ContainerStats{}, false
	}
	return t.Stats(), true
}

func (s *Store) Keys() map[string][]string {
	keys := make(map[string][]string, len(s.tiers))
	for name, t := range s.tiers {
		keys[name] = t.Keys()
	}
	return keys
}

func (s *Store) TotalKeys() int {
	total := 0
	for _, t := range s.tiers {
		total += t.Len()
	}
	return total
}

func (s *Store) Totals() (hits uint64, misses uint64) {
	for _, t := range s.tiers {
		stats := t.Stats()
		hits += stats.Hits
		misses += stats.Misses
	}
	return hits, misses
}

func (s *Store) ClearAll() {
	for _, t := range s.tiers {
		t.Flush()
	}

	s.logger.Info("All caches cleared")
}

// ClearContainers flushes the named containers and ignores unknown names.
func (s *Store) ClearContainers(names ...string) {
	for _, name := range names {
		if t, ok := s.tiers[name]; ok {
			t.Flush()
		}
	}
}

// FlushExpired sweeps entries whose TTL has elapsed and keeps the rest.
func (s *Store) FlushExpired() int {
	removed := 0
	for _, t := range s.tiers {
		removed += t.FlushExpired()
	}

	if removed > 0 {
		s.logger.Debug("Expired cache entries flushed", zap.Int("expired_entries", removed))
	}

	return removed
}

// FlushAll empties every container.
func (s *Store) FlushAll() {
	s.ClearAll()
}

func (s *Store) Start() error {
	if !s.transitionState(StoreStateStopped, StoreStateStarting) {
		s.logger.Warn("Cache store is already running")
		return types.ErrServerAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(s.parent)
	s.cleanupDone = make(chan struct{})

	if s.checkPeriod > 0 {
		go s.startCleanupRoutine(s.ctx, s.cleanupDone)
	} else {
		close(s.cleanupDone)
	}

	s.state.Store(StoreStateRunning)
	s.logger.Info("Cache store started", zap.Duration("check_period", s.checkPeriod))

	return nil
}

func (s *Store) Stop() error {
	if !s.transitionState(StoreStateRunning, StoreStateStopping) {
		s.logger.Warn("Cache store is not running")
		return types.ErrCacheIsNotRunning
	}

	defer s.state.Store(StoreStateStopped)

	s.cancel()

	select {
	case <-s.cleanupDone:
		s.logger.Debug("Cleanup routine stopped")
	case <-time.After(5 * time.Second):
		s.logger.Warn("Cleanup routine stop timeout")
	}

	s.logger.Info("Cache store stopped")
	return nil
}

func (s *Store) IsRunning() bool {
	return s.state.Load().(StoreState) == StoreStateRunning
}

func (s *Store) transitionState(from, to StoreState) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Store) startCleanupRoutine(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.checkPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Cleanup routine stopped by context")
			return
		case <-ticker.C:
			s.FlushExpired()
		}
	}
}

func pageKey(page, limit int) string {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return strconv.Itoa(page) + "_" + strconv.Itoa(limit)
}
