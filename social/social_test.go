package social

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-social/cache"
	"github.com/saiset-co/sai-social/database"
	"github.com/saiset-co/sai-social/logger"
	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

const baseURL = "https://social.example"

type countingRecorder struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (r *countingRecorder) RecordAccess(hit bool, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

type env struct {
	ctx      context.Context
	db       *database.CloverStore
	store    *cache.Store
	clock    *utils.FakeClock
	recorder *countingRecorder
	profiles *Profiles
	feed     *Feed
}

func newEnv(t *testing.T) *env {
	t.Helper()

	log := logger.NewNop()
	clock := utils.NewFakeClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	db, err := database.NewCloverStore(&types.DatabaseConfig{InMemory: true}, log)
	require.NoError(t, err)
	require.NoError(t, db.Start())
	t.Cleanup(func() { _ = db.Stop() })

	store := cache.NewStore(context.Background(), &types.CacheConfig{
		TTL: types.CacheTTLConfig{
			User:          10 * time.Minute,
			Post:          5 * time.Minute,
			Count:         2 * time.Minute,
			Avatar:        30 * time.Minute,
			FrequentPosts: 15 * time.Minute,
			Profile:       20 * time.Minute,
			PostMetadata:  5 * time.Minute,
		},
	}, log, nil, clock)

	recorder := &countingRecorder{}
	profiles := NewProfiles(db, store, log, clock, recorder, baseURL)

	return &env{
		ctx:      context.Background(),
		db:       db,
		store:    store,
		clock:    clock,
		recorder: recorder,
		profiles: profiles,
		feed:     NewFeed(db, store, profiles, log, clock, recorder, baseURL),
	}
}

func (e *env) user(t *testing.T, name string) string {
	t.Helper()
	id, err := e.profiles.CreateUser(e.ctx, name+"@example.com", name)
	require.NoError(t, err)
	return id
}

func (e *env) post(t *testing.T, userID, content string) types.Post {
	t.Helper()
	e.clock.Advance(time.Second)
	post, err := e.feed.CreatePost(e.ctx, userID, NewPost{Content: content})
	require.NoError(t, err)
	return post
}

func TestListPostsServesFirstPageFromCache(t *testing.T) {
	e := newEnv(t)
	author := e.user(t, "ann")
	e.post(t, author, "first")

	page, err := e.feed.ListPosts(e.ctx, author, 1, 10)
	require.NoError(t, err)
	assert.False(t, page.Cached)
	require.Len(t, page.Data, 1)
	require.NotNil(t, page.Data[0].Author)
	assert.Equal(t, "ann", page.Data[0].Author.Name)

	page, err = e.feed.ListPosts(e.ctx, author, 0, 0)
	require.NoError(t, err)
	assert.True(t, page.Cached)

	e.post(t, author, "second")

	page, err = e.feed.ListPosts(e.ctx, author, 1, 10)
	require.NoError(t, err)
	assert.False(t, page.Cached)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "second", page.Data[0].Content)
}

func TestListPostsPagination(t *testing.T) {
	e := newEnv(t)
	author := e.user(t, "bob")
	for i := 0; i < 12; i++ {
		e.post(t, author, "post")
	}

	page, err := e.feed.ListPosts(e.ctx, author, 3, 5)
	require.NoError(t, err)

	assert.Len(t, page.Data, 2)
	assert.Equal(t, types.Pagination{CurrentPage: 3, TotalPages: 3, TotalPosts: 12, HasNext: false}, page.Pagination)

	page, err = e.feed.ListPosts(e.ctx, author, 2, 5)
	require.NoError(t, err)
	assert.True(t, page.Pagination.HasNext)

	assert.Empty(t, e.store.Keys()[types.FrequentPostsContainer])
}

func TestListPostsPastLastPage(t *testing.T) {
	e := newEnv(t)
	author := e.user(t, "cal")
	for i := 0; i < 3; i++ {
		e.post(t, author, "post")
	}

	for _, page := range []int{2, 1000, math.MaxInt} {
		result, err := e.feed.ListPosts(e.ctx, author, page, 10)
		require.NoError(t, err)

		assert.Empty(t, result.Data)
		assert.Equal(t, types.Pagination{CurrentPage: page, TotalPages: 1, TotalPosts: 3, HasNext: false}, result.Pagination)
	}
}

func TestListPostsSkipsHiddenPosts(t *testing.T) {
	e := newEnv(t)
	viewer := e.user(t, "cat")
	kept := e.post(t, viewer, "kept")
	hidden := e.post(t, viewer, "hidden by viewer")
	moderated := e.post(t, viewer, "hidden by moderation")

	_, err := e.db.Update(database.UsersCollection, byID(viewer), map[string]interface{}{"hiddenPosts": []interface{}{hidden.ID}})
	require.NoError(t, err)
	_, err = e.db.Update(database.PostsCollection, byID(moderated.ID), map[string]interface{}{"isHidden": true})
	require.NoError(t, err)

	page, err := e.feed.ListPosts(e.ctx, viewer, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, kept.ID, page.Data[0].ID)
	assert.Equal(t, 1, page.Pagination.TotalPosts)
}

func TestPostImageIsExpanded(t *testing.T) {
	e := newEnv(t)
	author := e.user(t, "dan")

	post, err := e.feed.CreatePost(e.ctx, author, NewPost{Content: "pic", Image: "photo.jpg"})
	require.NoError(t, err)
	assert.Equal(t, baseURL+"/uploads/photo.jpg", post.Image)
}

func TestCommentsInvalidateCounters(t *testing.T) {
	e := newEnv(t)
	author := e.user(t, "eve")
	post := e.post(t, author, "hello")

	count, err := e.feed.CommentCount(post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = e.feed.AddComment(e.ctx, post.ID, author, NewComment{Content: "nice"})
	require.NoError(t, err)
	require.NoError(t, e.feed.React(e.ctx, post.ID, author, ReactionLike))
	require.NoError(t, e.feed.React(e.ctx, post.ID, author, "love"))

	count, err = e.feed.CommentCount(post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	metadata, err := e.feed.Metadata(post.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PostMetadata{Likes: 0, Comments: 1, Reactions: 1}, metadata)

	cached, ok := e.store.GetPostMetadata(post.ID)
	require.True(t, ok)
	assert.Equal(t, metadata, cached)
}

func TestCommentOnMissingPost(t *testing.T) {
	e := newEnv(t)
	author := e.user(t, "fay")

	_, err := e.feed.AddComment(e.ctx, "missing", author, NewComment{Content: "?"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	exists, ok := e.store.GetPostExists("missing")
	require.True(t, ok)
	assert.False(t, exists)
}

func TestDeletePostRequiresOwner(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "gus")
	other := e.user(t, "hal")
	post := e.post(t, owner, "mine")

	assert.ErrorIs(t, e.feed.DeletePost(e.ctx, other, post.ID), types.ErrPermissionDenied)
	require.NoError(t, e.feed.DeletePost(e.ctx, owner, post.ID))

	exists, err := e.feed.PostExists(post.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetProfileAppliesPrivacyPerViewer(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "ivy")
	viewer := e.user(t, "jon")

	hide := false
	location := "Lisbon"
	_, err := e.profiles.UpdateProfile(e.ctx, owner, ProfileUpdate{
		Location:        &location,
		Avatar:          strPtr("avatar_ivy.png"),
		Interests:       []string{"climbing"},
		PrivacySettings: &types.PrivacySettings{ShowLocation: &hide},
	})
	require.NoError(t, err)

	seen, cached, err := e.profiles.GetProfile(e.ctx, owner, viewer)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Nil(t, seen.Location)
	assert.Nil(t, seen.PrivacySettings)
	assert.Equal(t, []string{"climbing"}, seen.Interests)
	assert.Equal(t, baseURL+"/uploads/avatars/avatar_ivy.png", seen.Avatar)

	own, _, err := e.profiles.GetProfile(e.ctx, owner, owner)
	require.NoError(t, err)
	require.NotNil(t, own.Location)
	assert.Equal(t, "Lisbon", *own.Location)
	assert.NotNil(t, own.PrivacySettings)

	url, err := e.profiles.AvatarURL(owner)
	require.NoError(t, err)
	assert.Equal(t, seen.Avatar, url)
}

func TestGetProfileCountsViewsOnMiss(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "kim")
	viewer := e.user(t, "lee")

	profile, cached, err := e.profiles.GetProfile(e.ctx, owner, viewer)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, profile.ProfileViews)

	e.store.InvalidateUserAllData(owner)

	profile, _, err = e.profiles.GetProfile(e.ctx, owner, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.ProfileViews)

	_, _, err = e.profiles.GetProfile(e.ctx, "missing", viewer)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUpdateProfileInvalidatesUserEntries(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "max")

	_, err := e.profiles.UserData(owner)
	require.NoError(t, err)
	_, _, err = e.profiles.GetProfile(e.ctx, owner, owner)
	require.NoError(t, err)

	updated, err := e.profiles.UpdateProfile(e.ctx, owner, ProfileUpdate{Name: strPtr("Maxine")})
	require.NoError(t, err)
	assert.Equal(t, "Maxine", updated.Name)

	_, ok := e.store.GetUserData(owner)
	assert.False(t, ok)

	data, err := e.profiles.UserData(owner)
	require.NoError(t, err)
	assert.Equal(t, "Maxine", data["name"])
}

func TestReadsAreRecorded(t *testing.T) {
	e := newEnv(t)
	owner := e.user(t, "ned")

	_, err := e.profiles.AvatarURL(owner)
	require.NoError(t, err)
	_, err = e.profiles.AvatarURL(owner)
	require.NoError(t, err)

	assert.Equal(t, 1, e.recorder.hits)
	assert.Equal(t, 1, e.recorder.misses)
}

func strPtr(s string) *string {
	return &s
}
