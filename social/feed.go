package social

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/cache"
	"github.com/saiset-co/sai-social/database"
	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

type NewPost struct {
	Content string `json:"content" validate:"required,max=5000"`
	Image   string `json:"image" validate:"omitempty,max=2048"`
}

type NewComment struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type Feed struct {
	db       Documents
	cache    *cache.Store
	profiles *Profiles
	logger   types.Logger
	clock    types.Clock
	recorder AccessRecorder
	baseURL  string
}

func NewFeed(db Documents, store *cache.Store, profiles *Profiles, logger types.Logger, clock types.Clock, recorder AccessRecorder, baseURL string) *Feed {
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Feed{
		db:       db,
		cache:    store,
		profiles: profiles,
		logger:   logger,
		clock:    clock,
		recorder: recorder,
		baseURL:  baseURL,
	}
}

// ListPosts returns one feed page, newest first. The first page is served
// from the frequent-posts cache when present.
func (f *Feed) ListPosts(ctx context.Context, viewerID string, page, limit int) (types.PostsPage, error) {
	start := time.Now()
	page, limit = normalizePage(page, limit)

	if page == 1 {
		if cached, ok := f.cache.GetFrequentPosts(page, limit); ok {
			f.recorder.RecordAccess(true, sinceMs(start))
			cached.Cached = true
			return cached, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return types.PostsPage{}, err
	}

	hiddenPosts, err := f.profiles.HiddenPosts(viewerID)
	if err != nil {
		return types.PostsPage{}, err
	}

	filter := visiblePosts(hiddenPosts)

	total, err := f.db.Count(database.PostsCollection, filter)
	if err != nil {
		return types.PostsPage{}, types.WrapError(err, "failed to count posts")
	}

	totalPages := (total + limit - 1) / limit

	posts := make([]types.Post, 0, limit)
	// Pages past the end are answered empty before the skip is computed,
	// which keeps (page-1)*limit within total.
	if page <= totalPages {
		filter.SortField = "createdAtMs"
		filter.Descending = true
		filter.Skip = (page - 1) * limit
		filter.Limit = limit

		var records []postRecord
		if err := f.db.Find(database.PostsCollection, filter, &records); err != nil {
			return types.PostsPage{}, types.WrapError(err, "failed to load posts")
		}

		for _, record := range records {
			posts = append(posts, f.toPost(record))
		}
	}

	result := types.PostsPage{
		Data: posts,
		Pagination: types.Pagination{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalPosts:  total,
			HasNext:     page < totalPages,
		},
	}

	if page == 1 {
		f.cache.SetFrequentPosts(page, limit, result)
		f.recorder.RecordAccess(false, sinceMs(start))
	}

	return result, nil
}

func (f *Feed) CreatePost(ctx context.Context, userID string, post NewPost) (types.Post, error) {
	if err := ctx.Err(); err != nil {
		return types.Post{}, err
	}

	if _, err := f.profiles.loadUser(userID); err != nil {
		return types.Post{}, err
	}

	now := f.clock.Now().UTC()
	record := postRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		Content:     post.Content,
		Image:       post.Image,
		CreatedAt:   now,
		CreatedAtMs: now.UnixMilli(),
	}

	if err := f.db.Insert(database.PostsCollection, record); err != nil {
		return types.Post{}, types.WrapError(err, "failed to create post")
	}

	f.cache.InvalidatePostData(record.ID)
	f.logger.Debug("Post created", zap.String("post_id", record.ID), zap.String("user_id", userID))

	return f.toPost(record), nil
}

// DeletePost removes a post owned by userID together with its comments and reactions.
func (f *Feed) DeletePost(ctx context.Context, userID, postID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record, err := f.loadPost(postID)
	if err != nil {
		return err
	}

	if record.UserID != userID {
		return types.Errorf(types.ErrPermissionDenied, "post %s", postID)
	}

	if _, err := f.db.Delete(database.PostsCollection, byID(postID)); err != nil {
		return types.WrapError(err, "failed to delete post")
	}

	for _, collection := range []string{database.CommentsCollection, database.ReactionsCollection} {
		if _, err := f.db.Delete(collection, byPost(postID)); err != nil {
			f.logger.Warn("Failed to delete post dependents",
				zap.String("collection", collection),
				zap.String("post_id", postID),
				zap.Error(err))
		}
	}

	f.cache.InvalidatePostData(postID)

	return nil
}

func (f *Feed) AddComment(ctx context.Context, postID, userID string, comment NewComment) (Comment, error) {
	if err := ctx.Err(); err != nil {
		return Comment{}, err
	}

	exists, err := f.PostExists(postID)
	if err != nil {
		return Comment{}, err
	}
	if !exists {
		return Comment{}, types.Errorf(types.ErrNotFound, "post %s", postID)
	}

	record := Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    userID,
		Content:   comment.Content,
		CreatedAt: f.clock.Now().UTC(),
	}

	if err := f.db.Insert(database.CommentsCollection, record); err != nil {
		return Comment{}, types.WrapError(err, "failed to add comment")
	}

	if err := f.refreshCounters(postID); err != nil {
		return Comment{}, err
	}

	f.cache.InvalidatePostData(postID)

	return record, nil
}

// React stores the reaction of userID on a post, replacing any previous one.
func (f *Feed) React(ctx context.Context, postID, userID, reactionType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	exists, err := f.PostExists(postID)
	if err != nil {
		return err
	}
	if !exists {
		return types.Errorf(types.ErrNotFound, "post %s", postID)
	}

	mine := byPost(postID)
	mine.Equals["userId"] = userID
	if _, err := f.db.Delete(database.ReactionsCollection, mine); err != nil {
		return types.WrapError(err, "failed to replace reaction")
	}

	record := reactionRecord{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    userID,
		Type:      reactionType,
		CreatedAt: f.clock.Now().UTC(),
	}

	if err := f.db.Insert(database.ReactionsCollection, record); err != nil {
		return types.WrapError(err, "failed to add reaction")
	}

	if err := f.refreshCounters(postID); err != nil {
		return err
	}

	f.cache.InvalidatePostData(postID)

	return nil
}

func (f *Feed) PostExists(postID string) (bool, error) {
	start := time.Now()

	if exists, ok := f.cache.GetPostExists(postID); ok {
		f.recorder.RecordAccess(true, sinceMs(start))
		return exists, nil
	}

	count, err := f.db.Count(database.PostsCollection, byID(postID))
	if err != nil {
		return false, types.WrapError(err, "failed to check post")
	}

	exists := count > 0
	f.cache.SetPostExists(postID, exists)
	f.recorder.RecordAccess(false, sinceMs(start))

	return exists, nil
}

func (f *Feed) CommentCount(postID string) (int, error) {
	start := time.Now()

	if count, ok := f.cache.GetCommentCount(postID); ok {
		f.recorder.RecordAccess(true, sinceMs(start))
		return count, nil
	}

	count, err := f.db.Count(database.CommentsCollection, byPost(postID))
	if err != nil {
		return 0, types.WrapError(err, "failed to count comments")
	}

	f.cache.SetCommentCount(postID, count)
	f.recorder.RecordAccess(false, sinceMs(start))

	return count, nil
}

func (f *Feed) Metadata(postID string) (types.PostMetadata, error) {
	start := time.Now()

	if metadata, ok := f.cache.GetPostMetadata(postID); ok {
		f.recorder.RecordAccess(true, sinceMs(start))
		return metadata, nil
	}

	metadata, err := f.countMetadata(postID)
	if err != nil {
		return types.PostMetadata{}, err
	}

	f.cache.SetPostMetadata(postID, metadata)
	f.recorder.RecordAccess(false, sinceMs(start))

	return metadata, nil
}

func (f *Feed) countMetadata(postID string) (types.PostMetadata, error) {
	comments, err := f.db.Count(database.CommentsCollection, byPost(postID))
	if err != nil {
		return types.PostMetadata{}, types.WrapError(err, "failed to count comments")
	}

	reactions, err := f.db.Count(database.ReactionsCollection, byPost(postID))
	if err != nil {
		return types.PostMetadata{}, types.WrapError(err, "failed to count reactions")
	}

	likes := byPost(postID)
	likes.Equals["type"] = ReactionLike
	likeCount, err := f.db.Count(database.ReactionsCollection, likes)
	if err != nil {
		return types.PostMetadata{}, types.WrapError(err, "failed to count likes")
	}

	return types.PostMetadata{Likes: likeCount, Comments: comments, Reactions: reactions}, nil
}

func (f *Feed) refreshCounters(postID string) error {
	metadata, err := f.countMetadata(postID)
	if err != nil {
		return err
	}

	_, err = f.db.Update(database.PostsCollection, byID(postID), map[string]interface{}{
		"likes":     metadata.Likes,
		"comments":  metadata.Comments,
		"reactions": metadata.Reactions,
	})
	if err != nil {
		return types.WrapError(err, "failed to update post counters")
	}

	return nil
}

func (f *Feed) loadPost(postID string) (postRecord, error) {
	var record postRecord

	err := f.db.FindByID(database.PostsCollection, postID, &record)
	if types.IsError(err, types.ErrDocumentNotFound) {
		return record, types.Errorf(types.ErrNotFound, "post %s", postID)
	}
	if err != nil {
		return record, types.WrapError(err, "failed to load post")
	}

	return record, nil
}

func (f *Feed) toPost(record postRecord) types.Post {
	post := types.Post{
		ID:        record.ID,
		Content:   record.Content,
		Image:     utils.ExpandMediaURL(f.baseURL, record.Image, ""),
		Likes:     record.Likes,
		Comments:  record.Comments,
		Reactions: record.Reactions,
		CreatedAt: record.CreatedAt,
	}

	author, err := f.profiles.UserData(record.UserID)
	if err != nil {
		f.logger.Debug("Post author unavailable", zap.String("user_id", record.UserID), zap.Error(err))
		return post
	}

	post.Author = &types.PostAuthor{UserID: record.UserID}
	if name, ok := author["name"].(string); ok {
		post.Author.Name = name
	}
	if avatar, ok := author["avatar"].(string); ok {
		post.Author.Avatar = avatar
	}

	return post
}

func visiblePosts(hiddenPosts []string) database.Filter {
	filter := database.Filter{
		NotEquals: map[string]interface{}{"isHidden": true},
	}

	if len(hiddenPosts) > 0 {
		ids := make([]interface{}, 0, len(hiddenPosts))
		for _, id := range hiddenPosts {
			ids = append(ids, id)
		}
		filter.NotIn = map[string][]interface{}{database.IDField: ids}
	}

	return filter
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = cache.DefaultPage
	}
	if limit <= 0 {
		limit = cache.DefaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
