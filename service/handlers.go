package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/server"
	"github.com/saiset-co/sai-social/social"
	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

const userHeader = "X-User-ID"

type createUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=100"`
}

type reactionRequest struct {
	Type string `json:"type" validate:"required,oneof=like love haha wow sad angry"`
}

type createdResponse struct {
	ID string `json:"id"`
}

func (s *Service) handleCacheStats(ctx *fasthttp.RequestCtx) {
	utils.WriteSuccess(ctx, s.monitor.Statistics())
}

func (s *Service) handleCacheHealth(ctx *fasthttp.RequestCtx) {
	utils.WriteSuccess(ctx, s.monitor.Health())
}

func (s *Service) handleCacheExport(ctx *fasthttp.RequestCtx) {
	utils.WriteJSON(ctx, fasthttp.StatusOK, s.monitor.Export())
}

func (s *Service) handleCacheCleanup(ctx *fasthttp.RequestCtx) {
	cleanupType, err := types.ParseCleanupType(server.Param(ctx, "type"))
	if err != nil {
		utils.WriteMessage(ctx, fasthttp.StatusBadRequest, "error", err.Error())
		return
	}

	if err := s.monitor.Cleanup(cleanupType); err != nil {
		s.writeError(ctx, err)
		return
	}

	utils.WriteMessage(ctx, fasthttp.StatusOK, "success", fmt.Sprintf("Cache cleanup initiated for type: %s", cleanupType))
}

func (s *Service) handleListPosts(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	page, err := queryInt(ctx, "page")
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	limit, err := queryInt(ctx, "limit")
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	result, err := s.feed.ListPosts(rctx, viewer(ctx), page, limit)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, result)
}

func (s *Service) handleCreatePost(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	userID, ok := s.requireUser(ctx)
	if !ok {
		return
	}

	var req social.NewPost
	if !s.decode(ctx, &req) {
		return
	}

	post, err := s.feed.CreatePost(rctx, userID, req)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusCreated, post)
}

func (s *Service) handleDeletePost(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	userID, ok := s.requireUser(ctx)
	if !ok {
		return
	}

	if err := s.feed.DeletePost(rctx, userID, server.Param(ctx, "postId")); err != nil {
		s.writeError(ctx, err)
		return
	}

	utils.WriteMessage(ctx, fasthttp.StatusOK, "success", "Post deleted")
}

func (s *Service) handleAddComment(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	userID, ok := s.requireUser(ctx)
	if !ok {
		return
	}

	var req social.NewComment
	if !s.decode(ctx, &req) {
		return
	}

	comment, err := s.feed.AddComment(rctx, server.Param(ctx, "postId"), userID, req)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusCreated, comment)
}

func (s *Service) handleReact(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	userID, ok := s.requireUser(ctx)
	if !ok {
		return
	}

	var req reactionRequest
	if !s.decode(ctx, &req) {
		return
	}

	postID := server.Param(ctx, "postId")
	if err := s.feed.React(rctx, postID, userID, req.Type); err != nil {
		s.writeError(ctx, err)
		return
	}

	metadata, err := s.feed.Metadata(postID)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	utils.WriteSuccess(ctx, metadata)
}

func (s *Service) handlePostMetadata(ctx *fasthttp.RequestCtx) {
	metadata, err := s.feed.Metadata(server.Param(ctx, "postId"))
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	utils.WriteSuccess(ctx, metadata)
}

func (s *Service) handleCreateUser(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	var req createUserRequest
	if !s.decode(ctx, &req) {
		return
	}

	id, err := s.profiles.CreateUser(rctx, req.Email, req.Name)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusCreated, createdResponse{ID: id})
}

func (s *Service) handleGetProfile(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	profile, cached, err := s.profiles.GetProfile(rctx, server.Param(ctx, "userId"), viewer(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	setCacheHeader(ctx, cached)
	utils.WriteSuccess(ctx, profile)
}

func (s *Service) handleUpdateProfile(ctx *fasthttp.RequestCtx) {
	rctx, cancel := s.requestContext()
	defer cancel()

	userID, ok := s.requireUser(ctx)
	if !ok {
		return
	}

	if userID != server.Param(ctx, "userId") {
		s.writeError(ctx, types.Errorf(types.ErrPermissionDenied, "profile of %s", server.Param(ctx, "userId")))
		return
	}

	var req social.ProfileUpdate
	if !s.decode(ctx, &req) {
		return
	}

	profile, err := s.profiles.UpdateProfile(rctx, userID, req)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	utils.WriteSuccess(ctx, profile)
}

func (s *Service) requireUser(ctx *fasthttp.RequestCtx) (string, bool) {
	userID := viewer(ctx)
	if userID == "" {
		utils.WriteMessage(ctx, fasthttp.StatusUnauthorized, "error", userHeader+" header is required")
		return "", false
	}
	return userID, true
}

// decode reads and validates the JSON body, answering 400 itself on failure.
func (s *Service) decode(ctx *fasthttp.RequestCtx, target interface{}) bool {
	if err := utils.DecodeJSON(ctx.PostBody(), target); err != nil {
		utils.WriteMessage(ctx, fasthttp.StatusBadRequest, "error", "Invalid request body")
		return false
	}

	if err := s.validator.Struct(target); err != nil {
		utils.WriteMessage(ctx, fasthttp.StatusBadRequest, "error", err.Error())
		return false
	}

	return true
}

// requestContext bounds social calls by the HTTP write timeout and by the
// service lifetime. RequestCtx itself carries no deadline.
func (s *Service) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.requestTimeout)
}

func (s *Service) writeError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.WriteMessage(ctx, fasthttp.StatusServiceUnavailable, "error", "Request cancelled")
	case errors.Is(err, types.ErrNotFound):
		utils.WriteMessage(ctx, fasthttp.StatusNotFound, "error", err.Error())
	case errors.Is(err, types.ErrPermissionDenied):
		utils.WriteMessage(ctx, fasthttp.StatusForbidden, "error", err.Error())
	case errors.Is(err, types.ErrInvalidParameter), errors.Is(err, types.ErrCleanupTypeUnknown):
		utils.WriteMessage(ctx, fasthttp.StatusBadRequest, "error", err.Error())
	default:
		s.logger.Error("Request failed",
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()),
			zap.Error(err))
		utils.CreateErrorResponse(ctx)
	}
}

func viewer(ctx *fasthttp.RequestCtx) string {
	return string(ctx.Request.Header.Peek(userHeader))
}

func queryInt(ctx *fasthttp.RequestCtx, name string) (int, error) {
	raw := ctx.QueryArgs().Peek(name)
	if len(raw) == 0 {
		return 0, nil
	}

	value, err := strconv.Atoi(string(raw))
	if err != nil || value < 0 {
		return 0, types.Errorf(types.ErrInvalidParameter, "%s must be a positive integer", name)
	}
	return value, nil
}

func setCacheHeader(ctx *fasthttp.RequestCtx, cached bool) {
	if cached {
		ctx.Response.Header.Set("X-Cache", "HIT")
		return
	}
	ctx.Response.Header.Set("X-Cache", "MISS")
}
