package social

import (
	"time"

	"github.com/saiset-co/sai-social/database"
	"github.com/saiset-co/sai-social/types"
)

const (
	ReactionLike = "like"

	maxPageLimit = 100
)

// Documents is the part of the document store the services use.
type Documents interface {
	Insert(collection string, record interface{}) error
	FindByID(collection, id string, out interface{}) error
	Find(collection string, filter database.Filter, out interface{}) error
	Count(collection string, filter database.Filter) (int, error)
	Update(collection string, filter database.Filter, fields map[string]interface{}) (int, error)
	Delete(collection string, filter database.Filter) (int, error)
}

// AccessRecorder receives the latency of every cache-backed read.
type AccessRecorder interface {
	RecordAccess(hit bool, responseTimeMs float64)
}

type noopRecorder struct{}

func (noopRecorder) RecordAccess(bool, float64) {}

type userRecord struct {
	ID string `json:"id"`
	types.Profile
	HiddenPosts []string  `json:"hiddenPosts"`
	CreatedAt   time.Time `json:"createdAt"`
}

type postRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Content     string    `json:"content"`
	Image       string    `json:"image"`
	IsHidden    bool      `json:"isHidden"`
	Likes       int       `json:"likes"`
	Comments    int       `json:"comments"`
	Reactions   int       `json:"reactions"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedAtMs int64     `json:"createdAtMs"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type reactionRecord struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

func byID(id string) database.Filter {
	return database.Filter{Equals: map[string]interface{}{database.IDField: id}}
}

func byPost(postID string) database.Filter {
	return database.Filter{Equals: map[string]interface{}{"postId": postID}}
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
