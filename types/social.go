package types

import (
	"time"
)

// UserData is the raw user record projection kept in the user container.
type UserData map[string]interface{}

type Profile struct {
	Email           string            `json:"email"`
	Name            string            `json:"name"`
	DateOfBirth     *time.Time        `json:"dateOfBirth"`
	Gender          string            `json:"gender"`
	Avatar          string            `json:"avatar"`
	CoverPhoto      string            `json:"coverPhoto"`
	Bio             string            `json:"bio"`
	Location        *string           `json:"location"`
	Interests       []string          `json:"interests"`
	SocialLinks     map[string]string `json:"socialLinks"`
	ProfileViews    int               `json:"profileViews"`
	Achievements    []string          `json:"achievements"`
	PrivacySettings *PrivacySettings  `json:"privacySettings,omitempty"`
}

type PrivacySettings struct {
	ShowBirthday    *bool `json:"showBirthday,omitempty"`
	ShowLocation    *bool `json:"showLocation,omitempty"`
	ShowInterests   *bool `json:"showInterests,omitempty"`
	ShowSocialLinks *bool `json:"showSocialLinks,omitempty"`
}

type PostMetadata struct {
	Likes     int `json:"likes"`
	Comments  int `json:"comments"`
	Reactions int `json:"reactions"`
}

type PostAuthor struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type Post struct {
	ID        string      `json:"id"`
	Author    *PostAuthor `json:"author,omitempty"`
	Content   string      `json:"content"`
	Image     string      `json:"image,omitempty"`
	Likes     int         `json:"likes"`
	Comments  int         `json:"comments"`
	Reactions int         `json:"reactions"`
	CreatedAt time.Time   `json:"createdAt"`
}

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalPosts  int  `json:"totalPosts"`
	HasNext     bool `json:"hasNext"`
}

// PostsPage is one frequent-posts page together with its pagination block.
type PostsPage struct {
	Data       []Post     `json:"data"`
	Pagination Pagination `json:"pagination"`
	Cached     bool       `json:"cached,omitempty"`
}
