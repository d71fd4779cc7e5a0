package social

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/cache"
	"github.com/saiset-co/sai-social/database"
	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

// ProfileUpdate carries the editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	Name            *string                `json:"name" validate:"omitempty,min=1,max=100"`
	Bio             *string                `json:"bio" validate:"omitempty,max=500"`
	Gender          *string                `json:"gender" validate:"omitempty,oneof=male female other"`
	Location        *string                `json:"location" validate:"omitempty,max=100"`
	Avatar          *string                `json:"avatar"`
	CoverPhoto      *string                `json:"coverPhoto"`
	DateOfBirth     *time.Time             `json:"dateOfBirth"`
	Interests       []string               `json:"interests" validate:"omitempty,max=50,dive,max=50"`
	SocialLinks     map[string]string      `json:"socialLinks" validate:"omitempty,dive,keys,max=30,endkeys,omitempty,url"`
	PrivacySettings *types.PrivacySettings `json:"privacySettings"`
}

type Profiles struct {
	db       Documents
	cache    *cache.Store
	logger   types.Logger
	clock    types.Clock
	recorder AccessRecorder
	baseURL  string
}

func NewProfiles(db Documents, store *cache.Store, logger types.Logger, clock types.Clock, recorder AccessRecorder, baseURL string) *Profiles {
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Profiles{
		db:       db,
		cache:    store,
		logger:   logger,
		clock:    clock,
		recorder: recorder,
		baseURL:  baseURL,
	}
}

func (p *Profiles) CreateUser(ctx context.Context, email, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	record := userRecord{
		ID: uuid.NewString(),
		Profile: types.Profile{
			Email:        email,
			Name:         name,
			Interests:    []string{},
			SocialLinks:  map[string]string{},
			Achievements: []string{},
		},
		HiddenPosts: []string{},
		CreatedAt:   p.clock.Now().UTC(),
	}

	if err := p.db.Insert(database.UsersCollection, record); err != nil {
		return "", types.WrapError(err, "failed to create user")
	}

	return record.ID, nil
}

// GetProfile serves the profile of userID as seen by viewerID. The cache
// keeps the unfiltered profile; privacy rules are applied per viewer.
func (p *Profiles) GetProfile(ctx context.Context, userID, viewerID string) (types.Profile, bool, error) {
	start := time.Now()
	isOwn := viewerID == userID

	if profile, ok := p.cache.GetUserProfile(userID); ok {
		p.recorder.RecordAccess(true, sinceMs(start))
		return project(profile, isOwn), true, nil
	}

	if err := ctx.Err(); err != nil {
		return types.Profile{}, false, err
	}

	record, err := p.loadUser(userID)
	if err != nil {
		return types.Profile{}, false, err
	}

	if viewerID != "" && !isOwn {
		record.ProfileViews++
		_, err := p.db.Update(database.UsersCollection, byID(userID), map[string]interface{}{"profileViews": record.ProfileViews})
		if err != nil {
			p.logger.Warn("Failed to count profile view", zap.String("user_id", userID), zap.Error(err))
		}
	}

	profile := p.expand(record.Profile)

	p.cache.SetUserProfile(userID, profile)
	p.cache.SetAvatarURL(userID, profile.Avatar)
	p.recorder.RecordAccess(false, sinceMs(start))

	return project(profile, isOwn), false, nil
}

func (p *Profiles) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (types.Profile, error) {
	if err := ctx.Err(); err != nil {
		return types.Profile{}, err
	}

	if _, err := p.loadUser(userID); err != nil {
		return types.Profile{}, err
	}

	fields := update.fields()
	if len(fields) > 0 {
		if _, err := p.db.Update(database.UsersCollection, byID(userID), fields); err != nil {
			return types.Profile{}, types.WrapError(err, "failed to update profile")
		}
	}

	p.cache.InvalidateUserAllData(userID)

	profile, _, err := p.GetProfile(ctx, userID, userID)
	return profile, err
}

func (p *Profiles) AvatarURL(userID string) (string, error) {
	start := time.Now()

	if url, ok := p.cache.GetAvatarURL(userID); ok {
		p.recorder.RecordAccess(true, sinceMs(start))
		return url, nil
	}

	record, err := p.loadUser(userID)
	if err != nil {
		return "", err
	}

	url := p.mediaURL(record.Avatar)
	p.cache.SetAvatarURL(userID, url)
	p.recorder.RecordAccess(false, sinceMs(start))

	return url, nil
}

// UserData returns the public author projection used on feed entries.
func (p *Profiles) UserData(userID string) (types.UserData, error) {
	start := time.Now()

	if data, ok := p.cache.GetUserData(userID); ok {
		p.recorder.RecordAccess(true, sinceMs(start))
		return data, nil
	}

	record, err := p.loadUser(userID)
	if err != nil {
		return nil, err
	}

	data := types.UserData{
		"userId": record.ID,
		"name":   record.Name,
		"avatar": p.mediaURL(record.Avatar),
	}

	p.cache.SetUserData(userID, data)
	p.recorder.RecordAccess(false, sinceMs(start))

	return data, nil
}

func (p *Profiles) HiddenPosts(userID string) ([]string, error) {
	if userID == "" {
		return nil, nil
	}

	record, err := p.loadUser(userID)
	if types.IsError(err, types.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return record.HiddenPosts, nil
}

func (p *Profiles) loadUser(userID string) (userRecord, error) {
	var record userRecord

	err := p.db.FindByID(database.UsersCollection, userID, &record)
	if types.IsError(err, types.ErrDocumentNotFound) {
		return record, types.Errorf(types.ErrNotFound, "user %s", userID)
	}
	if err != nil {
		return record, types.WrapError(err, "failed to load user")
	}

	return record, nil
}

func (p *Profiles) expand(profile types.Profile) types.Profile {
	profile.Avatar = p.mediaURL(profile.Avatar)
	profile.CoverPhoto = p.mediaURL(profile.CoverPhoto)

	if profile.Interests == nil {
		profile.Interests = []string{}
	}
	if profile.SocialLinks == nil {
		profile.SocialLinks = map[string]string{}
	}
	if profile.Achievements == nil {
		profile.Achievements = []string{}
	}

	return profile
}

func (p *Profiles) mediaURL(name string) string {
	switch {
	case strings.HasPrefix(name, "avatar_"):
		return utils.ExpandMediaURL(p.baseURL, name, "avatars")
	case strings.HasPrefix(name, "cover_"):
		return utils.ExpandMediaURL(p.baseURL, name, "covers")
	default:
		return utils.ExpandMediaURL(p.baseURL, name, "")
	}
}

// project hides the fields the owner marked private from everyone else.
func project(profile types.Profile, isOwn bool) types.Profile {
	if isOwn {
		return profile
	}

	settings := types.PrivacySettings{}
	if profile.PrivacySettings != nil {
		settings = *profile.PrivacySettings
	}

	if hidden(settings.ShowBirthday) {
		profile.DateOfBirth = nil
	}
	if hidden(settings.ShowLocation) {
		profile.Location = nil
	}
	if hidden(settings.ShowInterests) {
		profile.Interests = []string{}
	}
	if hidden(settings.ShowSocialLinks) {
		profile.SocialLinks = map[string]string{}
	}

	profile.PrivacySettings = nil

	return profile
}

func hidden(show *bool) bool {
	return show != nil && !*show
}

func (u ProfileUpdate) fields() map[string]interface{} {
	fields := make(map[string]interface{})

	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Bio != nil {
		fields["bio"] = *u.Bio
	}
	if u.Gender != nil {
		fields["gender"] = *u.Gender
	}
	if u.Location != nil {
		fields["location"] = *u.Location
	}
	if u.Avatar != nil {
		fields["avatar"] = *u.Avatar
	}
	if u.CoverPhoto != nil {
		fields["coverPhoto"] = *u.CoverPhoto
	}
	if u.DateOfBirth != nil {
		fields["dateOfBirth"] = u.DateOfBirth.UTC().Format(time.RFC3339)
	}
	if u.Interests != nil {
		interests := make([]interface{}, 0, len(u.Interests))
		for _, interest := range u.Interests {
			interests = append(interests, interest)
		}
		fields["interests"] = interests
	}
	if u.SocialLinks != nil {
		links := make(map[string]interface{}, len(u.SocialLinks))
		for k, v := range u.SocialLinks {
			links[k] = v
		}
		fields["socialLinks"] = links
	}
	if u.PrivacySettings != nil {
		settings := make(map[string]interface{})
		if err := utils.Convert(u.PrivacySettings, &settings); err == nil {
			fields["privacySettings"] = settings
		}
	}

	return fields
}
