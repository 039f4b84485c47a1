package service

import (
	"context"
	"strings"

	"vitamora/internal/models"
	"vitamora/internal/realtime"
	"vitamora/internal/repository"
	"vitamora/internal/storage"
	"vitamora/internal/validation"
)

type ProfileService struct {
	profileRepo repository.ProfileRepository
	uploader    *storage.Uploader
	events      realtime.Publisher
}

// UpdateProfileInput is a patch: nil fields are left untouched. Role is not user-editable.
type UpdateProfileInput struct {
	UserID    uint
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string
}

type UploadProfileImageInput struct {
	UserID      uint
	Content     []byte
	ContentType string
}

func NewProfileService(profileRepo repository.ProfileRepository, uploader *storage.Uploader, events realtime.Publisher) *ProfileService {
	return &ProfileService{profileRepo: profileRepo, uploader: uploader, events: events}
}

func (s *ProfileService) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, repository.Classify(err, "Profile", id)
	}
	return profile, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.Profile, error) {
	if in.UserID == 0 {
		return nil, models.NewAuthenticationRequiredError("Sign in to edit your profile")
	}

	patch := map[string]any{}
	setName := func(column string, v *string) error {
		if v == nil {
			return nil
		}
		name := strings.TrimSpace(*v)
		if err := validation.ValidateName(column, name); err != nil {
			return models.NewValidationError(err.Error())
		}
		patch[column] = name
		return nil
	}
	if err := setName("first_name", in.FirstName); err != nil {
		return nil, err
	}
	if err := setName("last_name", in.LastName); err != nil {
		return nil, err
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if err := validation.ValidatePhone(phone); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		patch["phone"] = phone
	}
	if in.Address != nil {
		address := strings.TrimSpace(*in.Address)
		if len(address) > 255 {
			return nil, models.NewValidationError("address must not exceed 255 characters")
		}
		patch["address"] = address
	}

	profile, err := s.profileRepo.Update(ctx, in.UserID, patch)
	if err != nil {
		return nil, repository.Classify(err, "Profile", in.UserID)
	}
	if len(patch) > 0 {
		publish(ctx, s.events, models.TableProfiles, realtime.EventUpdate, realtime.RecordFromModel(profile), nil)
	}
	return profile, nil
}

// UploadProfileImage stores an avatar with a thumbnail and points the profile at it.
func (s *ProfileService) UploadProfileImage(ctx context.Context, in UploadProfileImageInput) (*models.Profile, error) {
	if in.UserID == 0 {
		return nil, models.NewAuthenticationRequiredError("Sign in to upload a profile image")
	}
	if s.uploader == nil {
		return nil, models.NewValidationError("Image uploads are disabled")
	}
	res, err := s.uploader.UploadImage(ctx, storage.UploadInput{
		UserID:      in.UserID,
		Bucket:      storage.BucketImages,
		Folder:      storage.ProfileFolder(in.UserID),
		Content:     in.Content,
		ContentType: in.ContentType,
		Thumbnail:   true,
	})
	if err != nil {
		return nil, err
	}
	if err := s.profileRepo.SetImageURL(ctx, in.UserID, res.URL); err != nil {
		return nil, repository.Classify(err, "Profile", in.UserID)
	}
	profile, err := s.GetProfile(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, models.TableProfiles, realtime.EventUpdate, realtime.RecordFromModel(profile), nil)
	return profile, nil
}
