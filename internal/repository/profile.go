package repository

import (
	"context"

	"vitamora/internal/cache"
	"vitamora/internal/models"
	"vitamora/internal/observability"

	"gorm.io/gorm"
)

// ProfileRepository defines profile persistence.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, id uint, patch map[string]any) (*models.Profile, error)
	SetImageURL(ctx context.Context, id uint, url string) error
}

type profileRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db, log: observability.NewRepoLogger("profiles", nil)}
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	defer observability.TrackQuery("get", "profiles")()

	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"profile_id": profile.ID})
	return nil
}

// Update writes the given columns and returns the stored profile.
// Posts embed their author, so cached feed pages are retired too.
func (r *profileRepository) Update(ctx context.Context, id uint, patch map[string]any) (*models.Profile, error) {
	defer observability.TrackQuery("update", "profiles")()

	if len(patch) > 0 {
		res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(patch)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		cache.InvalidateFeed(ctx)
		r.log.LogUpdate(ctx, map[string]any{"profile_id": id, "fields": len(patch)})
	}
	return r.GetByID(ctx, id)
}

func (r *profileRepository) SetImageURL(ctx context.Context, id uint, url string) error {
	_, err := r.Update(ctx, id, map[string]any{"profile_image_url": url})
	return err
}
