package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vitamora/internal/models"
	"vitamora/internal/observability"
)

// Buckets and folders used by the application.
const (
	BucketImages       = "images"
	BucketSocialImages = "social_images"
)

// PostFolder is where a user's post images live inside BucketSocialImages.
func PostFolder(userID uint) string { return fmt.Sprintf("posts/%d", userID) }

// ProfileFolder is where a user's avatar lives inside BucketImages.
func ProfileFolder(userID uint) string { return fmt.Sprintf("profiles/%d", userID) }

// UploadInput is one image upload request.
type UploadInput struct {
	UserID      uint
	Bucket      string
	Folder      string
	Content     []byte
	ContentType string
	Thumbnail   bool
}

// UploadResult points at the stored object.
type UploadResult struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Uploader validates images and writes them to an ObjectStore.
type Uploader struct {
	store    ObjectStore
	maxBytes int64
	now      func() time.Time
}

// NewUploader creates an Uploader with the given size limit in bytes.
func NewUploader(store ObjectStore, maxBytes int64) *Uploader {
	return &Uploader{store: store, maxBytes: maxBytes, now: time.Now}
}

// UploadImage stores in.Content at <folder>/<userID>-<unixnano>.<ext>.
// Validation failures are VALIDATION_ERROR; store failures are REMOTE_ERROR.
func (u *Uploader) UploadImage(ctx context.Context, in UploadInput) (*UploadResult, error) {
	ctx, finish := observability.StartSpan(ctx, "storage", "UploadImage")
	var err error
	defer func() { finish(err) }()

	if in.UserID == 0 {
		err = models.NewAuthenticationRequiredError("Sign in to upload images")
		return nil, err
	}
	info, err := ValidateImage(in.Content, u.maxBytes)
	if err != nil {
		observability.ImageUploadsTotal.WithLabelValues(in.Bucket, "rejected").Inc()
		return nil, err
	}

	key := fmt.Sprintf("%s/%d-%d.%s", in.Folder, in.UserID, u.now().UnixNano(), info.Ext)
	if err = u.store.Upload(ctx, in.Bucket, key, in.Content, info.MIME); err != nil {
		observability.ImageUploadsTotal.WithLabelValues(in.Bucket, "failed").Inc()
		err = models.NewRemoteError("Image upload failed", err)
		return nil, err
	}
	res := &UploadResult{Key: key, URL: u.store.PublicURL(in.Bucket, key)}

	if in.Thumbnail {
		// Best effort: the original is already stored and usable.
		thumbKey := key + ".thumb.webp"
		thumb, thumbErr := Thumbnail(in.Content, ThumbnailSize)
		if thumbErr == nil {
			thumbErr = u.store.Upload(ctx, in.Bucket, thumbKey, thumb, "image/webp")
		}
		if thumbErr != nil {
			slog.WarnContext(ctx, "thumbnail generation failed", "key", key, "error", thumbErr)
		} else {
			res.ThumbnailURL = u.store.PublicURL(in.Bucket, thumbKey)
		}
	}

	observability.ImageUploadsTotal.WithLabelValues(in.Bucket, "stored").Inc()
	return res, nil
}
