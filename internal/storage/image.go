package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"net/http"
	"strings"

	"vitamora/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// DefaultMaxImageBytes is the upload limit when none is configured.
const DefaultMaxImageBytes int64 = 5 * 1024 * 1024

// ThumbnailSize bounds both sides of a generated thumbnail.
const ThumbnailSize = 256

const webpQuality = 80

// ImageInfo describes content that passed ValidateImage.
type ImageInfo struct {
	MIME   string
	Ext    string
	Width  int
	Height int
}

// ValidateImage checks size, sniffed type and decodability. The declared
// content type is advisory; the bytes decide.
func ValidateImage(content []byte, maxBytes int64) (*ImageInfo, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("Image must not exceed %dMB", maxBytes/(1024*1024)))
	}

	detected := http.DetectContentType(content)
	if !strings.HasPrefix(detected, "image/") {
		return nil, models.NewValidationError("File must be an image")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	ext, mime := formatInfo(format)
	if ext == "" {
		return nil, models.NewValidationError("Unsupported image format")
	}
	return &ImageInfo{MIME: mime, Ext: ext, Width: cfg.Width, Height: cfg.Height}, nil
}

func formatInfo(format string) (ext, mime string) {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "jpg", "image/jpeg"
	case "png":
		return "png", "image/png"
	case "gif":
		return "gif", "image/gif"
	case "webp":
		return "webp", "image/webp"
	default:
		return "", ""
	}
}

// Thumbnail decodes content and re-encodes it as WebP no larger than size x size.
func Thumbnail(content []byte, size int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, resizeToFit(src, size, size), &webp.Options{Quality: webpQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}
