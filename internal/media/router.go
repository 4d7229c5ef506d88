package media

import (
	"fmt"
	"io"
	"strings"

	"orderbridge/internal/constants"
	"orderbridge/internal/models"

	"github.com/gabriel-vasile/mimetype"
)

// Media categories used for upload limits
const (
	CategoryImage    = "image"
	CategoryVideo    = "video"
	CategoryAudio    = "audio"
	CategoryDocument = "document"
)

const bytesPerMB = 1024 * 1024

// Router classifies uploaded media and enforces per-category size limits
type Router interface {
	// GetMediaType returns the category (image, video, audio, document) for a MIME type
	GetMediaType(mimeType string) string
	// GetMaxSizeForMediaType returns the maximum allowed size in bytes for a category
	GetMaxSizeForMediaType(mediaType string) int64
	// CheckSize rejects a payload larger than its category allows
	CheckSize(mimeType string, size int64) error
}

type router struct {
	config models.MediaConfig
}

func NewRouter(config models.MediaConfig) Router {
	if config.MaxUploadSizeMB <= 0 {
		config.MaxUploadSizeMB = constants.DefaultMaxUploadSizeMB
	}
	return &router{
		config: config,
	}
}

func (r *router) GetMediaType(mimeType string) string {
	normalized := constants.NormalizeMimeType(mimeType)
	switch {
	case strings.HasPrefix(normalized, "image/"):
		return CategoryImage
	case strings.HasPrefix(normalized, "video/"):
		return CategoryVideo
	case strings.HasPrefix(normalized, "audio/"):
		return CategoryAudio
	default:
		return CategoryDocument
	}
}

func (r *router) GetMaxSizeForMediaType(mediaType string) int64 {
	limit := r.config.MaxUploadSizeMB
	var category int
	switch mediaType {
	case CategoryImage:
		category = r.config.UploadLimitsMB.Image
	case CategoryVideo:
		category = r.config.UploadLimitsMB.Video
	case CategoryAudio:
		category = r.config.UploadLimitsMB.Audio
	default:
		category = r.config.UploadLimitsMB.Document
	}
	if category > 0 && category < limit {
		limit = category
	}
	return int64(limit) * bytesPerMB
}

func (r *router) CheckSize(mimeType string, size int64) error {
	category := r.GetMediaType(mimeType)
	limit := r.GetMaxSizeForMediaType(category)
	if size > limit {
		return fmt.Errorf("%s exceeds the %d MB limit", category, limit/bytesPerMB)
	}
	return nil
}

// DetectMimeType returns the declared type unless it is missing or generic,
// in which case the content is sniffed. The reader is rewound afterwards.
func DetectMimeType(declared string, content io.ReadSeeker) (string, error) {
	normalized := constants.NormalizeMimeType(declared)
	if normalized != "" && normalized != constants.DefaultMimeType {
		return normalized, nil
	}

	detected, err := mimetype.DetectReader(content)
	if err != nil {
		return "", fmt.Errorf("detect mime type: %w", err)
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	return constants.NormalizeMimeType(detected.String()), nil
}
