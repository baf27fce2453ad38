package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/girish1208dev/print-service/config"
	"github.com/girish1208dev/print-service/models"
	"github.com/girish1208dev/print-service/utils"
)

// errNoContent is returned when a photo has neither content nor a durable preview
var errNoContent = errors.New("photo has no content")

// PreviewEncoder converts a photo's content into a durable preview reference
type PreviewEncoder interface {
	Encode(ctx context.Context, photo models.Photo) (string, error)
}

// PreviewDiscarder is implemented by encoders that store previews outside the order
// and can remove them again when the order is abandoned
type PreviewDiscarder interface {
	Discard(ctx context.Context, photo models.Photo) error
}

var previewEncoderInstance PreviewEncoder

// InitPreviewEncoder initializes the preview encoder for the configured storage mode
func InitPreviewEncoder(ctx context.Context, cfg *config.Config) (PreviewEncoder, error) {
	switch cfg.PreviewStorage {
	case config.PreviewStorageDisk:
		previewEncoderInstance = &DiskEncoder{Dir: cfg.UploadDir}
	case config.PreviewStorageS3:
		s3Service := GetS3Service()
		if s3Service == nil {
			var err error
			if s3Service, err = InitS3Service(ctx, cfg); err != nil {
				return nil, err
			}
		}
		previewEncoderInstance = &S3Encoder{S3: s3Service}
	default:
		previewEncoderInstance = InlineEncoder{}
	}
	return previewEncoderInstance, nil
}

// GetPreviewEncoder returns the initialized preview encoder
func GetPreviewEncoder() PreviewEncoder {
	return previewEncoderInstance
}

// SetPreviewEncoder sets the preview encoder instance (primarily for testing)
func SetPreviewEncoder(encoder PreviewEncoder) {
	previewEncoderInstance = encoder
}

// InlineEncoder embeds the photo as a base64 data URL
type InlineEncoder struct{}

func (InlineEncoder) Encode(_ context.Context, photo models.Photo) (string, error) {
	if len(photo.Content) == 0 {
		return "", errNoContent
	}
	contentType := photo.ContentType
	if contentType == "" {
		contentType = utils.ContentTypeFor(photo.FileName)
	}
	if contentType == "" {
		return "", fmt.Errorf("unsupported image type for %q", photo.FileName)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(photo.Content), nil
}

// DiskEncoder writes the photo under Dir and references it through the uploads route
type DiskEncoder struct {
	Dir string
}

func (e *DiskEncoder) Encode(_ context.Context, photo models.Photo) (string, error) {
	if len(photo.Content) == 0 {
		return "", errNoContent
	}
	filename, err := utils.SavePhotoFile(photo.Content, photo.ID, photoFileName(photo), e.Dir)
	if err != nil {
		return "", err
	}
	return utils.GetImageURL(filename), nil
}

func (e *DiskEncoder) Discard(_ context.Context, photo models.Photo) error {
	return utils.RemovePhotoFile(photo.ID+"_"+photoFileName(photo), e.Dir)
}

// S3Encoder uploads the photo to S3 and references the object URL
type S3Encoder struct {
	S3 S3Interface
}

func (e *S3Encoder) Encode(ctx context.Context, photo models.Photo) (string, error) {
	if len(photo.Content) == 0 {
		return "", errNoContent
	}
	key := s3PhotoKey(photo)
	contentType := photo.ContentType
	if contentType == "" {
		contentType = utils.ContentTypeFor(photo.FileName)
	}
	return e.S3.UploadPhoto(ctx, key, photo.Content, contentType)
}

func (e *S3Encoder) Discard(ctx context.Context, photo models.Photo) error {
	return e.S3.DeleteFile(ctx, s3PhotoKey(photo))
}

func s3PhotoKey(photo models.Photo) string {
	return fmt.Sprintf("photos/%s_%s", photo.ID, photoFileName(photo))
}

func photoFileName(photo models.Photo) string {
	name := filepath.Base(photo.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "photo"
	}
	return name
}

// PlaceholderURL returns the fallback preview for a photo, seeded by its id
func PlaceholderURL(base, photoID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "seed=" + url.QueryEscape(photoID)
}
