// Package storage keeps uploaded product images on an afero filesystem.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"tokostore/internal/apperrors"
	"tokostore/internal/config"
)

const imageDir = "products"

var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Image is an uploaded image file.
type Image struct {
	Filename string
	Body     io.Reader
}

// ImageStore writes images below imageDir and serves them at publicURL.
type ImageStore struct {
	fs        afero.Fs
	publicURL string
	maxBytes  int64
	now       func() time.Time
}

// NewImageStore creates a store on fs. publicURL is the URL prefix under which
// the root of fs is served.
func NewImageStore(fs afero.Fs, publicURL string, maxBytes int64) *ImageStore {
	return &ImageStore{
		fs:        fs,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

// NewDiskImageStore roots a store at cfg.Dir on the local disk.
func NewDiskImageStore(cfg config.StorageConfig) (*ImageStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create storage dir %s", cfg.Dir)
	}
	fs := afero.NewBasePathFs(afero.NewOsFs(), cfg.Dir)
	return NewImageStore(fs, cfg.PublicURL, cfg.MaxBytes), nil
}

// Fs is the filesystem holding the images, for static serving.
func (s *ImageStore) Fs() afero.Fs {
	return s.fs
}

// Upload validates and stores img, returning its public URL. Only JPEG, PNG
// and WebP content up to maxBytes is accepted; the type is sniffed from the
// bytes, not taken from the client.
func (s *ImageStore) Upload(ctx context.Context, prefix string, img Image) (string, error) {
	data, err := io.ReadAll(io.LimitReader(img.Body, s.maxBytes+1))
	if err != nil {
		return "", errors.Wrap(err, "read upload")
	}
	if len(data) == 0 {
		return "", apperrors.BadRequest("no file uploaded")
	}
	if int64(len(data)) > s.maxBytes {
		return "", apperrors.BadRequest("file size too large. maximum size is %dMB", s.maxBytes>>20)
	}
	ext, ok := allowedTypes[mimetype.Detect(data).String()]
	if !ok {
		return "", apperrors.BadRequest("invalid file type. only JPEG, PNG and WebP are allowed")
	}

	name := fmt.Sprintf("%s/%s-%d-%s.%s", imageDir, prefix, s.now().UnixMilli(), uuid.New().String()[:8], ext)
	if err := s.fs.MkdirAll(imageDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create image dir")
	}
	if err := afero.WriteReader(s.fs, name, bytes.NewReader(data)); err != nil {
		return "", errors.Wrapf(err, "write image %s", name)
	}
	logrus.WithFields(logrus.Fields{"file": name, "bytes": len(data), "original": img.Filename}).Info("image stored")
	return s.publicURL + "/" + name, nil
}

// Delete removes the image behind url. URLs outside the store are rejected.
func (s *ImageStore) Delete(ctx context.Context, url string) error {
	name, err := s.pathOf(url)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(name); err != nil {
		if os.IsNotExist(err) {
			return apperrors.NotFound("image not found")
		}
		return errors.Wrapf(err, "remove image %s", name)
	}
	return nil
}

func (s *ImageStore) pathOf(url string) (string, error) {
	rel := strings.TrimPrefix(url, s.publicURL+"/")
	if rel == url || rel == "" {
		return "", apperrors.BadRequest("invalid image URL")
	}
	cleaned := path.Clean(rel)
	if cleaned != rel || !strings.HasPrefix(cleaned, imageDir+"/") {
		return "", apperrors.BadRequest("invalid image URL")
	}
	return cleaned, nil
}
