package imagesvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/questtrack/questtrack/core"
)

var (
	// errors
	errMissingImage     = errors.New("an image file is required")
	errUnsupportedImage = errors.New("only jpeg, jpg, png and gif images are allowed")
	errImageTooLarge    = errors.New("image is too large")

	allowedExts = map[string]bool{".jpeg": true, ".jpg": true, ".png": true, ".gif": true}
)

// DiskStore saves images in a local directory served by the API under a public URL prefix.
type DiskStore struct {
	dir     string
	url     string
	maxSize int64
}

var _ core.ImageStore = (*DiskStore)(nil)

func NewDiskStore(conf *core.Config) (*DiskStore, error) {
	if err := os.MkdirAll(conf.Storage.ImagesDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating images directory")
	}
	return &DiskStore{
		dir:     conf.Storage.ImagesDir,
		url:     strings.TrimSuffix(conf.Storage.ImagesURL, "/"),
		maxSize: conf.Storage.MaxImageSize,
	}, nil
}

func imageFieldError(err error) error {
	return core.NewFieldError("img", err.Error())
}

// Save writes the image under a random name keeping the original extension.
func (s *DiskStore) Save(_ context.Context, filename, contentType string, content io.Reader) (string, error) {
	if content == nil || filename == "" {
		return "", imageFieldError(errMissingImage)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExts[ext] {
		return "", imageFieldError(errUnsupportedImage)
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return "", imageFieldError(errUnsupportedImage)
	}

	name := uuid.New().String() + ext
	fpath := filepath.Join(s.dir, name)
	f, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating image file")
	}

	var src io.Reader = content
	if s.maxSize > 0 {
		src = io.LimitReader(content, s.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = imageFieldError(errImageTooLarge)
	}
	if err != nil {
		_ = os.Remove(fpath)
		if _, ok := err.(*core.ValidationError); ok {
			return "", err
		}
		return "", errors.Wrap(err, "writing image file")
	}
	return path.Join(s.url, name), nil
}

// Delete removes the image referenced by `ref`. Unknown references are ignored.
func (s *DiskStore) Delete(_ context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	name := path.Base(ref)
	if name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing image file")
	}
	return nil
}
