// Package assets uploads listing images to the asset host.  A batch upload
// is all-or-nothing: when any file fails, the files already stored are
// destroyed and no URLs are returned.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/iliyamo/campus-marketplace/internal/model"
	"github.com/iliyamo/campus-marketplace/internal/repository"
)

// MaxFileSize is the largest accepted image in bytes.
const MaxFileSize = 5 << 20

// ErrUnavailable is returned when no asset host is configured.
var ErrUnavailable = errors.New("asset host not configured")

// Asset is one stored file.
type Asset struct {
	PublicID string
	URL      string
}

// Host stores and deletes single files.
type Host interface {
	Upload(ctx context.Context, name string, r io.Reader) (Asset, error)
	Destroy(ctx context.Context, publicID string) error
}

// File describes one incoming upload.  Open is called once, right before
// the file is sent.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Uploader validates batches and sends them to a Host.
type Uploader struct {
	host Host
	log  *slog.Logger
}

// NewUploader returns an uploader.  A nil host makes every upload fail
// with ErrUnavailable.
func NewUploader(host Host, log *slog.Logger) *Uploader {
	return &Uploader{host: host, log: log}
}

// Validate checks count, size and media type of a batch.
func Validate(files []File) error {
	problems := map[string]string{}
	if n := len(files); n < model.MinImages || n > model.MaxImages {
		problems["images"] = fmt.Sprintf("must upload %d-%d images", model.MinImages, model.MaxImages)
	}
	for i, f := range files {
		key := fmt.Sprintf("images[%d]", i)
		if f.Size > MaxFileSize {
			problems[key] = fmt.Sprintf("%s exceeds %d MB", f.Name, MaxFileSize>>20)
			continue
		}
		mt, _, err := mime.ParseMediaType(f.ContentType)
		if err != nil || !strings.HasPrefix(mt, "image/") {
			problems[key] = fmt.Sprintf("%s is not an image", f.Name)
		}
	}
	return repository.NewValidationError(problems)
}

// UploadAll stores every file and returns their URLs in input order.
func (u *Uploader) UploadAll(ctx context.Context, files []File) ([]string, error) {
	if u.host == nil {
		return nil, ErrUnavailable
	}
	if err := Validate(files); err != nil {
		return nil, err
	}

	stored := make([]Asset, 0, len(files))
	for _, f := range files {
		a, err := u.uploadOne(ctx, f)
		if err != nil {
			u.rollback(ctx, stored)
			return nil, fmt.Errorf("upload %s: %w", f.Name, err)
		}
		stored = append(stored, a)
	}

	urls := make([]string, len(stored))
	for i, a := range stored {
		urls[i] = a.URL
	}
	return urls, nil
}

func (u *Uploader) uploadOne(ctx context.Context, f File) (Asset, error) {
	rc, err := f.Open()
	if err != nil {
		return Asset{}, err
	}
	defer rc.Close()
	return u.host.Upload(ctx, f.Name, rc)
}

// rollback destroys already stored assets.  It runs even when ctx is
// cancelled so a dropped request does not leak files.
func (u *Uploader) rollback(ctx context.Context, stored []Asset) {
	ctx = context.WithoutCancel(ctx)
	for _, a := range stored {
		if err := u.host.Destroy(ctx, a.PublicID); err != nil {
			u.log.Warn("asset rollback failed", "public_id", a.PublicID, "err", err)
		}
	}
}
