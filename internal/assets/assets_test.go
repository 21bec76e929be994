package assets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-marketplace/internal/repository"
)

type fakeHost struct {
	failOn    string
	uploaded  []string
	destroyed []string
}

func (h *fakeHost) Upload(_ context.Context, name string, r io.Reader) (Asset, error) {
	if name == h.failOn {
		return Asset{}, errors.New("host rejected file")
	}
	if _, err := io.ReadAll(r); err != nil {
		return Asset{}, err
	}
	h.uploaded = append(h.uploaded, name)
	return Asset{PublicID: "pid-" + name, URL: "https://cdn.example.com/" + name}, nil
}

func (h *fakeHost) Destroy(_ context.Context, publicID string) error {
	h.destroyed = append(h.destroyed, publicID)
	return nil
}

func file(name, contentType string, size int64) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("bytes")), nil
		},
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestUploadAllReturnsURLsInOrder(t *testing.T) {
	host := &fakeHost{}
	u := NewUploader(host, discard())

	urls, err := u.UploadAll(context.Background(), []File{
		file("a.jpg", "image/jpeg", 100),
		file("b.png", "image/png", 100),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.png"}, urls)
	assert.Empty(t, host.destroyed)
}

func TestUploadAllRollsBackOnPartialFailure(t *testing.T) {
	host := &fakeHost{failOn: "c.jpg"}
	u := NewUploader(host, discard())

	urls, err := u.UploadAll(context.Background(), []File{
		file("a.jpg", "image/jpeg", 100),
		file("b.jpg", "image/jpeg", 100),
		file("c.jpg", "image/jpeg", 100),
	})
	require.Error(t, err)
	assert.Nil(t, urls)
	assert.Equal(t, []string{"pid-a.jpg", "pid-b.jpg"}, host.destroyed)
}

func TestValidateRejectsBadBatches(t *testing.T) {
	err := Validate([]File{file("a.jpg", "image/jpeg", 1)})
	assert.ErrorIs(t, err, repository.ErrValidation)

	err = Validate([]File{
		file("a.jpg", "image/jpeg", MaxFileSize+1),
		file("b.txt", "text/plain", 10),
	})
	var verr *repository.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "images[0]")
	assert.Contains(t, verr.Fields, "images[1]")

	assert.NoError(t, Validate([]File{
		file("a.jpg", "image/jpeg", 1),
		file("b.webp", "image/webp; charset=binary", 1),
	}))
}

func TestUploadWithoutHost(t *testing.T) {
	u := NewUploader(nil, discard())
	_, err := u.UploadAll(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}
