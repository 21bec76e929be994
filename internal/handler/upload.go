package handler

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-marketplace/internal/assets"
)

// UploadHandler accepts listing images and returns their hosted URLs.  The
// seller then sends the URLs in the create or update body.
type UploadHandler struct {
	up  *assets.Uploader
	log *slog.Logger
}

func NewUploadHandler(up *assets.Uploader, log *slog.Logger) *UploadHandler {
	return &UploadHandler{up: up, log: log}
}

// Images handles POST /v1/uploads/images with multipart field "images".
func (h *UploadHandler) Images(c echo.Context) error {
	if _, ok := actor(c); !ok {
		return unauthorized(c)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "images", "expected multipart form with images")
	}
	defer form.RemoveAll()

	headers := form.File["images"]
	files := make([]assets.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, fileFromHeader(fh))
	}
	urls, err := h.up.UploadAll(c.Request().Context(), files)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"urls": urls})
}

func fileFromHeader(fh *multipart.FileHeader) assets.File {
	return assets.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}
