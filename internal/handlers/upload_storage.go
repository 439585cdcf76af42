package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"ordersite/internal/storage"
)

// ImageStore keeps uploaded product images.
type ImageStore interface {
	SaveImage(ctx context.Context, r io.Reader) (string, error)
	DeleteByURL(ctx context.Context, rawURL string) error
}

// storeUpload saves the attached image, if any, and returns its URL.
func storeUpload(ctx context.Context, images ImageStore, file *multipart.FileHeader) (string, error) {
	if file == nil {
		return "", nil
	}
	if file.Size > storage.MaxImageSize {
		return "", storage.ErrTooLarge
	}
	f, err := file.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return images.SaveImage(ctx, f)
}

func uploadErrorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrEmptyFile),
		errors.Is(err, storage.ErrTooLarge),
		errors.Is(err, storage.ErrUnsupportedType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// discardImage deletes an image that is no longer referenced. Failures are
// logged only; a stray object is harmless.
func discardImage(ctx context.Context, images ImageStore, route, url string) {
	if url == "" {
		return
	}
	if err := images.DeleteByURL(ctx, url); err != nil {
		routeLog(route).WithError(err).WithField("imageUrl", url).Warn("image not deleted")
	}
}

/*
POST /admin/api/uploads
- multipart field "image"; jpeg, png, webp or gif up to 5MB
- the type is sniffed from the bytes, not taken from the header
*/
func UploadImage(images ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/uploads"
		defer handlePanic(c, route)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxImageSize+(1<<20))
		file, err := c.FormFile("image")
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "image file is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
		defer cancel()

		url, err := storeUpload(ctx, images, file)
		if err != nil {
			respondWithError(c, uploadErrorStatus(err), route, err.Error())
			return
		}
		c.JSON(http.StatusCreated, gin.H{"url": url})
	}
}
