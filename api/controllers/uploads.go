package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/seramic/shop-backend/api/validators"
	"github.com/seramic/shop-backend/internal/media"
	"github.com/seramic/shop-backend/pkg/db/models"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
)

const (
	primaryImageField = "image"
	galleryField      = "images"
	avatarField       = "avatar"
	jsonDataField     = "data"
)

// ImageUploader stores uploaded images and removes them again when the
// surrounding write fails.
type ImageUploader interface {
	ProductImages(ctx context.Context, uploads []media.Upload, alt string) ([]models.ProductImage, error)
	Avatar(ctx context.Context, userID uuid.UUID, upload media.Upload) (string, string, error)
	RemoveImages(ctx context.Context, images []models.ProductImage) error
	RemoveObject(ctx context.Context, key string) error
	MaxGalleryFiles() int
	MaxUploadBytes() int64
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// decodeProductForm reads a JSON body, or a multipart form whose "data" part
// carries the JSON fields next to the image files. The primary image comes
// first in the returned uploads.
func decodeProductForm(r *http.Request, uploader ImageUploader, dest any) ([]media.Upload, error) {
	if !isMultipart(r) {
		return nil, validators.DecodeJSONBody(r, dest)
	}

	maxFiles := uploader.MaxGalleryFiles() + 1
	r.Body = http.MaxBytesReader(nil, r.Body, uploader.MaxUploadBytes()*int64(maxFiles)+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	if raw := strings.TrimSpace(r.FormValue(jsonDataField)); raw != "" {
		decoder := json.NewDecoder(strings.NewReader(raw))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(dest); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid data field").WithDetails(map[string]any{"error": err.Error()})
		}
	}
	if err := validators.ValidateStruct(dest); err != nil {
		return nil, err
	}

	primary := r.MultipartForm.File[primaryImageField]
	gallery := r.MultipartForm.File[galleryField]
	if len(primary) > 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Only one primary image is allowed")
	}
	if len(gallery) > uploader.MaxGalleryFiles() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("At most %d gallery images are allowed", uploader.MaxGalleryFiles()))
	}

	uploads := make([]media.Upload, 0, len(primary)+len(gallery))
	for _, group := range []struct {
		field string
		files []*multipart.FileHeader
	}{{primaryImageField, primary}, {galleryField, gallery}} {
		for _, fh := range group.files {
			upload, err := readUpload(group.field, fh, uploader.MaxUploadBytes())
			if err != nil {
				return nil, err
			}
			uploads = append(uploads, upload)
		}
	}
	return uploads, nil
}

// readAvatar pulls the single avatar file out of a multipart request.
func readAvatar(r *http.Request, maxBytes int64) (media.Upload, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return media.Upload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[avatarField]
	if len(files) != 1 {
		return media.Upload{}, pkgerrors.New(pkgerrors.CodeValidation, "Please upload exactly one avatar image").
			WithDetails(map[string]string{avatarField: "required"})
	}
	return readUpload(avatarField, files[0], maxBytes)
}

func readUpload(field string, fh *multipart.FileHeader, maxBytes int64) (media.Upload, error) {
	if fh.Size > maxBytes {
		return media.Upload{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Each file must be at most %d MB", maxBytes>>20)).
			WithDetails(map[string]string{field: "too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return media.Upload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return media.Upload{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	return media.Upload{Field: field, Filename: fh.Filename, Data: data}, nil
}
