package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seramic/shop-backend/api/middleware"
	"github.com/seramic/shop-backend/internal/media"
	product "github.com/seramic/shop-backend/internal/products"
	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
)

type fakeUploader struct {
	uploads        []media.Upload
	removed        []models.ProductImage
	objects        []string
	removedObjects []string
	failWith       error
}

func (f *fakeUploader) ProductImages(_ context.Context, uploads []media.Upload, alt string) ([]models.ProductImage, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.uploads = append(f.uploads, uploads...)
	out := make([]models.ProductImage, 0, len(uploads))
	for i, u := range uploads {
		out = append(out, models.ProductImage{URL: "https://cdn.test/" + u.Filename, PublicID: u.Filename, IsPrimary: i == 0, Alt: alt})
	}
	return out, nil
}

func (f *fakeUploader) Avatar(_ context.Context, userID uuid.UUID, _ media.Upload) (string, string, error) {
	key := fmt.Sprintf("avatars/%s-%d.jpg", userID, len(f.objects)+len(f.removedObjects))
	f.objects = append(f.objects, key)
	return "https://cdn.test/" + key, key, nil
}

func (f *fakeUploader) RemoveImages(_ context.Context, images []models.ProductImage) error {
	f.removed = append(f.removed, images...)
	return nil
}

func (f *fakeUploader) RemoveObject(_ context.Context, key string) error {
	f.removedObjects = append(f.removedObjects, key)
	f.objects = slices.DeleteFunc(f.objects, func(k string) bool { return k == key })
	return nil
}

func (f *fakeUploader) MaxGalleryFiles() int  { return 2 }
func (f *fakeUploader) MaxUploadBytes() int64 { return 1 << 20 }

type stubCatalog struct {
	product.Service
	createErr error
	created   *product.CreateProductInput
	updated   *product.UpdateProductInput
}

func (s *stubCatalog) Create(_ context.Context, _ pkgAuth.Actor, input product.CreateProductInput) (*product.ProductDTO, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = &input
	return &product.ProductDTO{ID: uuid.New(), Name: input.Name, Images: input.Images}, nil
}

func (s *stubCatalog) Update(_ context.Context, id uuid.UUID, input product.UpdateProductInput) (*product.ProductDTO, error) {
	s.updated = &input
	return &product.ProductDTO{ID: id}, nil
}

func withActor(req *http.Request, role enums.Role) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), pkgAuth.Actor{UserID: uuid.New(), Role: role}))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.RouteContext(req.Context())
	if rc == nil {
		rc = chi.NewRouteContext()
	}
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func multipartProduct(t *testing.T, data string, files map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if data != "" {
		require.NoError(t, mw.WriteField("data", data))
	}
	for field, names := range files {
		for _, name := range names {
			part, err := mw.CreateFormFile(field, name)
			require.NoError(t, err)
			_, err = part.Write([]byte("not-really-an-image"))
			require.NoError(t, err)
		}
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

const productJSON = `{"name":"Speckled Mug","description":"Wheel thrown stoneware mug","price":24.5,"category":"Ceramics","stock":4}`

func TestProductCreateMultipart(t *testing.T) {
	svc := &stubCatalog{}
	uploader := &fakeUploader{}
	body, contentType := multipartProduct(t, productJSON, map[string][]string{"image": {"primary.png"}, "images": {"a.png", "b.png"}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	ProductCreate(svc, uploader, nil).ServeHTTP(resp, withActor(req, enums.RoleAdmin))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.NotNil(t, svc.created)
	require.Len(t, svc.created.Images, 3)
	assert.Equal(t, "primary.png", uploader.uploads[0].Filename)
	assert.Equal(t, "image", uploader.uploads[0].Field)
	assert.Empty(t, uploader.removed)
}

func TestProductCreateRemovesImagesWhenWriteFails(t *testing.T) {
	svc := &stubCatalog{createErr: product.ErrSlugTaken("speckled-mug")}
	uploader := &fakeUploader{}
	body, contentType := multipartProduct(t, productJSON, map[string][]string{"image": {"primary.png"}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	ProductCreate(svc, uploader, nil).ServeHTTP(resp, withActor(req, enums.RoleAdmin))

	assert.Equal(t, http.StatusConflict, resp.Code)
	require.Len(t, uploader.removed, 1)
	assert.Equal(t, "primary.png", uploader.removed[0].PublicID)
}

func TestProductCreateRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name  string
		files map[string][]string
		json  bool
	}{
		{name: "json body without images", json: true},
		{name: "two primary images", files: map[string][]string{"image": {"a.png", "b.png"}}},
		{name: "gallery over the cap", files: map[string][]string{"images": {"a.png", "b.png", "c.png"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uploader := &fakeUploader{}
			var req *http.Request
			if tt.json {
				req = httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(productJSON))
				req.Header.Set("Content-Type", "application/json")
			} else {
				body, contentType := multipartProduct(t, productJSON, tt.files)
				req = httptest.NewRequest(http.MethodPost, "/api/v1/products", body)
				req.Header.Set("Content-Type", contentType)
			}
			resp := httptest.NewRecorder()
			ProductCreate(&stubCatalog{}, uploader, nil).ServeHTTP(resp, withActor(req, enums.RoleAdmin))

			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Empty(t, uploader.uploads)
		})
	}
}

func TestProductUpdateKeepsGalleryWithoutFiles(t *testing.T) {
	svc := &stubCatalog{}
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/products/"+id.String(), strings.NewReader(`{"stock":7}`))
	req.Header.Set("Content-Type", "application/json")
	req = withURLParam(withActor(req, enums.RoleAdmin), "id", id.String())
	resp := httptest.NewRecorder()
	ProductUpdate(svc, &fakeUploader{}, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.NotNil(t, svc.updated)
	assert.Nil(t, svc.updated.Images)
	require.NotNil(t, svc.updated.Stock)
	assert.Equal(t, 7, *svc.updated.Stock)
}

func TestProductUpdateRejectsBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/products/nope", strings.NewReader(`{}`))
	req = withURLParam(withActor(req, enums.RoleAdmin), "id", "nope")
	resp := httptest.NewRecorder()
	ProductUpdate(&stubCatalog{}, &fakeUploader{}, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeValidation), payload.Error.Code)
}
