package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seramic/shop-backend/api/responses"
	"github.com/seramic/shop-backend/api/validators"
	product "github.com/seramic/shop-backend/internal/products"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/pagination"
)

const (
	maxSearchLength     = 100
	defaultRelatedSize  = 4
	defaultFeaturedSize = 8
)

// ProductsList serves the storefront browse endpoint.
func ProductsList(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := parseProductList(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseProductList(r *http.Request) (product.ListInput, error) {
	q := r.URL.Query()
	var input product.ListInput

	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, err := enums.ParseProductCategory(raw)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
		}
		input.Filters.Category = &category
	}
	sort, err := enums.ParseProductSort(strings.TrimSpace(q.Get("sort")))
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sort")
	}
	input.Sort = sort

	if input.Filters.MinPrice, err = validators.ParseQueryDecimal(r, "minPrice"); err != nil {
		return input, err
	}
	if input.Filters.MaxPrice, err = validators.ParseQueryDecimal(r, "maxPrice"); err != nil {
		return input, err
	}
	if input.Filters.Featured, err = validators.ParseQueryBool(r, "featured"); err != nil {
		return input, err
	}
	input.Filters.Tags = validators.ParseQueryList(r, "tags")

	search := q.Get("search")
	if search == "" {
		search = q.Get("q")
	}
	input.Filters.Query = validators.SanitizeString(search, maxSearchLength)

	if input.Cursor, err = parseCursor(r); err != nil {
		return input, err
	}
	if input.Page, err = parsePage(r, pagination.DefaultLimit); err != nil {
		return input, err
	}
	return input, nil
}

func ProductsFeatured(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", defaultFeaturedSize, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.Featured(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": items})
	}
}

// ProductGet accepts either the product id or its slug.
func ProductGet(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimSpace(chi.URLParam(r, "id"))
		if ref == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id or slug required"))
			return
		}
		item, err := svc.Get(r.Context(), ref)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func ProductRelated(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultRelatedSize, 1, 20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.Related(r.Context(), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"products": items})
	}
}

// ProductCreate stores the uploaded images first and removes them again if
// the product row cannot be written.
func ProductCreate(svc product.Service, uploader ImageUploader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var input product.CreateProductInput
		uploads, err := decodeProductForm(r, uploader, &input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(uploads) == 0 {
			responses.WriteError(r.Context(), logg, w, product.ErrImageRequired())
			return
		}

		images, err := uploader.ProductImages(r.Context(), uploads, input.Name)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Images = images

		created, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			discardImages(r, uploader, images, logg)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ProductUpdate replaces the gallery only when new files are attached.
func ProductUpdate(svc product.Service, uploader ImageUploader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input product.UpdateProductInput
		uploads, err := decodeProductForm(r, uploader, &input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var images []models.ProductImage
		if len(uploads) > 0 {
			alt := ""
			if input.Name != nil {
				alt = *input.Name
			}
			images, err = uploader.ProductImages(r.Context(), uploads, alt)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Images = &images
		}

		updated, err := svc.Update(r.Context(), id, input)
		if err != nil {
			discardImages(r, uploader, images, logg)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func ProductDeactivate(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// ProductAdjustStock applies a signed quantity; negative values write stock
// off.
func ProductAdjustStock(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body product.StockInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.AdjustStock(r.Context(), id, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func discardImages(r *http.Request, uploader ImageUploader, images []models.ProductImage, logg *logger.Logger) {
	if len(images) == 0 {
		return
	}
	if err := uploader.RemoveImages(r.Context(), images); err != nil && logg != nil {
		logg.Error(r.Context(), "product.upload_cleanup_failed", err)
	}
}
