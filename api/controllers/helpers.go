package controllers

import (
	"net/http"

	"github.com/seramic/shop-backend/api/middleware"
	"github.com/seramic/shop-backend/api/responses"
	"github.com/seramic/shop-backend/api/validators"
	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/pagination"
)

const maxPageNumber = 10000

// requireActor writes 401 and returns false when the route ran without Auth.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (pkgAuth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "You are not logged in! Please log in to get access."))
		return pkgAuth.Actor{}, false
	}
	return actor, true
}

func parsePage(r *http.Request, defaultLimit int) (pagination.Page, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, maxPageNumber)
	if err != nil {
		return pagination.Page{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", defaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Page{}, err
	}
	return pagination.Page{Page: page, Limit: limit}.Normalize(), nil
}

func parseCursor(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}, nil
}
