package middleware

import (
	"net/http"

	"github.com/seramic/shop-backend/api/responses"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
)

// Capability names what a protected route lets the caller do.
type Capability string

const (
	CapShop           Capability = "shop"
	CapManageCatalog  Capability = "catalog.manage"
	CapManageOrders   Capability = "orders.manage"
	CapViewReports    Capability = "orders.reports"
	CapModerate       Capability = "reviews.moderate"
	CapManageAccounts Capability = "accounts.manage"
)

var policy = map[Capability][]enums.Role{
	CapShop:           {enums.RoleCustomer, enums.RoleModerator, enums.RoleAdmin},
	CapManageCatalog:  {enums.RoleAdmin},
	CapManageOrders:   {enums.RoleAdmin},
	CapViewReports:    {enums.RoleAdmin},
	CapModerate:       {enums.RoleAdmin, enums.RoleModerator},
	CapManageAccounts: {enums.RoleAdmin},
}

// Allows reports whether role holds the capability. Unknown capabilities
// allow nobody.
func Allows(capability Capability, role enums.Role) bool {
	for _, r := range policy[capability] {
		if r == role {
			return true
		}
	}
	return false
}

// Require gates a route on a capability. It must run after Auth.
func Require(capability Capability, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "You are not logged in! Please log in to get access."))
				return
			}
			if !Allows(capability, actor.Role) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "You do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
