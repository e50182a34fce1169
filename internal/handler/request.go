package handler

import (
	"net/http"
	"strconv"

	"github.com/forgo/exitlane/api/internal/middleware"
	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/internal/service"
)

// requireUser returns the authenticated user ID, writing 401 when there is none
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return "", false
	}
	return userID, true
}

// viewerFrom describes the caller for access decisions; anonymous callers
// get an empty UserID
func viewerFrom(r *http.Request) service.Viewer {
	return service.Viewer{
		UserID:  middleware.GetUserID(r.Context()),
		IsAdmin: middleware.IsAdmin(r.Context()),
	}
}

// decodeAndValidate decodes a JSON body and runs its Validate method,
// writing the error response itself when either fails
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{ Validate() []model.FieldError }) bool {
	if err := DecodeJSON(r, v); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return false
	}
	if errors := v.Validate(); len(errors) > 0 {
		WriteError(w, model.NewValidationError(errors))
		return false
	}
	return true
}

// parseLimit reads ?limit=, falling back to def and capping at ceiling
func parseLimit(r *http.Request, def, ceiling int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit
}

// parseOffset reads ?offset=, ignoring anything that is not a non-negative integer
func parseOffset(r *http.Request) int {
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}
