package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/zapdeck/session-server/internal/errors"
	"github.com/zapdeck/session-server/internal/httputil"
	"github.com/zapdeck/session-server/internal/middleware"
	"github.com/zapdeck/session-server/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeJSON rejects malformed bodies with a validation error.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.ValidationError("Invalid request body")
	}
	return nil
}

// requireOwner returns the authenticated owner or writes 401.
func requireOwner(w http.ResponseWriter, r *http.Request) *model.Owner {
	owner := middleware.GetOwner(r.Context())
	if owner == nil {
		writeError(w, apperrors.Unauthorized("Unauthorized"))
		return nil
	}
	return owner
}

func sessionView(session model.Session, status model.StatusInfo) model.SessionView {
	return model.SessionView{Session: session, StatusInfo: status}
}
