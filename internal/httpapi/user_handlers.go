package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"accessd.org/internal/auth"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.List(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleGetUserByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.FindByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := a.users.FindByID(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	if err := a.users.Delete(r.Context(), id); err != nil {
		handleStoreError(w, r, err)
		return
	}
	if a.audit != nil {
		actor := ""
		if caller, ok := auth.IdentityFromContext(r.Context()); ok {
			actor = caller.Username
		}
		a.audit.UserDeleted(r.Context(), actor, user.Username)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChangePassword lets the caller rotate their own password. The
// current password is re-checked even though the request already carries a
// valid token: a stolen token alone must not be enough to lock the owner
// out.
func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validatePasswordChange(req); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	user, err := a.users.FindByUsername(r.Context(), caller.Username)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	if err := a.hasher.Verify(user.PasswordHash, req.CurrentPassword); err != nil {
		writeError(w, r, http.StatusBadRequest, "current password is incorrect")
		return
	}

	hash, err := a.hasher.Hash(req.NewPassword)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "password change failed")
		return
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := a.users.Save(r.Context(), user); err != nil {
		handleStoreError(w, r, err)
		return
	}

	if a.audit != nil {
		a.audit.PasswordChanged(r.Context(), user.Username)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "password changed",
	})
}

func validatePasswordChange(req changePasswordRequest) string {
	switch {
	case strings.TrimSpace(req.CurrentPassword) == "":
		return "current password is required"
	case req.NewPassword == "":
		return "new password is required"
	case len(req.NewPassword) < minPasswordLength:
		return "new password is too short"
	case req.NewPassword != req.ConfirmPassword:
		return "password confirmation does not match"
	}
	return ""
}
