package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"accessd.org/internal/auth"
	"accessd.org/internal/ids"
	"accessd.org/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	Authorities []string  `json:"authorities"`
}

type registerRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

const minPasswordLength = 6

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.gate.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrBadCredentials):
			obs.ObserveLogin("bad_credentials")
			writeError(w, r, http.StatusUnauthorized, "bad credentials")
		case errors.Is(err, auth.ErrAccountDisabled):
			obs.ObserveLogin("disabled")
			writeError(w, r, http.StatusUnauthorized, err.Error())
		default:
			obs.ObserveLogin("error")
			writeError(w, r, http.StatusInternalServerError, "login failed")
		}
		return
	}

	obs.ObserveLogin("success")
	writeJSON(w, http.StatusOK, loginResponse{
		Token:       session.Token,
		ExpiresAt:   session.ExpiresAt,
		ID:          session.Identity.UserID,
		Username:    session.Identity.Username,
		Email:       session.Identity.Email,
		Authorities: session.Identity.Authorities(),
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if msg := validateRegistration(username, email, req.Password); msg != "" {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}

	// Duplicate checks run before hashing so the common error path stays
	// cheap; the store's uniqueness constraints remain the backstop.
	if taken, err := a.users.ExistsByUsername(r.Context(), username); err != nil {
		handleStoreError(w, r, err)
		return
	} else if taken {
		writeError(w, r, http.StatusConflict, "username is already taken")
		return
	}
	if taken, err := a.users.ExistsByEmail(r.Context(), email); err != nil {
		handleStoreError(w, r, err)
		return
	} else if taken {
		writeError(w, r, http.StatusConflict, "email is already in use")
		return
	}

	roleNames := req.Roles
	if len(roleNames) == 0 {
		roleNames = []string{auth.DefaultRoleName}
	}
	roles := make([]auth.Role, 0, len(roleNames))
	for _, name := range roleNames {
		name = strings.TrimSpace(name)
		if name == "" {
			writeError(w, r, http.StatusBadRequest, "role name must not be blank")
			return
		}
		role, err := a.roles.FindByName(r.Context(), name)
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				writeError(w, r, http.StatusBadRequest,
					fmt.Sprintf("role %s not found", name))
				return
			}
			handleStoreError(w, r, err)
			return
		}
		roles = append(roles, *role)
	}

	hash, err := a.hasher.Hash(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "registration failed")
		return
	}

	now := time.Now().UTC()
	user := &auth.User{
		ID:                    ids.New(),
		Username:              username,
		Email:                 email,
		PasswordHash:          hash,
		Enabled:               true,
		AccountNonExpired:     true,
		AccountNonLocked:      true,
		CredentialsNonExpired: true,
		Roles:                 roles,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := a.users.Create(r.Context(), user); err != nil {
		handleStoreError(w, r, err)
		return
	}

	if a.audit != nil {
		a.audit.UserRegistered(r.Context(), username, roleNames)
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func validateRegistration(username, email, password string) string {
	switch {
	case username == "":
		return "username is required"
	case email == "":
		return "email is required"
	case password == "":
		return "password is required"
	case len(password) < minPasswordLength:
		return fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "email is invalid"
	}
	return ""
}
