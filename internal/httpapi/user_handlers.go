package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"notabene.org/internal/audit"
	"notabene.org/internal/auth"
)

type createUserRequest struct {
	LoginName string `json:"loginName"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

type updateUserRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	IsActive *bool   `json:"isActive"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

type replacePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// userResponse deliberately omits the credential hash and the refresh
// token pair.
type userResponse struct {
	ID             string    `json:"id"`
	LoginName      string    `json:"loginName"`
	FullName       string    `json:"fullName,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedOn      time.Time `json:"createdOn"`
	LastModifiedBy string    `json:"lastModifiedBy,omitempty"`
	LastModifiedOn time.Time `json:"lastModifiedOn"`
}

func toUserResponse(u *auth.UserAccount) userResponse {
	return userResponse{
		ID:             u.ID,
		LoginName:      u.LoginName,
		FullName:       u.FullName,
		Email:          u.Email,
		Phone:          u.Phone,
		IsActive:       u.IsActive,
		CreatedBy:      u.CreatedBy,
		CreatedOn:      u.CreatedOn,
		LastModifiedBy: u.LastModifiedBy,
		LastModifiedOn: u.LastModifiedOn,
	}
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermUsersView) {
			return
		}
		users, err := a.deps.Accounts.List(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		out := make([]userResponse, 0, len(users))
		for _, u := range users {
			out = append(out, toUserResponse(u))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermUsersCreate) {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.deps.Accounts.Create(r.Context(), actor(r), auth.NewAccount{
			LoginName: req.LoginName,
			FullName:  req.FullName,
			Email:     req.Email,
			Phone:     req.Phone,
			Password:  req.Password,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.create", map[string]any{
			"user_id": user.ID,
			"login":   user.LoginName,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
		writeJSON(w, http.StatusCreated, toUserResponse(user))
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		a.handleUser(w, r, id)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleUserPermissions(w, r, id)
	case len(parts) == 2 && parts[1] == "password":
		a.handleUserPassword(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUser(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermUsersView) {
			return
		}
		user, err := a.deps.Accounts.Get(r.Context(), id)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(user))
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermUsersUpdate) {
			return
		}
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.deps.Accounts.Update(r.Context(), actor(r), id, auth.AccountUpdate{
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    req.Phone,
			IsActive: req.IsActive,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.update", map[string]any{"user_id": id})
		writeJSON(w, http.StatusOK, toUserResponse(user))
	case http.MethodDelete:
		if !a.ensurePermission(w, r, auth.PermUsersDelete) {
			return
		}
		if err := a.deps.Accounts.Delete(r.Context(), id); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.delete", map[string]any{"user_id": id})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleUserPermissions(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermUsersView) {
			return
		}
		codes, err := a.deps.Accounts.Permissions(r.Context(), id)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		if codes == nil {
			codes = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"permissions": codes})
	case http.MethodPut:
		if !a.ensurePermission(w, r, auth.PermUsersManagePermissions) {
			return
		}
		var req replacePermissionsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.deps.Accounts.ReplacePermissions(r.Context(), actor(r), id, req.Permissions); err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "user.permissions.replace", map[string]any{
			"user_id": id,
			"count":   len(req.Permissions),
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleUserPassword(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	if !a.ensurePermission(w, r, auth.PermUsersUpdate) {
		return
	}
	var req setPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.deps.Accounts.SetPassword(r.Context(), actor(r), id, req.Password); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.password.set", map[string]any{"user_id": id})
	w.WriteHeader(http.StatusNoContent)
}

// handlePermissionCatalog lists every grantable code, grouped by feature,
// for permission management screens.
func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, auth.PermUsersManagePermissions) {
		return
	}
	type category struct {
		Name  string   `json:"name"`
		Codes []string `json:"codes"`
	}
	catalog := a.deps.Accounts.Catalog()
	out := make([]category, 0, len(catalog))
	for _, cat := range catalog {
		out = append(out, category{Name: cat.Name, Codes: cat.Codes})
	}
	writeJSON(w, http.StatusOK, out)
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
