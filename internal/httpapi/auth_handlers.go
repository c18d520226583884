package httpapi

import (
	"errors"
	"net/http"
	"time"

	"notabene.org/internal/audit"
	"notabene.org/internal/auth"
	"notabene.org/internal/obs"
)

type loginRequest struct {
	LoginName string `json:"loginName"`
	Password  string `json:"password"`
}

type refreshRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	Token               string    `json:"token"`
	RefreshToken        string    `json:"refreshToken"`
	RefreshTokenExpires time.Time `json:"refreshTokenExpires"`
	Succeeded           bool      `json:"succeeded"`
}

type sessionFailure struct {
	Messages  []string `json:"messages"`
	Succeeded bool     `json:"succeeded"`
}

func writeSessionFailure(w http.ResponseWriter, code int, messages ...string) {
	writeJSON(w, code, sessionFailure{Messages: messages, Succeeded: false})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeSessionFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.deps.Sessions.Login(r.Context(), req.LoginName, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.ObserveLogin("invalid_credentials")
			_ = audit.LogEvent(r.Context(), "session.login.denied", map[string]any{
				"login": req.LoginName,
			})
			writeSessionFailure(w, http.StatusUnauthorized, "invalid login name or password")
			return
		}
		obs.ObserveLogin("error")
		writeSessionFailure(w, http.StatusInternalServerError, "login failed")
		return
	}

	obs.ObserveLogin("ok")
	_ = audit.LogEvent(r.Context(), "session.login", map[string]any{
		"login": req.LoginName,
	})
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:               session.Token,
		RefreshToken:        session.RefreshToken,
		RefreshTokenExpires: session.RefreshTokenExpires,
		Succeeded:           true,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeSessionFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.deps.Sessions.Refresh(r.Context(), req.Token, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			obs.ObserveRefresh("invalid_token")
			writeSessionFailure(w, http.StatusUnauthorized, "invalid token")
		case errors.Is(err, auth.ErrNoActiveSession):
			obs.ObserveRefresh("no_active_session")
			writeSessionFailure(w, http.StatusUnauthorized, "no active session")
		case errors.Is(err, auth.ErrRefreshTokenExpired):
			obs.ObserveRefresh("expired")
			writeSessionFailure(w, http.StatusUnauthorized, "refresh token expired")
		default:
			obs.ObserveRefresh("error")
			writeSessionFailure(w, http.StatusInternalServerError, "refresh failed")
		}
		return
	}

	obs.ObserveRefresh("ok")
	_ = audit.LogEvent(r.Context(), "session.refresh", nil)
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:               session.Token,
		RefreshToken:        session.RefreshToken,
		RefreshTokenExpires: session.RefreshTokenExpires,
		Succeeded:           true,
	})
}
