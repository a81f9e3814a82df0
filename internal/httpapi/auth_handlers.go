package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"konsult.org/internal/audit"
	"konsult.org/internal/auth"
	"konsult.org/internal/obs"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	User         auth.AccountView `json:"user"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			obs.ObserveAuth("register", "duplicate_email")
			writeError(w, http.StatusBadRequest, "email already registered")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "email and password are required")
		default:
			a.internalError(w, r, err)
		}
		return
	}

	obs.ObserveAuth("register", "success")
	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"account_id": session.Account.ID,
	})
	writeData(w, http.StatusCreated, sessionResponse{
		User:         session.Account.View(),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			// Unknown email and wrong password answer identically.
			obs.ObserveAuth("login", "invalid_credentials")
			_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
				"reason": "invalid_credentials",
			})
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrAccountInactive):
			obs.ObserveAuth("login", "inactive")
			_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
				"reason": "account_inactive",
			})
			writeError(w, http.StatusUnauthorized, "account is inactive")
		default:
			a.internalError(w, r, err)
		}
		return
	}

	obs.ObserveAuth("login", "success")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"account_id": session.Account.ID,
	})
	writeData(w, http.StatusOK, sessionResponse{
		User:         session.Account.View(),
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, "invalid token")
		return
	}

	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenInvalid):
			// The expired/invalid distinction stays in the audit log; the
			// client sees one message for both.
			reason := "invalid"
			if errors.Is(err, auth.ErrTokenExpired) {
				reason = "expired"
			}
			obs.ObserveAuth("refresh", reason)
			_ = audit.LogEvent(r.Context(), "auth.refresh.rejected", map[string]any{
				"reason": reason,
			})
			writeError(w, http.StatusUnauthorized, "invalid token")
		default:
			a.internalError(w, r, err)
		}
		return
	}

	obs.ObserveAuth("refresh", "success")
	writeData(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.auth.Logout(r.Context(), account); err != nil {
		a.internalError(w, r, err)
		return
	}
	obs.ObserveAuth("logout", "success")
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeData(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	fresh, err := a.auth.Profile(r.Context(), account)
	if err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		a.internalError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"user": fresh.View()})
}
