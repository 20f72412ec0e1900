package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"

	"clinic/internal/adapters/http/middleware"
	accountStore "clinic/internal/adapters/storage/account"
	"clinic/internal/application/orchestrators"
	"clinic/internal/domain/account"
)

// requireRole answers 401 without a session and 403 for any other role.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (middleware.Session, bool) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		slog.Warn("auth_denied", "path", r.URL.Path, "reason", "no session")
		writeErrorMessage(w, http.StatusUnauthorized, "not authenticated")
		return middleware.Session{}, false
	}
	for _, role := range roles {
		if sess.Role == role {
			return sess, true
		}
	}
	slog.Warn("auth_denied", "path", r.URL.Path, "account_id", sess.AccountID, "role", sess.Role, "required", strings.Join(roles, "|"))
	writeErrorMessage(w, http.StatusForbidden, "forbidden")
	return middleware.Session{}, false
}

// requireStaff admits staff and admins.
func requireStaff(w http.ResponseWriter, r *http.Request) (middleware.Session, bool) {
	return requireRole(w, r, account.RoleAdmin, account.RoleStaff)
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (middleware.Session, bool) {
	return requireRole(w, r, account.RoleAdmin)
}

func requireCustomer(w http.ResponseWriter, r *http.Request) (middleware.Session, bool) {
	return requireRole(w, r, account.RoleCustomer)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": cfg.Version})
}

// handleCSRFToken hands the form token to clients that post multipart uploads.
func handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"token": csrf.Token(r)})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// handleLogin handles POST /api/login
// PRE: Body is a loginRequest
// POST: Sets the session cookie and returns the account
func handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: clientIP(r),
	}, orchestrators.LoginDeps{
		AccountStore: stores.AccountStore,
		AuditStore:   stores.AuditStore,
		Now:          timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := sessions.Create(result.AccountID, result.Email, result.Name, result.Role)
	if err != nil {
		internalError(w, err)
		return
	}
	middleware.SetSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    result.AccountID,
		"email": result.Email,
		"name":  result.Name,
		"role":  result.Role,
	})
}

// handleLogout handles POST /api/logout
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		sessions.Delete(cookie.Value)
	}
	middleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe handles GET /api/me
func handleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    sess.AccountID,
		"email": sess.Email,
		"name":  sess.Name,
		"role":  sess.Role,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=12"`
}

// handleChangePassword handles POST /api/me/password
// Any logged-in account may change its own password; the session stays valid.
func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		Actor:           actorFor(r, sess),
	}, orchestrators.ChangePasswordDeps{
		AccountStore: stores.AccountStore,
		AuditStore:   stores.AuditStore,
		Now:          timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required,min=12"`
	Role     string `json:"role" validate:"required,oneof=admin staff customer"`
}

// handleCreateAccount handles POST /api/admin/accounts
func handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	acct, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
		Actor:    actorFor(r, sess),
	}, createAccountDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

// handleListAccounts handles GET /api/admin/accounts
func handleListAccounts(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	accounts, err := stores.AccountStore.List(r.Context(), accountListFilter(r))
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]accountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func createAccountDeps() orchestrators.CreateAccountDeps {
	return orchestrators.CreateAccountDeps{
		AccountStore: stores.AccountStore,
		AuditStore:   stores.AuditStore,
		GenerateID:   generateID,
		Now:          timeNow,
	}
}

func accountListFilter(r *http.Request) accountStore.ListFilter {
	return accountStore.ListFilter{Role: r.URL.Query().Get("role"), Limit: 200}
}
