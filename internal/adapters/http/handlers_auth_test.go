package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic/internal/adapters/http/middleware"
)

func loginCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response (status %d)", rr.Code)
	return nil
}

func TestLoginMeLogout(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/admin/accounts", map[string]string{
		"email":    "mia@clinic.test",
		"name":     "Mia",
		"password": "correct horse battery",
		"role":     "staff",
	}, withCookie(env.admin))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account = %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "mia@clinic.test", "password": "wrong password!"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d, want 401", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "MIA@clinic.test", "password": "correct horse battery"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rr.Code, rr.Body.String())
	}
	cookie := loginCookie(t, rr)
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie flags = %+v", cookie)
	}

	rr = env.do(t, http.MethodGet, "/api/me", nil, withCookie(cookie))
	var me map[string]string
	decodeBody(t, rr, &me)
	if me["role"] != "staff" || me["email"] != "mia@clinic.test" {
		t.Fatalf("me = %v", me)
	}

	rr = env.do(t, http.MethodPost, "/api/me/password", map[string]string{
		"current_password": "wrong password!",
		"new_password":     "an even longer passphrase",
	}, withCookie(cookie))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("change with wrong current = %d, want 403", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/me/password", map[string]string{
		"current_password": "correct horse battery",
		"new_password":     "an even longer passphrase",
	}, withCookie(cookie))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("change password = %d: %s", rr.Code, rr.Body.String())
	}

	if rr := env.do(t, http.MethodPost, "/api/logout", nil, withCookie(cookie)); rr.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/api/me", nil, withCookie(cookie)); rr.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "mia@clinic.test", "password": "an even longer passphrase"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login with new password = %d", rr.Code)
	}
}

func TestLogin_ValidationErrorsListFields(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "not-an-email"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, rr, &body)
	if body.Fields["email"] != "email" || body.Fields["password"] != "required" {
		t.Errorf("fields = %v", body.Fields)
	}
}

func TestAdminAccounts_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/admin/accounts", nil, withCookie(env.staff))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("staff = %d, want 403", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/admin/accounts", map[string]string{
		"email": "x@clinic.test", "name": "X", "password": "short", "role": "staff",
	}, withCookie(env.admin))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("short password = %d, want 400", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/admin/accounts", nil, withCookie(env.admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("admin = %d", rr.Code)
	}
}

func TestPortal_RegisterLinkAndList(t *testing.T) {
	env := newTestEnv(t)
	env.book(t, "10:00")

	rr := env.do(t, http.MethodPost, "/api/portal/register", map[string]string{
		"email":    "lena@example.com",
		"name":     "Lena Vogt",
		"password": "my own long passphrase",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodPost, "/api/login", map[string]string{"email": "lena@example.com", "password": "my own long passphrase"})
	cookie := loginCookie(t, rr)

	rr = env.do(t, http.MethodGet, "/api/portal/appointments", nil, withCookie(cookie))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("before link = %d, want 404", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/portal/link", map[string]string{"date_of_birth": "1991-05-04"}, withCookie(cookie))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("wrong birthday = %d, want 403: %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodPost, "/api/portal/link", map[string]string{"date_of_birth": "1990-05-04"}, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("link = %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, http.MethodPost, "/api/portal/link", map[string]string{"date_of_birth": "1990-05-04"}, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("repeated link = %d, want 200", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/portal/appointments", nil, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("appointments = %d: %s", rr.Code, rr.Body.String())
	}
	var result struct {
		CustomerID string `json:"customer_id"`
	}
	decodeBody(t, rr, &result)
	if result.CustomerID != env.customerID {
		t.Errorf("customer_id = %q, want %q", result.CustomerID, env.customerID)
	}

	// Staff endpoints stay closed to portal accounts.
	if rr := env.do(t, http.MethodGet, "/api/customers", nil, withCookie(cookie)); rr.Code != http.StatusForbidden {
		t.Errorf("customer list as portal user = %d, want 403", rr.Code)
	}
}
