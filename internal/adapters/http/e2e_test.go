package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playwright-community/playwright-go"

	"clinic/internal/domain/appointment"
)

// e2eClient drives the API over a real TCP listener through Playwright's
// request context, the same client the tablet UI tests run on.
type e2eClient struct {
	api playwright.APIRequestContext
}

func newE2EClient(t *testing.T, env *testEnv) *e2eClient {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	pw, err := playwright.Run()
	if err != nil {
		t.Skipf("playwright driver not installed: %v", err)
	}
	t.Cleanup(func() { pw.Stop() })

	api, err := pw.Request.NewContext(playwright.APIRequestNewContextOptions{
		BaseURL: playwright.String(srv.URL),
	})
	if err != nil {
		t.Fatalf("request context: %v", err)
	}
	t.Cleanup(func() { api.Dispose() })
	return &e2eClient{api: api}
}

func (c *e2eClient) post(t *testing.T, path string, body any, headers map[string]string) playwright.APIResponse {
	t.Helper()
	resp, err := c.api.Post(path, playwright.APIRequestContextPostOptions{Data: body, Headers: headers})
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (c *e2eClient) get(t *testing.T, path string, headers map[string]string) playwright.APIResponse {
	t.Helper()
	resp, err := c.api.Get(path, playwright.APIRequestContextGetOptions{Headers: headers})
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// TestE2E_SalonWalkIn unlocks a tablet, books a walk-in and sees the slot
// taken on the next availability query.
func TestE2E_SalonWalkIn(t *testing.T) {
	env := newTestEnv(t)
	c := newE2EClient(t, env)

	resp := c.post(t, "/api/salon/unlock", map[string]string{"location": appointment.LocationKW, "pin": testPIN}, nil)
	if resp.Status() != http.StatusOK {
		t.Fatalf("unlock = %d", resp.Status())
	}
	var unlocked struct {
		Token string `json:"token"`
	}
	if err := resp.JSON(&unlocked); err != nil {
		t.Fatalf("unlock body: %v", err)
	}
	auth := map[string]string{"Authorization": "Bearer " + unlocked.Token}

	book := map[string]any{
		"customer_id":  env.customerID,
		"treatment_id": env.consultation,
		"date":         bookingDate,
		"start_time":   "16:00",
	}
	if resp := c.post(t, "/api/salon/appointments", book, auth); resp.Status() != http.StatusCreated {
		t.Fatalf("book = %d", resp.Status())
	}
	if resp := c.post(t, "/api/salon/appointments", book, auth); resp.Status() != http.StatusConflict {
		t.Fatalf("double book = %d, want 409", resp.Status())
	}

	resp = c.get(t, "/api/salon/slots?date="+bookingDate+"&treatment_id="+env.consultation, auth)
	if resp.Status() != http.StatusOK {
		t.Fatalf("slots = %d", resp.Status())
	}
	var slots struct {
		Slots []struct {
			Time    string `json:"time"`
			Blocked bool   `json:"blocked"`
		} `json:"slots"`
	}
	if err := resp.JSON(&slots); err != nil {
		t.Fatalf("slots body: %v", err)
	}
	for _, s := range slots.Slots {
		if s.Time == "16:00" && !s.Blocked {
			t.Error("booked slot still shown free")
		}
	}

	if resp := c.post(t, "/api/salon/lock", nil, auth); resp.Status() != http.StatusNoContent {
		t.Fatalf("lock = %d", resp.Status())
	}
	if resp := c.get(t, "/api/salon/treatments", auth); resp.Status() != http.StatusUnauthorized {
		t.Errorf("after lock = %d, want 401", resp.Status())
	}
}
