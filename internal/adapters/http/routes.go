package web

import (
	"net/http"
	"time"

	"clinic/internal/adapters/http/middleware"
)

// registerRoutes wires every API route onto mux.
func registerRoutes(mux *http.ServeMux) {
	loginLimit := middleware.LimitByIP(max(cfg.LoginRateLimit, 1), time.Minute)
	unlockLimit := middleware.LimitByIP(max(cfg.UnlockRateLimit, 1), time.Minute)

	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /api/csrf", handleCSRFToken)

	// Auth
	mux.Handle("POST /api/login", loginLimit(http.HandlerFunc(handleLogin)))
	mux.HandleFunc("POST /api/logout", handleLogout)
	mux.HandleFunc("GET /api/me", handleMe)
	mux.HandleFunc("POST /api/me/password", handleChangePassword)
	mux.HandleFunc("GET /api/features", handleMyFeatures)

	// Customers
	mux.HandleFunc("GET /api/customers", handleListCustomers)
	mux.HandleFunc("POST /api/customers", handleUpsertCustomer)
	mux.HandleFunc("POST /api/customers/merge", handleMergeCustomers)
	mux.HandleFunc("GET /api/customers/{id}", handleGetCustomer)
	mux.HandleFunc("GET /api/customers/{id}/timeline", handleCustomerTimeline)
	mux.HandleFunc("POST /api/customers/{id}/records", handleLogTreatment)
	mux.HandleFunc("GET /api/customers/{id}/files", handleListFiles)
	mux.HandleFunc("POST /api/customers/{id}/files", handleUploadFile)
	mux.HandleFunc("GET /api/files/{id}/url", handleFileURL)
	mux.HandleFunc("DELETE /api/files/{id}", handleDeleteFile)

	// Treatments and appointments
	mux.HandleFunc("GET /api/treatments", handleListTreatments)
	mux.HandleFunc("GET /api/appointments", handleListAppointments)
	mux.HandleFunc("POST /api/appointments", handleBookAppointment)
	mux.HandleFunc("POST /api/appointments/{id}/status", handleAppointmentStatus)
	mux.HandleFunc("POST /api/appointments/{id}/cancel", handleCancelAppointment)
	mux.HandleFunc("GET /api/schedule/day", handleDaySchedule)
	mux.HandleFunc("GET /api/schedule/week", handleWeekSchedule)
	mux.HandleFunc("GET /api/slots", handleDaySlots)
	mux.HandleFunc("GET /api/slots/check", handleCheckSlot)

	// Dashboard
	mux.HandleFunc("GET /api/stats", handleRevenueStats)
	mux.HandleFunc("GET /api/birthdays", handleBirthdays)

	// Email
	mux.HandleFunc("GET /api/templates", handleListTemplates)
	mux.HandleFunc("POST /api/emails/send", handleSendTemplateEmail)
	mux.HandleFunc("GET /api/campaigns", handleListCampaigns)
	mux.HandleFunc("POST /api/campaigns", handleSaveCampaign)
	mux.HandleFunc("POST /api/campaigns/{id}/send", handleSendCampaign)

	// Admin
	mux.HandleFunc("GET /api/admin/outbox", handleAdminOutbox)
	mux.HandleFunc("POST /api/admin/outbox/{id}/retry", handleAdminOutboxRetry)
	mux.HandleFunc("POST /api/admin/outbox/{id}/abandon", handleAdminOutboxAbandon)
	mux.HandleFunc("GET /api/admin/audit", handleAdminAudit)
	mux.HandleFunc("GET /api/admin/perf", handleAdminPerf)
	mux.HandleFunc("GET /api/admin/accounts", handleListAccounts)
	mux.HandleFunc("POST /api/admin/accounts", handleCreateAccount)
	mux.HandleFunc("GET /api/admin/features", handleAdminFeatures)
	mux.HandleFunc("PUT /api/admin/features/{key}", handleAdminSetFeature)

	// Salon tablet
	mux.Handle("POST /api/salon/unlock", unlockLimit(http.HandlerFunc(handleSalonUnlock)))
	mux.HandleFunc("POST /api/salon/lock", handleSalonLock)
	mux.HandleFunc("GET /api/salon/dates", handleSalonDates)
	mux.HandleFunc("GET /api/salon/treatments", handleSalonTreatments)
	mux.HandleFunc("GET /api/salon/slots", handleSalonSlots)
	mux.HandleFunc("POST /api/salon/customers/search", handleSalonCustomerSearch)
	mux.HandleFunc("POST /api/salon/customers", handleSalonCreateCustomer)
	mux.HandleFunc("POST /api/salon/appointments", handleSalonBook)
	mux.HandleFunc("GET /api/salon/calendar", handleSalonCalendar)

	// Customer portal
	mux.Handle("POST /api/portal/register", loginLimit(http.HandlerFunc(handlePortalRegister)))
	mux.HandleFunc("POST /api/portal/link", handlePortalLink)
	mux.HandleFunc("GET /api/portal/appointments", handlePortalAppointments)
}
