package web

import (
	"net/http"
	"time"

	"clinic/internal/application/orchestrators"
	emailDomain "clinic/internal/domain/email"
	"clinic/internal/domain/featureflag"
)

// handleListTemplates handles GET /api/templates?type=
func handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok {
		return
	}
	ts, err := stores.TemplateStore.List(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": toTemplateDTOs(ts)})
}

type sendTemplateEmailRequest struct {
	TemplateSlug string            `json:"template_slug" validate:"required"`
	To           string            `json:"to" validate:"omitempty,email"`
	CustomerID   string            `json:"customer_id" validate:"required_without=To"`
	Variables    map[string]string `json:"variables"`
}

// handleSendTemplateEmail handles POST /api/emails/send
// POST: 202 with the outbox entry ID; delivery happens in the worker
func handleSendTemplateEmail(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok {
		return
	}
	var req sendTemplateEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	to := req.To
	if to == "" {
		c, err := stores.CustomerStore.GetByID(r.Context(), req.CustomerID)
		if err != nil {
			writeError(w, err)
			return
		}
		to = c.Email
	}
	entryID, err := orchestrators.ExecuteSendTemplateEmail(r.Context(), orchestrators.SendTemplateEmailInput{
		TemplateSlug: req.TemplateSlug,
		To:           to,
		CustomerID:   req.CustomerID,
		Variables:    req.Variables,
		Actor:        actorFor(r, sess),
	}, orchestrators.SendTemplateEmailDeps{
		TemplateStore: stores.TemplateStore,
		OutboxStore:   stores.OutboxStore,
		AuditStore:    stores.AuditStore,
		GenerateID:    generateID,
		Now:           timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"outbox_id": entryID})
}

// handleListCampaigns handles GET /api/campaigns?status=
func handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok || !requireFeature(w, r, featureflag.KeyCampaigns, sess.Role) {
		return
	}
	cs, err := stores.CampaignStore.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		internalError(w, err)
		return
	}
	out := make([]campaignDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCampaignDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": out})
}

type saveCampaignRequest struct {
	ID              string     `json:"id"`
	Name            string     `json:"name" validate:"required,max=200"`
	Subject         string     `json:"subject" validate:"required,max=200"`
	BodyMarkdown    string     `json:"body_markdown"`
	TemplateID      string     `json:"template_id" validate:"required_without=BodyMarkdown"`
	SegmentLocation string     `json:"segment_location" validate:"omitempty,location"`
	EmailOptInOnly  *bool      `json:"email_opt_in_only"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
}

func campaignSendDeps() orchestrators.SendCampaignDeps {
	return orchestrators.SendCampaignDeps{
		CampaignStore: stores.CampaignStore,
		Recipients:    stores.CustomerStore,
		OutboxStore:   stores.OutboxStore,
		AuditStore:    stores.AuditStore,
		BatchSize:     cfg.CampaignBatchSize,
		GenerateID:    generateID,
		Now:           timeNow,
	}
}

// handleSaveCampaign handles POST /api/campaigns
// Marketing campaigns go to opted-in customers unless email_opt_in_only is false.
func handleSaveCampaign(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok || !requireFeature(w, r, featureflag.KeyCampaigns, sess.Role) {
		return
	}
	var req saveCampaignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	optInOnly := true
	if req.EmailOptInOnly != nil {
		optInOnly = *req.EmailOptInOnly
	}
	var scheduledAt time.Time
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}
	c, err := orchestrators.ExecuteSaveCampaign(r.Context(), orchestrators.SaveCampaignInput{
		ID:           req.ID,
		Name:         req.Name,
		Subject:      req.Subject,
		BodyMarkdown: req.BodyMarkdown,
		TemplateID:   req.TemplateID,
		Segment:      emailDomain.Segment{Location: req.SegmentLocation, EmailOptInOnly: optInOnly},
		ScheduledAt:  scheduledAt,
		Actor:        actorFor(r, sess),
	}, orchestrators.SaveCampaignDeps{
		CampaignStore: stores.CampaignStore,
		TemplateStore: stores.TemplateStore,
		GenerateID:    generateID,
		Now:           timeNow,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if req.ID == "" {
		status = http.StatusCreated
	}
	writeJSON(w, status, toCampaignDTO(c))
}

// handleSendCampaign handles POST /api/campaigns/{id}/send
func handleSendCampaign(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok || !requireFeature(w, r, featureflag.KeyCampaigns, sess.Role) {
		return
	}
	result, err := orchestrators.ExecuteSendCampaign(r.Context(), orchestrators.SendCampaignInput{
		CampaignID: r.PathValue("id"),
		Actor:      actorFor(r, sess),
	}, campaignSendDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"campaign":   toCampaignDTO(result.Campaign),
		"recipients": result.Recipients,
		"batches":    result.Batches,
	})
}
