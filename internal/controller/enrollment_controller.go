package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coldreach/coldreach-backend/internal/service"
)

type EnrollmentController struct {
	Enrollments *service.EnrollmentService
}

func (c *EnrollmentController) CreateLead(w http.ResponseWriter, r *http.Request) {
	tenant := workspaceID(r)
	if tenant == "" {
		badRequest(w, "missing "+workspaceHeader+" header")
		return
	}

	var body struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Company   string `json:"company"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid body")
		return
	}

	lead, err := c.Enrollments.CreateLead(r.Context(), tenant, body.Email, body.FirstName, body.LastName, body.Company)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (c *EnrollmentController) AddLeads(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LeadIDs []string `json:"lead_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if len(body.LeadIDs) == 0 {
		badRequest(w, "lead_ids is required")
		return
	}

	result, err := c.Enrollments.AddLeads(r.Context(), workspaceID(r), chi.URLParam(r, "id"), body.LeadIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *EnrollmentController) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	enrollments, total, err := c.Enrollments.List(r.Context(), workspaceID(r), chi.URLParam(r, "id"), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":        enrollments,
		"total_count": total,
	})
}

func (c *EnrollmentController) Remove(w http.ResponseWriter, r *http.Request) {
	err := c.Enrollments.Remove(r.Context(), workspaceID(r), chi.URLParam(r, "id"), chi.URLParam(r, "leadID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reply is the inbound hook the inbox collector calls when a tracked lead
// answers: the sequence stops and the reply is counted.
func (c *EnrollmentController) Reply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EmailAccountID string `json:"email_account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid body")
		return
	}

	err := c.Enrollments.HandleReply(r.Context(), workspaceID(r), chi.URLParam(r, "id"), chi.URLParam(r, "leadID"), body.EmailAccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (c *EnrollmentController) Bounce(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EmailAccountID string `json:"email_account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid body")
		return
	}

	err := c.Enrollments.HandleBounce(r.Context(), workspaceID(r), chi.URLParam(r, "id"), chi.URLParam(r, "leadID"), body.EmailAccountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (c *EnrollmentController) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	err := c.Enrollments.HandleUnsubscribe(r.Context(), workspaceID(r), chi.URLParam(r, "id"), chi.URLParam(r, "leadID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}
