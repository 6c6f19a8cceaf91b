package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coldreach/coldreach-backend/internal/service"
)

type CampaignController struct {
	Campaigns *service.CampaignService
}

func (c *CampaignController) Create(w http.ResponseWriter, r *http.Request) {
	tenant := workspaceID(r)
	if tenant == "" {
		badRequest(w, "missing "+workspaceHeader+" header")
		return
	}

	var body struct {
		Name       string `json:"name"`
		DailyLimit int    `json:"daily_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if body.Name == "" {
		badRequest(w, "name is required")
		return
	}

	campaign, err := c.Campaigns.Create(r.Context(), tenant, body.Name, body.DailyLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.Campaigns.List(r.Context(), workspaceID(r), page, pageSize, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) Get(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.Campaigns.Get(r.Context(), workspaceID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) Start(w http.ResponseWriter, r *http.Request) {
	enqueued, err := c.Campaigns.Start(r.Context(), workspaceID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "RUNNING",
		"messages_queued": enqueued,
	})
}

func (c *CampaignController) Pause(w http.ResponseWriter, r *http.Request) {
	if err := c.Campaigns.Pause(r.Context(), workspaceID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "PAUSED"})
}
