package controller

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coldreach/coldreach-backend/internal/service"
)

type StepController struct {
	Steps *service.StepService
}

func (c *StepController) Add(w http.ResponseWriter, r *http.Request) {
	var in service.StepInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid body")
		return
	}

	step, err := c.Steps.Add(r.Context(), workspaceID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

func (c *StepController) List(w http.ResponseWriter, r *http.Request) {
	steps, err := c.Steps.List(r.Context(), workspaceID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": steps})
}

func (c *StepController) Update(w http.ResponseWriter, r *http.Request) {
	var in service.StepInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid body")
		return
	}

	step, err := c.Steps.Update(r.Context(), workspaceID(r), chi.URLParam(r, "id"), chi.URLParam(r, "stepID"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (c *StepController) Delete(w http.ResponseWriter, r *http.Request) {
	err := c.Steps.Delete(r.Context(), workspaceID(r), chi.URLParam(r, "id"), chi.URLParam(r, "stepID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *StepController) Reorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StepIDs []string `json:"step_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid body")
		return
	}

	if err := c.Steps.Reorder(r.Context(), workspaceID(r), chi.URLParam(r, "id"), body.StepIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}
