package controller

import (
	"net/http"

	"github.com/coldreach/coldreach-backend/internal/service"
)

type BillingController struct {
	Billing *service.BillingService
}

func (c *BillingController) Usage(w http.ResponseWriter, r *http.Request) {
	tenant := workspaceID(r)
	if tenant == "" {
		badRequest(w, "missing "+workspaceHeader+" header")
		return
	}

	usage, err := c.Billing.PlanAndUsage(r.Context(), tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
