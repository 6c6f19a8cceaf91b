package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every controller under the API routes.
func NewRouter(
	campaigns *CampaignController,
	steps *StepController,
	enrollments *EnrollmentController,
	billing *BillingController,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", campaigns.Create)
		r.Get("/", campaigns.List)
		r.Get("/{id}", campaigns.Get)
		r.Post("/{id}/start", campaigns.Start)
		r.Post("/{id}/pause", campaigns.Pause)

		r.Route("/{id}/steps", func(r chi.Router) {
			r.Post("/", steps.Add)
			r.Get("/", steps.List)
			r.Put("/reorder", steps.Reorder)
			r.Put("/{stepID}", steps.Update)
			r.Delete("/{stepID}", steps.Delete)
		})

		r.Route("/{id}/leads", func(r chi.Router) {
			r.Post("/", enrollments.AddLeads)
			r.Get("/", enrollments.List)
			r.Delete("/{leadID}", enrollments.Remove)
			r.Post("/{leadID}/reply", enrollments.Reply)
			r.Post("/{leadID}/bounce", enrollments.Bounce)
			r.Post("/{leadID}/unsubscribe", enrollments.Unsubscribe)
		})
	})

	r.Post("/leads", enrollments.CreateLead)
	r.Get("/usage", billing.Usage)

	return r
}
