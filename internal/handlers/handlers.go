package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/internal/repository"
	"github.com/ruralhealth/screening-api/internal/service"
	"github.com/ruralhealth/screening-api/pkg/config"
)

type Handler struct {
	auth       *service.AuthService
	totp       *service.TOTPService
	encounters *service.EncounterService
	limiter    repository.RateLimiter
	cfg        *config.Config
}

func New(
	auth *service.AuthService,
	totp *service.TOTPService,
	encounters *service.EncounterService,
	limiter repository.RateLimiter,
	cfg *config.Config,
) *Handler {
	return &Handler{auth: auth, totp: totp, encounters: encounters, limiter: limiter, cfg: cfg}
}

// Routes mounts the API. Every route past /login requires a bearer token and
// declares exactly one capability.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/api/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/api/me", h.Me)

		r.With(RequirePerm(domain.CapAdminManage)).
			Post("/api/people/{person_id}/totp/init", h.ProvisionTOTP)

		r.With(RequirePerm(domain.CapEncounterSubmit)).
			Post("/api/verify-totp", h.VerifyTOTP)

		r.With(RequirePerm(domain.CapEncounterStart)).
			Post("/api/encounters/start", h.StartEncounter)
		r.With(RequirePerm(domain.CapEncounterSubmit)).
			Post("/api/encounters/{encounter_id}/submit", h.SubmitEncounter)

		r.With(RequirePerm(domain.CapQueueView)).
			Get("/api/queue", h.Queue)
		r.With(RequirePerm(domain.CapUnverifiedView)).
			Get("/api/encounters/unverified", h.Unverified)
		r.With(RequirePerm(domain.CapEncounterApprove)).
			Post("/api/encounters/{encounter_id}/approve", h.ApproveEncounter)
		r.With(RequirePerm(domain.CapEncounterReject)).
			Post("/api/encounters/{encounter_id}/reject", h.RejectEncounter)
	})

	return r
}

func pathID(r *http.Request, name string) (int64, bool) {
	return parseID(chi.URLParam(r, name))
}
