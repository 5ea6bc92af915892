package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"p9e.in/launchpad/handlers"
	"p9e.in/launchpad/middleware"
	"p9e.in/launchpad/models"
)

type Options struct {
	CORSOrigin string
	// OTPLimiter throttles code requests per client IP. Nil disables it.
	OTPLimiter *middleware.RateLimiter
	// UploadDir is served under /uploads/ when receipts are stored locally.
	UploadDir string
	Log       zerolog.Logger
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(h *handlers.Handler, auth *middleware.Auth, opts Options) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Observe(opts.Log))

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	if opts.UploadDir != "" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))),
		)
	}

	public := r.PathPrefix("/api/v1/auth").Subrouter()
	send := http.Handler(http.HandlerFunc(h.SendOTP))
	if opts.OTPLimiter != nil {
		send = opts.OTPLimiter.Middleware(send)
	}
	public.Handle("/otp/send", send).Methods("POST")
	public.HandleFunc("/otp/verify", h.VerifyOTP).Methods("POST")
	public.HandleFunc("/logout", h.Logout).Methods("POST")

	// =====================================================
	// Protected API Routes (require a session)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware)

	api.HandleFunc("/auth/me", h.Me).Methods("GET")

	registerSiteRoutes(api, h)
	registerPageRoutes(api, h)
	registerScopingRoutes(api, h)
	registerProcurementRoutes(api, h)
	registerGoLiveRoutes(api, h)

	// CORS wraps the router so preflight requests never reach method matching
	return middleware.CORS(opts.CORSOrigin)(r)
}

func registerSiteRoutes(api *mux.Router, h *handlers.Handler) {
	api.HandleFunc("/sites", h.ListSites).Methods("GET")
	api.HandleFunc("/sites", h.CreateSite).Methods("POST")
	api.HandleFunc("/sites/{id}", h.GetSite).Methods("GET")
	api.HandleFunc("/sites/{id}", h.UpdateSite).Methods("PUT")
	api.HandleFunc("/sites/{id}", h.DeleteSite).Methods("DELETE")
	api.HandleFunc("/sites/{id}/stage", h.MarkSiteStage).Methods("POST")
}

func registerPageRoutes(api *mux.Router, h *handlers.Handler) {
	api.HandleFunc("/pages", h.GetPages).Methods("GET")
	api.HandleFunc("/pages", h.CreatePage).Methods("POST")
	api.HandleFunc("/pages", h.UpdatePage).Methods("PUT")
	api.HandleFunc("/pages/{id}", h.DeletePage).Methods("DELETE")
}

func registerScopingRoutes(api *mux.Router, h *handlers.Handler) {
	api.HandleFunc("/sites/{id}/scoping/submit", h.SubmitScoping).Methods("POST")
	api.HandleFunc("/sites/{id}/scoping/resubmit", h.ResubmitScoping).Methods("POST")

	api.HandleFunc("/scoping-approvals", h.ListApprovals).Methods("GET")
	// export is registered before {id} so it is not captured as an id
	api.Handle("/scoping-approvals/export",
		middleware.RequireRole(models.RoleAdmin, models.RoleOpsManager)(http.HandlerFunc(h.ExportApprovals)),
	).Methods("GET")
	api.HandleFunc("/scoping-approvals/{id}", h.GetApproval).Methods("GET")
	api.HandleFunc("/scoping-approvals/{id}/history", h.ApprovalHistory).Methods("GET")
	api.HandleFunc("/scoping-approvals/{id}/approve", h.ApproveScoping).Methods("POST")
	api.HandleFunc("/scoping-approvals/{id}/reject", h.RejectScoping).Methods("POST")
}

func registerProcurementRoutes(api *mux.Router, h *handlers.Handler) {
	api.HandleFunc("/sites/{id}/procurement", h.GetProcurement).Methods("GET")
	api.HandleFunc("/sites/{id}/procurement", h.SaveProcurement).Methods("PUT")
	api.HandleFunc("/sites/{id}/procurement/complete", h.CompleteProcurement).Methods("POST")
	api.HandleFunc("/sites/{id}/procurement/receipt", h.UploadReceipt).Methods("POST")
}

func registerGoLiveRoutes(api *mux.Router, h *handlers.Handler) {
	api.HandleFunc("/sites/{id}/go-live", h.GetGoLive).Methods("GET")
	api.HandleFunc("/sites/{id}/go-live", h.ActivateGoLive).Methods("POST")
	api.HandleFunc("/sites/{id}/go-live", h.DeactivateGoLive).Methods("PUT")
}
