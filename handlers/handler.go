package handlers

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"p9e.in/launchpad/middleware"
	"p9e.in/launchpad/pkg/otp"
	"p9e.in/launchpad/pkg/storage"
	"p9e.in/launchpad/pkg/workflow"
)

// Handler serves the HTTP API on top of the workflow services.
type Handler struct {
	db       *gorm.DB
	services *workflow.Services
	auth     *middleware.Auth
	otp      otp.Store
	sender   otp.Sender
	otpTTL   time.Duration
	receipts storage.Store
	log      zerolog.Logger
	now      func() time.Time
}

type Deps struct {
	DB       *gorm.DB
	Services *workflow.Services
	Auth     *middleware.Auth
	OTP      otp.Store
	Sender   otp.Sender
	OTPTTL   time.Duration
	Receipts storage.Store
	Log      zerolog.Logger
}

func New(d Deps) *Handler {
	ttl := d.OTPTTL
	if ttl <= 0 {
		ttl = otp.DefaultTTL
	}
	return &Handler{
		db:       d.DB,
		services: d.Services,
		auth:     d.Auth,
		otp:      d.OTP,
		sender:   d.Sender,
		otpTTL:   ttl,
		receipts: d.Receipts,
		log:      d.Log.With().Str("component", "http").Logger(),
		now:      time.Now,
	}
}
