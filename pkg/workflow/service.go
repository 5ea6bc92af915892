// Package workflow implements the site deployment lifecycle: scoping
// approvals, procurement, the deployment checklist and go-live. Every
// operation validates before it mutates and runs its writes in a single
// transaction.
package workflow

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"p9e.in/launchpad/pkg/metrics"
)

type base struct {
	db  *gorm.DB
	log zerolog.Logger
	now func() time.Time
}

func newBase(db *gorm.DB, log zerolog.Logger, component string) base {
	return base{
		db:  db,
		log: log.With().Str("component", component).Logger(),
		now: time.Now,
	}
}

// observe records the outcome of a workflow operation.
func observe(workflow, action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	metrics.WorkflowTransitions.WithLabelValues(workflow, action, outcome).Inc()
}

// Services bundles the workflow services sharing one database handle.
type Services struct {
	Sites       *SiteService
	Pages       *PageService
	Scoping     *ScopingService
	Procurement *ProcurementService
	GoLive      *GoLiveService
}

func NewServices(db *gorm.DB, log zerolog.Logger) *Services {
	return &Services{
		Sites:       NewSiteService(db, log),
		Pages:       NewPageService(db, log),
		Scoping:     NewScopingService(db, log),
		Procurement: NewProcurementService(db, log),
		GoLive:      NewGoLiveService(db, log),
	}
}
