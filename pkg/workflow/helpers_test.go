package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"p9e.in/launchpad/config"
	"p9e.in/launchpad/models"
)

var (
	engineer = Actor{ID: "de-1", Name: "Dana Engineer", Role: models.RoleDeploymentEngineer}
	opsMgr   = Actor{ID: "ops-1", Name: "Omar Ops", Role: models.RoleOpsManager}
	admin    = Actor{ID: "admin-1", Name: "Ada Admin", Role: models.RoleAdmin}
)

// newTestDB opens a private in-memory database with the real migrations.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrations(db))
	return db
}

// stepClock returns strictly increasing times so ordering by timestamp is
// deterministic.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

type testEnv struct {
	db    *gorm.DB
	svc   *Services
	clock *stepClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	svc := NewServices(db, zerolog.Nop())
	clock := newStepClock()
	for _, b := range []*base{&svc.Sites.base, &svc.Pages.base, &svc.Scoping.base, &svc.Procurement.base, &svc.GoLive.base} {
		b.now = clock.Now
	}
	return &testEnv{db: db, svc: svc, clock: clock}
}

func (e *testEnv) site(t *testing.T, status models.SiteStatus) *models.Site {
	t.Helper()
	site := &models.Site{Name: "Riverside Clinic", Status: status}
	require.NoError(t, e.db.Create(site).Error)
	return site
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *models.Site {
	t.Helper()
	var site models.Site
	require.NoError(t, e.db.First(&site, "id = ?", id).Error)
	return &site
}

// failSiteUpdates makes every UPDATE of the sites table fail.
func (e *testEnv) failSiteUpdates(t *testing.T) {
	t.Helper()
	err := e.db.Callback().Update().Before("gorm:update").Register("test:fail_site_updates", func(tx *gorm.DB) {
		if tx.Statement.Table == "sites" {
			tx.AddError(errors.New("sites table is read-only"))
		}
	})
	require.NoError(t, err)
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var werr *Error
	require.True(t, errors.As(err, &werr), "expected *Error, got %T: %v", err, err)
	require.Equal(t, kind, werr.Kind, werr.Message)
	return werr
}

func ptr[T any](v T) *T { return &v }

var ctx = context.Background()
