package workflow

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p9e.in/launchpad/models"
)

func TestGoLiveRequiresDeployedSite(t *testing.T) {
	env := newTestEnv(t)

	for _, status := range []models.SiteStatus{models.SiteScopingDone, models.SiteProcurementDone} {
		site := env.site(t, status)
		_, err := env.svc.GoLive.Activate(ctx, engineer, site.ID, GoLiveInput{Notes: ptr("ready")})
		requireKind(t, err, KindPrerequisite)
		assert.Equal(t, status, env.reload(t, site.ID).Status)
	}

	_, err := env.svc.GoLive.Activate(ctx, engineer, uuid.New(), GoLiveInput{Notes: ptr("ready")})
	requireKind(t, err, KindNotFound)
}

func TestGoLiveNotesValidation(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteDeployed)

	for name, in := range map[string]GoLiveInput{
		"missing":  {},
		"blank":    {Notes: ptr("   ")},
		"too long": {Notes: ptr(strings.Repeat("n", 5001))},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.GoLive.Activate(ctx, engineer, site.ID, in)
			werr := requireKind(t, err, KindValidation)
			assert.True(t, werr.Unprocessable())
			assert.Contains(t, werr.Details, "notes")
		})
	}

	_, err := env.svc.GoLive.Activate(ctx, opsMgr, site.ID, GoLiveInput{Notes: ptr("ready")})
	requireKind(t, err, KindForbidden)
	assert.Equal(t, models.SiteDeployed, env.reload(t, site.ID).Status)
}

func TestGoLiveActivateDeactivate(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteDeployed)

	live, err := env.svc.GoLive.Activate(ctx, engineer, site.ID, GoLiveInput{Notes: ptr(strings.Repeat("n", 5000))})
	require.NoError(t, err)
	assert.Equal(t, models.GoLiveLive, live.Status)
	require.NotNil(t, live.GoLiveDate)
	require.NotNil(t, live.SignedOffBy)
	assert.Equal(t, engineer.ID, *live.SignedOffBy)
	assert.Equal(t, models.SiteLive, env.reload(t, site.ID).Status)

	signedAt := *live.GoLiveDate

	offline, err := env.svc.GoLive.Deactivate(ctx, admin, site.ID, GoLiveInput{Notes: ptr("maintenance window")})
	require.NoError(t, err)
	assert.Equal(t, models.GoLiveOffline, offline.Status)
	assert.Equal(t, "maintenance window", *offline.Notes)
	assert.True(t, signedAt.Equal(*offline.GoLiveDate))
	assert.Equal(t, engineer.ID, *offline.SignedOffBy)
	assert.Equal(t, models.SiteProcurementDone, env.reload(t, site.ID).Status)

	_, err = env.svc.GoLive.Deactivate(ctx, admin, site.ID, GoLiveInput{})
	requireKind(t, err, KindValidation)

	stored, err := env.svc.GoLive.Get(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GoLiveOffline, stored.Status)
	assert.Equal(t, offline.ID, stored.ID)
}

func TestGoLiveDeactivateKeepsNotesWhenOmitted(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteDeployed)

	_, err := env.svc.GoLive.Activate(ctx, engineer, site.ID, GoLiveInput{Notes: ptr("signed off by clinic lead")})
	require.NoError(t, err)

	offline, err := env.svc.GoLive.Deactivate(ctx, engineer, site.ID, GoLiveInput{})
	require.NoError(t, err)
	assert.Equal(t, "signed off by clinic lead", *offline.Notes)
}

func TestGoLiveDeactivateWithoutRecord(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteDeployed)

	_, err := env.svc.GoLive.Deactivate(ctx, engineer, site.ID, GoLiveInput{})
	requireKind(t, err, KindNotFound)
	_, err = env.svc.GoLive.Get(ctx, site.ID)
	requireKind(t, err, KindNotFound)
}

func TestGoLiveReactivateAfterRedeploy(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteDeployed)

	first, err := env.svc.GoLive.Activate(ctx, engineer, site.ID, GoLiveInput{Notes: ptr("v1")})
	require.NoError(t, err)
	_, err = env.svc.GoLive.Deactivate(ctx, engineer, site.ID, GoLiveInput{})
	require.NoError(t, err)

	require.NoError(t, env.db.Model(&models.Site{}).Where("id = ?", site.ID).Update("status", models.SiteDeployed).Error)

	second, err := env.svc.GoLive.Activate(ctx, admin, site.ID, GoLiveInput{Notes: ptr("v2")})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, admin.ID, *second.SignedOffBy)
	assert.True(t, second.GoLiveDate.After(*first.GoLiveDate))
}

func TestGoLiveSiteUpdateFailureIsLogged(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteDeployed)
	env.failSiteUpdates(t)

	live, err := env.svc.GoLive.Activate(ctx, engineer, site.ID, GoLiveInput{Notes: ptr("ready")})
	require.NoError(t, err)
	assert.Equal(t, models.GoLiveLive, live.Status)

	stored, err := env.svc.GoLive.Get(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GoLiveLive, stored.Status)
	assert.Equal(t, models.SiteDeployed, env.reload(t, site.ID).Status)
}
