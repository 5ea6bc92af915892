package workflow

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p9e.in/launchpad/models"
	"p9e.in/launchpad/pkg/deployment"
)

func stepsJSON(t *testing.T, statuses ...deployment.StepStatus) json.RawMessage {
	t.Helper()
	steps := deployment.DefaultSteps()
	for i, st := range statuses {
		steps[i].Status = st
		if st == deployment.StatusCompleted {
			steps[i].CompletedAt = "2025-03-02T10:00:00Z"
			if steps[i].ID == deployment.HardwareDelivery {
				steps[i].DeliveryReceipt = "https://files.example.com/receipts/hw.pdf"
			}
		}
	}
	raw, err := json.Marshal(steps)
	require.NoError(t, err)
	return raw
}

func stepsUpdate(siteID uuid.UUID, steps json.RawMessage) PageInput {
	return PageInput{
		SiteID:   &siteID,
		PageName: deployment.Page,
		Sections: []SectionInput{{
			SectionName: deployment.ChecklistSection,
			Fields:      []FieldInput{{FieldName: deployment.StepsField, FieldValue: steps}},
		}},
	}
}

func fieldValue(t *testing.T, page *models.Page, section, field string) string {
	t.Helper()
	s := page.Section(section)
	require.NotNil(t, s, "section %s", section)
	f := s.Field(field)
	require.NotNil(t, f, "field %s.%s", section, field)
	return string(f.FieldValue)
}

func storedSteps(t *testing.T, page *models.Page) []deployment.Step {
	t.Helper()
	var steps []deployment.Step
	require.NoError(t, json.Unmarshal([]byte(fieldValue(t, page, deployment.ChecklistSection, deployment.StepsField)), &steps))
	return steps
}

func (e *testEnv) deploymentPage(t *testing.T, site *models.Site) *models.Page {
	t.Helper()
	page, err := e.svc.Pages.Create(ctx, engineer, PageInput{
		SiteID:   &site.ID,
		PageName: deployment.Page,
		Sections: []SectionInput{{
			SectionName: deployment.InstallationSection,
			Fields: []FieldInput{
				{FieldName: deployment.DeploymentEngineerField, FieldValue: json.RawMessage(`"Dana Engineer"`)},
				{FieldName: deployment.StartDateField, FieldValue: json.RawMessage(`"2025-03-10"`)},
			},
		}},
	})
	require.NoError(t, err)
	return page
}

func TestCreateDeploymentPageSeedsChecklist(t *testing.T) {
	env := newTestEnv(t)

	page, err := env.svc.Pages.Create(ctx, engineer, PageInput{SiteName: "Harbor Pharmacy", PageName: deployment.Page})
	require.NoError(t, err)

	site := env.reload(t, page.SiteID)
	assert.Equal(t, "Harbor Pharmacy", site.Name)
	assert.Equal(t, models.SiteCreated, site.Status)

	steps := storedSteps(t, page)
	require.Len(t, steps, 4)
	for i, id := range deployment.CanonicalOrder {
		assert.Equal(t, id, steps[i].ID)
		assert.Equal(t, deployment.StatusPending, steps[i].Status)
	}
}

func TestCreatePageDuplicateName(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteCreated)
	env.deploymentPage(t, site)

	_, err := env.svc.Pages.Create(ctx, engineer, PageInput{SiteID: &site.ID, PageName: deployment.Page})
	requireKind(t, err, KindConflict)
}

func TestChecklistCompletionDeploysSite(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteProcurementDone)
	env.deploymentPage(t, site)

	c, ip, p := deployment.StatusCompleted, deployment.StatusInProgress, deployment.StatusPending

	page, err := env.svc.Pages.Update(ctx, engineer, stepsUpdate(site.ID, stepsJSON(t, c, ip, p, p)))
	require.NoError(t, err)
	assert.Equal(t, "25", fieldValue(t, page, deployment.InstallationSection, deployment.ProgressField))
	assert.Equal(t, models.SiteProcurementDone, env.reload(t, site.ID).Status)

	page, err = env.svc.Pages.Update(ctx, engineer, stepsUpdate(site.ID, stepsJSON(t, c, c, c, c)))
	require.NoError(t, err)
	assert.Equal(t, "100", fieldValue(t, page, deployment.InstallationSection, deployment.ProgressField))
	assert.Equal(t, models.SiteDeployed, env.reload(t, site.ID).Status)

	// the other installation fields are untouched
	assert.JSONEq(t, `"Dana Engineer"`, fieldValue(t, page, deployment.InstallationSection, deployment.DeploymentEngineerField))
}

func TestChecklistCompletionLeavesLiveSite(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteLive)
	env.deploymentPage(t, site)

	c := deployment.StatusCompleted
	_, err := env.svc.Pages.Update(ctx, engineer, stepsUpdate(site.ID, stepsJSON(t, c, c, c, c)))
	require.NoError(t, err)
	assert.Equal(t, models.SiteLive, env.reload(t, site.ID).Status)
}

func TestChecklistRejectsOutOfOrderCompletion(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteProcurementDone)
	env.deploymentPage(t, site)

	c, p := deployment.StatusCompleted, deployment.StatusPending
	in := stepsUpdate(site.ID, stepsJSON(t, p, c, p, p))
	in.Sections = append(in.Sections, SectionInput{
		SectionName: deployment.InstallationSection,
		Fields:      []FieldInput{{FieldName: deployment.TargetDateField, FieldValue: json.RawMessage(`"2025-04-30"`)}},
	})

	_, err := env.svc.Pages.Update(ctx, engineer, in)
	werr := requireKind(t, err, KindValidation)
	assert.Contains(t, werr.Details, deployment.StepsField)

	page, err := env.svc.Pages.Get(ctx, site.ID, deployment.Page)
	require.NoError(t, err)
	for _, step := range storedSteps(t, page) {
		assert.Equal(t, deployment.StatusPending, step.Status)
	}
	assert.Nil(t, page.Section(deployment.InstallationSection).Field(deployment.TargetDateField))
}

func TestChecklistRejectsInvalidSteps(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteProcurementDone)
	env.deploymentPage(t, site)

	for name, raw := range map[string]string{
		"hardware completed without receipt": `[{"id":"hardware_delivery","name":"Hardware Delivery","status":"completed","estimatedHours":4}]`,
		"boolean hours":                      `[{"id":"network_setup","name":"Network Setup","status":"pending","estimatedHours":true}]`,
		"unknown status":                     `[{"id":"network_setup","name":"Network Setup","status":"done","estimatedHours":6}]`,
		"not json":                           `[{"id":`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.svc.Pages.Update(ctx, engineer, stepsUpdate(site.ID, json.RawMessage(raw)))
			requireKind(t, err, KindValidation)
		})
	}

	// numeric strings are accepted for hours
	_, err := env.svc.Pages.Update(ctx, engineer, stepsUpdate(site.ID,
		json.RawMessage(`[{"id":"network_setup","name":"Network Setup","status":"pending","estimatedHours":"6.5"}]`)))
	require.NoError(t, err)
}

func TestInstallationDatesValidatedAgainstStoredValues(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteProcurementDone)
	env.deploymentPage(t, site)

	in := PageInput{
		SiteID:   &site.ID,
		PageName: deployment.Page,
		Sections: []SectionInput{{
			SectionName: deployment.InstallationSection,
			Fields:      []FieldInput{{FieldName: deployment.TargetDateField, FieldValue: json.RawMessage(`"2025-03-01"`)}},
		}},
	}
	_, err := env.svc.Pages.Update(ctx, engineer, in)
	werr := requireKind(t, err, KindValidation)
	assert.Equal(t, "must not be before start_date", werr.Details[deployment.TargetDateField])

	in.Sections[0].Fields[0].FieldValue = json.RawMessage(`"2025-03-31"`)
	page, err := env.svc.Pages.Update(ctx, engineer, in)
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-03-31"`, fieldValue(t, page, deployment.InstallationSection, deployment.TargetDateField))

	in.Sections[0].Fields[0] = FieldInput{FieldName: deployment.ProgressField, FieldValue: json.RawMessage(`140`)}
	_, err = env.svc.Pages.Update(ctx, engineer, in)
	requireKind(t, err, KindValidation)
}

func TestTestingNotes(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteProcurementDone)
	env.deploymentPage(t, site)

	notes := func(raw string) PageInput {
		return PageInput{
			SiteID:   &site.ID,
			PageName: deployment.Page,
			Sections: []SectionInput{{
				SectionName: deployment.TestingSection,
				Fields:      []FieldInput{{FieldName: deployment.NotesField, FieldValue: json.RawMessage(raw)}},
			}},
		}
	}

	_, err := env.svc.Pages.Update(ctx, engineer, notes(`[{"id":1,"content":"printer ok","timestamp":"2025-03-03T09:00:00Z"}]`))
	requireKind(t, err, KindValidation)

	page, err := env.svc.Pages.Update(ctx, engineer,
		notes(`[{"id":1,"author":"Dana","content":"printer ok","timestamp":"2025-03-03T09:00:00Z"},{"id":"n-2","author":"Omar","content":"scanner ok","timestamp":"2025-03-03T10:00:00Z"}]`))
	require.NoError(t, err)

	var stored []deployment.Note
	require.NoError(t, json.Unmarshal([]byte(fieldValue(t, page, deployment.TestingSection, deployment.NotesField)), &stored))
	require.Len(t, stored, 2)
	assert.Equal(t, "Dana", stored[0].Author)
	assert.JSONEq(t, `"n-2"`, string(stored[1].ID))
}

func TestScalarPagesStoreValuesAsSent(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteCreated)

	page, err := env.svc.Pages.Create(ctx, engineer, PageInput{
		SiteID:   &site.ID,
		PageName: "site_study",
		Sections: []SectionInput{{
			SectionName: "survey",
			Fields: []FieldInput{
				{FieldName: "floor_area", FieldValue: json.RawMessage(`120.5`)},
				{FieldName: "remarks", FieldValue: json.RawMessage(`needs ramp`)},
				{FieldName: "steps", FieldValue: json.RawMessage(`"anything goes"`)},
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "120.5", fieldValue(t, page, "survey", "floor_area"))
	assert.Equal(t, `"needs ramp"`, fieldValue(t, page, "survey", "remarks"))
	assert.Nil(t, page.Section(deployment.ChecklistSection))

	fieldID := page.Section("survey").Field("floor_area").ID
	sectionID := page.Section("survey").ID
	page, err = env.svc.Pages.Update(ctx, engineer, PageInput{
		SiteID: &site.ID,
		ID:     &page.ID,
		Sections: []SectionInput{{
			SectionID: &sectionID,
			Fields:    []FieldInput{{FieldID: &fieldID, FieldValue: json.RawMessage(`98`)}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "98", fieldValue(t, page, "survey", "floor_area"))
	assert.Equal(t, models.SiteCreated, env.reload(t, site.ID).Status)
}

func TestUpdatePageValidation(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteCreated)

	_, err := env.svc.Pages.Update(ctx, engineer, PageInput{PageName: deployment.Page})
	werr := requireKind(t, err, KindValidation)
	assert.Contains(t, werr.Details, "site_id")

	_, err = env.svc.Pages.Update(ctx, engineer, PageInput{SiteID: &site.ID, PageName: "missing"})
	requireKind(t, err, KindNotFound)

	_, err = env.svc.Pages.Create(ctx, engineer, PageInput{SiteID: &site.ID})
	werr = requireKind(t, err, KindValidation)
	assert.Contains(t, werr.Details, "page_name")

	_, err = env.svc.Pages.Create(ctx, Actor{}, PageInput{SiteID: &site.ID, PageName: "x"})
	requireKind(t, err, KindUnauthenticated)
}

func TestListAndDeletePages(t *testing.T) {
	env := newTestEnv(t)
	site := env.site(t, models.SiteCreated)
	deploy := env.deploymentPage(t, site)
	_, err := env.svc.Pages.Create(ctx, engineer, PageInput{SiteID: &site.ID, PageName: "scoping"})
	require.NoError(t, err)

	pages, err := env.svc.Pages.List(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, deployment.Page, pages[0].PageName)
	assert.NotEmpty(t, pages[0].Sections)

	_, err = env.svc.Pages.List(ctx, uuid.New())
	requireKind(t, err, KindNotFound)

	require.Error(t, env.svc.Pages.Delete(ctx, opsMgr, deploy.ID))
	require.NoError(t, env.svc.Pages.Delete(ctx, engineer, deploy.ID))
	requireKind(t, env.svc.Pages.Delete(ctx, engineer, deploy.ID), KindNotFound)

	var sections int64
	require.NoError(t, env.db.Model(&models.Section{}).Where("page_id = ?", deploy.ID).Count(&sections).Error)
	assert.Zero(t, sections)
	assert.Equal(t, models.SiteCreated, env.reload(t, site.ID).Status)
}
