package reconcile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

func status(id, name, category string) models.Status {
	return models.Status{ID: id, Name: name, StatusCategory: models.StatusCategory{Key: category}}
}

var remotes = []models.Status{
	status("r1", "To Do", models.CategoryNew),
	status("r2", "Done", models.CategoryDone),
	status("r3", "In Review", models.CategoryIndeterminate),
}

func TestReconcile_ExactNames(t *testing.T) {
	local := []models.LocalStatus{
		{ID: "l1", Name: "To Do"},
		{ID: "l2", Name: "Done"},
	}

	mappings := Reconcile(local, remotes)

	require.Len(t, mappings, 2)
	assert.Equal(t, "r1", mappings[0].RemoteStatusID)
	assert.Equal(t, "r2", mappings[1].RemoteStatusID)
	assert.Equal(t, models.MatchExact, mappings[0].MatchedBy)
	assert.Equal(t, models.MatchExact, mappings[1].MatchedBy)
	assert.False(t, mappings[0].IsExistingIntegration)
}

func TestReconcile_ExistingLinkWins(t *testing.T) {
	// named exactly like r2 but linked to r3
	local := models.LocalStatus{
		ID:              "l1",
		Name:            "Done",
		IntegrationType: models.IntegrationJira,
		ExternalID:      "r3",
	}

	m := MatchOne(local, remotes)

	assert.Equal(t, "r3", m.RemoteStatusID)
	assert.Equal(t, "In Review", m.RemoteStatusName)
	assert.True(t, m.IsExistingIntegration)
	assert.Equal(t, models.MatchExisting, m.MatchedBy)
	assert.True(t, m.Confirmed)
}

func TestReconcile_StaleLinkFallsThrough(t *testing.T) {
	local := models.LocalStatus{ID: "l1", Name: "Done", IntegrationType: models.IntegrationJira, ExternalID: "gone"}

	m := MatchOne(local, remotes)

	assert.Equal(t, "r2", m.RemoteStatusID)
	assert.False(t, m.IsExistingIntegration)
}

func TestReconcile_LinkFromOtherIntegrationIgnored(t *testing.T) {
	local := models.LocalStatus{ID: "l1", Name: "Done", IntegrationType: "linear", ExternalID: "r3"}

	assert.Equal(t, "r2", MatchOne(local, remotes).RemoteStatusID)
}

func TestReconcile_Tiers(t *testing.T) {
	remote := []models.Status{
		status("1", "Backlog", models.CategoryNew),
		status("2", "Doing", models.CategoryIndeterminate),
		status("3", "Code Review", models.CategoryIndeterminate),
		status("4", "Shipped", models.CategoryDone),
	}

	tests := []struct {
		name     string
		local    models.LocalStatus
		wantID   string
		wantTier models.MatchTier
	}{
		{"exact ignores case", models.LocalStatus{Name: "  DOING "}, "2", models.MatchExact},
		{"local contains remote", models.LocalStatus{Name: "Backlog items"}, "1", models.MatchSubstring},
		{"remote contains local", models.LocalStatus{Name: "review"}, "3", models.MatchSubstring},
		{"keyword for active", models.LocalStatus{Name: "Working", StatusType: models.StatusActive}, "2", models.MatchKeyword},
		{"keyword for not started", models.LocalStatus{Name: "Ideas", StatusType: models.StatusNotStarted}, "1", models.MatchKeyword},
		{"category for done", models.LocalStatus{Name: "Complete", StatusType: models.StatusDone}, "4", models.MatchKeyword},
		{"fallback", models.LocalStatus{Name: "Parked"}, "1", models.MatchFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MatchOne(tt.local, remote)
			assert.Equal(t, tt.wantID, m.RemoteStatusID)
			assert.Equal(t, tt.wantTier, m.MatchedBy)
		})
	}
}

func TestReconcile_KeywordTakesFirstRemoteMatch(t *testing.T) {
	remote := []models.Status{
		status("1", "Doing (QA)", models.CategoryIndeterminate),
		status("2", "In Progress", models.CategoryIndeterminate),
	}

	m := MatchOne(models.LocalStatus{Name: "Working", StatusType: models.StatusActive}, remote)

	assert.Equal(t, "1", m.RemoteStatusID)
	assert.Equal(t, models.MatchKeyword, m.MatchedBy)

	// remote order decides, whichever keyword hits
	reversed := []models.Status{remote[1], remote[0]}
	assert.Equal(t, "2", MatchOne(models.LocalStatus{Name: "Working", StatusType: models.StatusActive}, reversed).RemoteStatusID)
}

func TestReconcile_NeverEmpty(t *testing.T) {
	local := []models.LocalStatus{
		{ID: "a", Name: "Triage", StatusType: models.StatusNotStarted},
		{ID: "b", Name: "", StatusType: models.StatusActive},
		{ID: "c", Name: "Blocked"},
		{ID: "d", Name: "Archived", StatusType: models.StatusClosed},
		{ID: "e", Name: "x", IntegrationType: models.IntegrationJira, ExternalID: "missing"},
	}
	remote := []models.Status{status("9", "Waiting", "")}

	for _, m := range Reconcile(local, remote) {
		assert.NotEmpty(t, m.RemoteStatusID, m.LocalStatusID)
	}
}

func TestReconcile_NoRemoteStatuses(t *testing.T) {
	mappings := Reconcile([]models.LocalStatus{{ID: "l1", Name: "To Do"}}, nil)

	require.Len(t, mappings, 1)
	assert.Empty(t, mappings[0].RemoteStatusID)
}

func TestValidate(t *testing.T) {
	local := []models.LocalStatus{{ID: "l1", Name: "To Do"}, {ID: "l2", Name: "Parked"}}

	t.Run("fallback warns", func(t *testing.T) {
		mappings := Reconcile(local, remotes)
		warnings, err := Validate(mappings, local, remotes)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "Parked")
	})

	t.Run("confirmed fallback is silent", func(t *testing.T) {
		mappings := Reconcile(local, remotes)
		Confirm(mappings)
		warnings, err := Validate(mappings, local, remotes)
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})

	t.Run("missing mapping", func(t *testing.T) {
		mappings := Reconcile(local[:1], remotes)
		_, err := Validate(mappings, local, remotes)
		assert.True(t, errors.Is(err, ErrUnmappedStatus))
	})

	t.Run("empty target", func(t *testing.T) {
		mappings := Reconcile(local, remotes)
		mappings[0].RemoteStatusID = ""
		_, err := Validate(mappings, local, remotes)
		assert.True(t, errors.Is(err, ErrUnmappedStatus))
	})

	t.Run("target no longer exists", func(t *testing.T) {
		mappings := Reconcile(local, remotes)
		_, err := Validate(mappings, local, remotes[1:])
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnmappedStatus))
		assert.Contains(t, err.Error(), "r1")
	})
}

func TestOverride(t *testing.T) {
	local := []models.LocalStatus{{ID: "l1", Name: "Parked"}}
	mappings := Reconcile(local, remotes)

	require.NoError(t, Override(mappings, "parked", "in review", remotes))
	assert.Equal(t, "r3", mappings[0].RemoteStatusID)
	assert.Equal(t, models.MatchManual, mappings[0].MatchedBy)
	assert.True(t, mappings[0].Confirmed)

	require.NoError(t, Override(mappings, "l1", "r2", remotes))
	assert.Equal(t, "Done", mappings[0].RemoteStatusName)

	assert.Error(t, Override(mappings, "l1", "r404", remotes))
	assert.Error(t, Override(mappings, "nobody", "r1", remotes))
}

func TestStatusTypeFor(t *testing.T) {
	assert.Equal(t, models.StatusNotStarted, StatusTypeFor(status("1", "To Do", models.CategoryNew)))
	assert.Equal(t, models.StatusActive, StatusTypeFor(status("2", "In Review", models.CategoryIndeterminate)))
	assert.Equal(t, models.StatusDone, StatusTypeFor(status("3", "Done", models.CategoryDone)))
	assert.Equal(t, models.StatusClosed, StatusTypeFor(status("4", "Won't Do", models.CategoryDone)))
	assert.Equal(t, models.StatusNotStarted, StatusTypeFor(status("5", "Odd", "undefined")))
}
