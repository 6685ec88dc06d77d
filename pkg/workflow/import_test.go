package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanisideup/jira-workspace-sync/pkg/jira"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
	"github.com/sanisideup/jira-workspace-sync/pkg/workspace"
)

func importFixture(t *testing.T) (*fakeRemote, *workspace.FileStore) {
	t.Helper()
	remote := newFakeRemote()
	todo := jiraStatus("1", "To Do", models.CategoryNew)
	doing := jiraStatus("3", "In Progress", models.CategoryIndeterminate)
	done := jiraStatus("10001", "Done", models.CategoryDone)

	remote.statuses["ABC"] = []models.Status{todo, doing, done}
	remote.statuses["DEF"] = []models.Status{todo}
	remote.statuses["GHI"] = []models.Status{done}
	remote.issues["ABC"] = []models.Issue{
		jiraIssue("ABC-2", "Ship it", "10001", "Done"),
		jiraIssue("ABC-1", "Build it", "3", "In Progress"),
	}
	remote.issues["GHI"] = []models.Issue{jiraIssue("GHI-1", "Plan", "10001", "Done")}

	store, err := workspace.OpenFileStore(filepath.Join(t.TempDir(), "workspace.yaml"))
	require.NoError(t, err)
	return remote, store
}

func TestRunImport_IsolatesProjectFailures(t *testing.T) {
	remote, store := importFixture(t)
	remote.fetchErr["issues DEF"] = errors.New("HTTP 500")

	result, err := RunImport(context.Background(), remote, store, ImportOptions{
		ProjectKeys: []string{"ABC", "DEF", "GHI"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProjectsImported)
	assert.Equal(t, 3, result.TasksImported)
	assert.Equal(t, 4, result.StatusesImported)
	require.Len(t, result.ProjectErrors, 1)
	assert.Equal(t, "DEF", result.ProjectErrors[0].ProjectKey)
	assert.Equal(t, KindDiscovery, KindOf(result.ProjectErrors[0].Err))
	assert.Equal(t, "2 projects imported, 1 failed: DEF: fetch-issues failed (discovery): HTTP 500", result.Summary())

	spaces, err := store.Spaces(context.Background())
	require.NoError(t, err)
	assert.Len(t, spaces, 2)
}

func TestRunImport_MaterializesLinkedStatusesAndTasks(t *testing.T) {
	remote, store := importFixture(t)

	result, err := RunImport(context.Background(), remote, store, ImportOptions{ProjectKeys: []string{"abc"}})
	require.NoError(t, err)
	require.Empty(t, result.ProjectErrors)

	space, err := store.Space(context.Background(), result.SpaceIDs["ABC"])
	require.NoError(t, err)
	assert.Equal(t, "Alpha", space.Name)
	assert.Equal(t, "ABC", space.ExternalKey)

	require.Len(t, space.Statuses, 3)
	for _, s := range space.Statuses {
		assert.True(t, s.IsLinked(), s.Name)
	}
	assert.Equal(t, models.StatusActive, space.Statuses[1].StatusType)
	assert.Equal(t, "3", space.Statuses[1].ExternalID)

	require.Len(t, space.Tasks, 2)
	// oldest issue first
	assert.Equal(t, "ABC-1", space.Tasks[0].ExternalKey)
	assert.Equal(t, "Build it", space.Tasks[0].Title)
	assert.Equal(t, space.Statuses[1].ID, space.Tasks[0].StatusID)
	assert.Equal(t, space.Statuses[2].ID, space.Tasks[1].StatusID)
}

func TestRunImport_ReusesStatusesInTargetSpace(t *testing.T) {
	remote, store := importFixture(t)
	ctx := context.Background()
	target, err := store.EnsureSpace(ctx, "Everything", "")
	require.NoError(t, err)
	_, _, err = store.EnsureLinkedStatus(ctx, target.ID, models.LocalStatus{
		Name: "Finished", IntegrationType: models.IntegrationJira, ExternalID: "10001",
	})
	require.NoError(t, err)

	result, err := RunImport(ctx, remote, store, ImportOptions{
		ProjectKeys:   []string{"ABC", "GHI"},
		TargetSpaceID: target.ID,
		Concurrency:   1,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.StatusesImported)
	space, err := store.Space(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, space.Statuses, 3)
	assert.Len(t, space.Tasks, 3)
}

func TestRunImport_CarriesStoryPoints(t *testing.T) {
	remote, store := importFixture(t)
	remote.storyPoints = &jira.FieldRef{Key: "customfield_10016", Name: "Story Points"}
	remote.issues["ABC"][0].Fields["customfield_10016"] = 5.0

	result, err := RunImport(context.Background(), remote, store, ImportOptions{ProjectKeys: []string{"ABC"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"customfield_10016"}, remote.searchFields["ABC"])
	space, err := store.Space(context.Background(), result.SpaceIDs["ABC"])
	require.NoError(t, err)
	require.NotNil(t, space.Tasks[1].StoryPoints)
	assert.Equal(t, 5.0, *space.Tasks[1].StoryPoints)
	assert.Nil(t, space.Tasks[0].StoryPoints)
}

func TestRunImport_CarriesSprintMembership(t *testing.T) {
	remote, store := importFixture(t)
	remote.sprintField = &jira.FieldRef{Key: "customfield_10020", Name: "Sprint"}
	sprint1 := map[string]interface{}{"id": 41.0, "name": "ABC Sprint 1", "state": "closed", "startDate": "2026-01-05T09:00:00.000Z", "endDate": "2026-01-16T17:00:00.000Z"}
	sprint2 := map[string]interface{}{"id": 42.0, "name": "ABC Sprint 2", "state": "active", "goal": "Ship"}
	// ABC-2 "Ship it" carried over from sprint 1 into the active sprint 2
	remote.issues["ABC"][0].Fields["customfield_10020"] = []interface{}{sprint1, sprint2}
	remote.issues["ABC"][1].Fields["customfield_10020"] = []interface{}{sprint1}

	result, err := RunImport(context.Background(), remote, store, ImportOptions{ProjectKeys: []string{"ABC"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"customfield_10020"}, remote.searchFields["ABC"])
	assert.Equal(t, 2, result.SprintsImported)

	space, err := store.Space(context.Background(), result.SpaceIDs["ABC"])
	require.NoError(t, err)
	require.Len(t, space.Sprints, 2)
	byExternal := make(map[string]models.LocalSprint)
	for _, sp := range space.Sprints {
		byExternal[sp.ExternalID] = sp
	}
	require.Contains(t, byExternal, "41")
	require.Contains(t, byExternal, "42")
	assert.Equal(t, "ABC Sprint 1", byExternal["41"].Name)
	require.NotNil(t, byExternal["41"].StartDate)
	assert.Equal(t, 5, byExternal["41"].StartDate.Day())
	assert.Equal(t, "Ship", byExternal["42"].Goal)

	// tasks are oldest first: ABC-1, then ABC-2
	assert.Equal(t, byExternal["41"].ID, space.Tasks[0].SprintID)
	assert.Equal(t, byExternal["42"].ID, space.Tasks[1].SprintID)

	// a second import links to the same sprints
	again, err := RunImport(context.Background(), remote, store, ImportOptions{ProjectKeys: []string{"ABC"}})
	require.NoError(t, err)
	assert.Zero(t, again.SprintsImported)
}

func TestRunImport_SprintFieldUnavailable(t *testing.T) {
	remote, store := importFixture(t)
	remote.failOn["FindSprintField ABC"] = errors.New("HTTP 503")

	result, err := RunImport(context.Background(), remote, store, ImportOptions{ProjectKeys: []string{"ABC"}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProjectsImported)
	assert.Zero(t, result.SprintsImported)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "sprints skipped")
}

func TestRunImport_UnknownProjectIsIsolated(t *testing.T) {
	remote, store := importFixture(t)

	result, err := RunImport(context.Background(), remote, store, ImportOptions{ProjectKeys: []string{"ABC", "NOPE"}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProjectsImported)
	require.Len(t, result.ProjectErrors, 1)
	assert.Equal(t, "NOPE", result.ProjectErrors[0].ProjectKey)
}

func TestImporter_ConnectionFailure(t *testing.T) {
	remote, store := importFixture(t)
	remote.myselfErr = errors.New("401 Unauthorized")

	im := NewImporter(remote, store)
	err := im.Connect(context.Background())

	assert.Equal(t, KindConnection, KindOf(err))
	assert.Equal(t, ImportFailed, im.State())
}

func TestImporter_RequiresConnect(t *testing.T) {
	remote, store := importFixture(t)

	_, err := NewImporter(remote, store).Run(context.Background(), ImportOptions{ProjectKeys: []string{"ABC"}})

	assert.True(t, errors.Is(err, ErrNotConnected))
	assert.Empty(t, remote.trace("SearchProjectIssues"))
}

func TestImporter_States(t *testing.T) {
	remote, store := importFixture(t)
	im := NewImporter(remote, store)
	ctx := context.Background()
	assert.Equal(t, ImportIdle, im.State())

	require.NoError(t, im.Connect(ctx))
	assert.Equal(t, ImportFetchingProjects, im.State())

	projects, err := im.FetchProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 3)

	_, err = im.Run(ctx, ImportOptions{})
	assert.Equal(t, KindValidation, KindOf(err))

	var phases []string
	_, err = im.Run(ctx, ImportOptions{
		ProjectKeys: []string{"ABC", "GHI"},
		Progress:    func(p Progress) { phases = append(phases, p.Phase) },
	})
	require.NoError(t, err)
	assert.Equal(t, ImportDone, im.State())
	assert.Equal(t, []string{"fetching", "fetching", "importing", "importing"}, phases)
}

func TestImporter_Cancelled(t *testing.T) {
	remote, store := importFixture(t)
	im := NewImporter(remote, store)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, im.Connect(ctx))

	cancel()
	_, err := im.Run(ctx, ImportOptions{ProjectKeys: []string{"ABC"}})

	assert.Equal(t, KindCancelled, KindOf(err))
	assert.Equal(t, ImportFailed, im.State())
}
