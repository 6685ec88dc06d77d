package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

const sampleWorkspace = `spaces:
  - name: Mobile App
    statuses:
      - id: st-todo
        name: To Do
        status_type: not_started
      - id: st-done
        name: Done
        status_type: done
    folders:
      - id: f-q1
        name: Q1
    sprints:
      - id: sp-2
        name: Sprint 2
        folder_id: f-q1
        start_date: 2026-01-19T09:00:00Z
      - id: sp-1
        name: Sprint 1
        folder_id: f-q1
        start_date: 2026-01-05T09:00:00Z
      - id: sp-x
        name: Unplanned
    tasks:
      - title: Login screen
        status_id: st-todo
        sprint_id: sp-1
      - title: Push notifications
        status_id: st-done
        sprint_id: sp-2
      - title: Dark mode
        status_id: st-todo
`

func openSample(t *testing.T) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleWorkspace), FilePerms))
	store, err := OpenFileStore(path)
	require.NoError(t, err)
	return store
}

func TestOpenFileStore_Missing(t *testing.T) {
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	spaces, err := store.Spaces(context.Background())
	require.NoError(t, err)
	assert.Empty(t, spaces)
}

func TestOpenFileStore_AssignsIDs(t *testing.T) {
	store := openSample(t)

	sp, err := store.Space(context.Background(), "mobile app")
	require.NoError(t, err)
	assert.NotEmpty(t, sp.ID)
	for _, task := range sp.Tasks {
		assert.NotEmpty(t, task.ID)
	}

	// ids were persisted, so a reopen sees the same space id
	reopened, err := OpenFileStore(store.Path())
	require.NoError(t, err)
	again, err := reopened.Space(context.Background(), sp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mobile App", again.Name)
}

func TestOpenFileStore_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spaces: [oops"), FilePerms))

	_, err := OpenFileStore(path)
	assert.Error(t, err)
}

func TestScope_Space(t *testing.T) {
	store := openSample(t)
	ctx := context.Background()
	sp, err := store.Space(ctx, "Mobile App")
	require.NoError(t, err)

	scope, err := store.Scope(ctx, models.ScopeSpace, sp.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ScopeSpace, scope.Kind)
	assert.Len(t, scope.Statuses, 2)
	require.Len(t, scope.Sprints, 3)
	assert.Equal(t, "Sprint 1", scope.Sprints[0].Sprint.Name)
	assert.Equal(t, "Sprint 2", scope.Sprints[1].Sprint.Name)
	assert.Equal(t, "Unplanned", scope.Sprints[2].Sprint.Name)
	require.Len(t, scope.Backlog, 1)
	assert.Equal(t, "Dark mode", scope.Backlog[0].Title)
	assert.Equal(t, 3, scope.TaskCount())
}

func TestScope_Folder(t *testing.T) {
	store := openSample(t)

	scope, err := store.Scope(context.Background(), models.ScopeFolder, "q1")
	require.NoError(t, err)

	assert.Equal(t, models.ScopeFolder, scope.Kind)
	assert.Equal(t, "f-q1", scope.ID)
	assert.Equal(t, "Q1", scope.Name)
	require.Len(t, scope.Sprints, 2)
	assert.Equal(t, "Sprint 1", scope.Sprints[0].Sprint.Name)
	assert.Empty(t, scope.Backlog)
	assert.Equal(t, 2, scope.TaskCount())

	_, err = store.Scope(context.Background(), models.ScopeFolder, "Q9")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEnsureSpace(t *testing.T) {
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "ws", "workspace.yaml"))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := store.EnsureSpace(ctx, "Alpha", "ABC")
	require.NoError(t, err)
	second, err := store.EnsureSpace(ctx, "Alpha renamed", "abc")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestEnsureLinkedStatus_Concurrent(t *testing.T) {
	store, err := OpenFileStore(filepath.Join(t.TempDir(), "workspace.yaml"))
	require.NoError(t, err)
	ctx := context.Background()
	sp, err := store.EnsureSpace(ctx, "Alpha", "ABC")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.EnsureLinkedStatus(ctx, sp.ID, models.LocalStatus{
				Name:            "In Progress",
				IntegrationType: models.IntegrationJira,
				ExternalID:      "3",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.Space(ctx, sp.ID)
	require.NoError(t, err)
	assert.Len(t, got.Statuses, 1)
}

func TestLinkStatusAndTasks(t *testing.T) {
	store := openSample(t)
	ctx := context.Background()
	sp, err := store.Space(ctx, "Mobile App")
	require.NoError(t, err)

	require.NoError(t, store.LinkStatus(ctx, sp.ID, "st-done", "10001", "Done"))
	assert.True(t, errors.Is(store.LinkStatus(ctx, sp.ID, "nope", "1", "x"), ErrNotFound))

	added, err := store.AddTasks(ctx, sp.ID, []models.LocalTask{{Title: "Imported", ExternalKey: "ABC-1"}})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.NotEmpty(t, added[0].ID)
	assert.False(t, added[0].CreatedAt.IsZero())

	mappings := []models.StatusMapping{{LocalStatusID: "st-done", RemoteStatusID: "10001"}}
	require.NoError(t, store.SaveMappings(ctx, sp.ID, mappings))

	reopened, err := OpenFileStore(store.Path())
	require.NoError(t, err)
	got, err := reopened.Space(ctx, sp.ID)
	require.NoError(t, err)
	assert.True(t, got.Statuses[1].IsLinked())
	assert.Len(t, got.Tasks, 4)
	assert.Equal(t, mappings, got.Mappings)

	_, err = store.AddTasks(ctx, "missing", nil)
	assert.True(t, errors.Is(err, ErrNotFound), fmt.Sprint(err))
}

func TestEnsureSprint_LinksByExternalID(t *testing.T) {
	store := openSample(t)
	ctx := context.Background()
	sp, err := store.Space(ctx, "Mobile App")
	require.NoError(t, err)

	first, created, err := store.EnsureSprint(ctx, sp.ID, models.LocalSprint{Name: "MA Sprint 7", ExternalID: "41"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	again, created, err := store.EnsureSprint(ctx, sp.ID, models.LocalSprint{Name: "renamed", ExternalID: "41"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, again)

	got, err := store.Space(ctx, sp.ID)
	require.NoError(t, err)
	assert.Len(t, got.Sprints, 4)

	_, _, err = store.EnsureSprint(ctx, "missing", models.LocalSprint{Name: "x"})
	assert.True(t, errors.Is(err, ErrNotFound))
}
