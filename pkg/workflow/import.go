package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sanisideup/jira-workspace-sync/pkg/jira"
	"github.com/sanisideup/jira-workspace-sync/pkg/logging"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
	"github.com/sanisideup/jira-workspace-sync/pkg/reconcile"
	"github.com/sanisideup/jira-workspace-sync/pkg/workspace"
)

// ImportState is a state of an Importer
type ImportState string

const (
	ImportIdle             ImportState = "idle"
	ImportConnecting       ImportState = "connecting"
	ImportFetchingProjects ImportState = "fetching-projects"
	ImportFetchingIssues   ImportState = "fetching-issues-and-statuses"
	ImportImporting        ImportState = "importing"
	ImportDone             ImportState = "done"
	ImportFailed           ImportState = "failed"
)

// DefaultConcurrency is the number of projects fetched at once
const DefaultConcurrency = 3

// ImportOptions select what an import run pulls
type ImportOptions struct {
	// ProjectKeys are the Jira projects to import
	ProjectKeys []string
	// TargetSpaceID receives every project. When empty each project goes to
	// the space previously imported from it, or a new one.
	TargetSpaceID string
	// Concurrency bounds parallel project fetches; 0 means DefaultConcurrency
	Concurrency int
	Progress    ProgressFunc
}

// ProjectError is the failure of one project in an import
type ProjectError struct {
	ProjectKey string `json:"project_key"`
	Err        error  `json:"-"`
}

func (e ProjectError) Error() string {
	return fmt.Sprintf("%s: %v", e.ProjectKey, e.Err)
}

// ImportResult aggregates an import run
type ImportResult struct {
	ProjectsImported int            `json:"projects_imported"`
	TasksImported    int            `json:"tasks_imported"`
	StatusesImported int            `json:"statuses_imported"`
	SprintsImported  int            `json:"sprints_imported"`
	ProjectErrors    []ProjectError `json:"project_errors,omitempty"`
	Warnings         []Warning      `json:"warnings,omitempty"`
	// SpaceIDs lists the spaces written to, per imported project key
	SpaceIDs map[string]string `json:"space_ids,omitempty"`
}

// Summary renders the result like "3 projects imported, 1 failed: ABC: reason"
func (r *ImportResult) Summary() string {
	s := fmt.Sprintf("%d projects imported", r.ProjectsImported)
	if len(r.ProjectErrors) == 0 {
		return s
	}
	reasons := make([]string, len(r.ProjectErrors))
	for i, pe := range r.ProjectErrors {
		reasons[i] = pe.Error()
	}
	return fmt.Sprintf("%s, %d failed: %s", s, len(r.ProjectErrors), strings.Join(reasons, "; "))
}

// projectData is what one project fetch produced
type projectData struct {
	key         string
	project     models.Project
	statuses    []models.Status
	issues      []models.Issue
	storyPoints *jira.FieldRef
	sprintField *jira.FieldRef
	warnings    []Warning
	err         error
}

// Importer pulls Jira projects into the workspace. An Importer serves one
// run and is driven by a single caller.
type Importer struct {
	remote Remote
	store  workspace.Store

	mu       sync.Mutex
	state    ImportState
	user     *models.User
	projects []models.Project
}

// NewImporter returns an idle importer
func NewImporter(remote Remote, store workspace.Store) *Importer {
	return &Importer{remote: remote, store: store, state: ImportIdle}
}

// State returns the current state
func (im *Importer) State() ImportState {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.state
}

func (im *Importer) setState(s ImportState) {
	im.mu.Lock()
	im.state = s
	im.mu.Unlock()
	logging.Debug("import state", "state", s)
}

func (im *Importer) fail(err error) error {
	im.setState(ImportFailed)
	return err
}

// Connect checks the credentials. Every other step requires it.
func (im *Importer) Connect(ctx context.Context) error {
	im.setState(ImportConnecting)
	user, err := im.remote.Myself(ctx)
	if err != nil {
		return im.fail(stepErr(KindConnection, "connect", err))
	}
	im.user = user
	im.setState(ImportFetchingProjects)
	logging.Info("connected to jira", "user", user.DisplayName)
	return nil
}

// FetchProjects lists the projects a caller can select from
func (im *Importer) FetchProjects(ctx context.Context) ([]models.Project, error) {
	if im.user == nil {
		return nil, &StepError{Kind: KindConnection, Step: "fetch-projects", Err: ErrNotConnected}
	}
	projects, err := im.remote.ListProjects(ctx)
	if err != nil {
		return nil, im.fail(stepErr(KindDiscovery, "fetch-projects", err))
	}
	im.projects = projects
	return projects, nil
}

// Run imports the selected projects. A project that fails to fetch or to
// store is recorded in ProjectErrors and does not stop the others.
func (im *Importer) Run(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	if im.user == nil {
		return nil, &StepError{Kind: KindConnection, Step: "import", Err: ErrNotConnected}
	}
	if len(opts.ProjectKeys) == 0 {
		return nil, &StepError{Kind: KindValidation, Step: "import", Err: fmt.Errorf("no projects selected")}
	}
	if opts.TargetSpaceID != "" {
		if _, err := im.store.Space(ctx, opts.TargetSpaceID); err != nil {
			return nil, &StepError{Kind: KindValidation, Step: "import", Err: err}
		}
	}
	if im.projects == nil {
		if _, err := im.FetchProjects(ctx); err != nil {
			return nil, err
		}
	}

	im.setState(ImportFetchingIssues)
	data := im.fetchAll(ctx, opts)
	if err := checkCancelled(ctx, "fetch-issues-and-statuses"); err != nil {
		return nil, im.fail(err)
	}

	im.setState(ImportImporting)
	result := &ImportResult{SpaceIDs: make(map[string]string)}
	for i, d := range data {
		result.Warnings = append(result.Warnings, d.warnings...)
		if d.err == nil {
			d.err = im.materialize(ctx, d, opts.TargetSpaceID, result)
		}
		if d.err != nil {
			logging.Warn("project import failed", "project", d.key, "error", d.err)
			result.ProjectErrors = append(result.ProjectErrors, ProjectError{ProjectKey: d.key, Err: d.err})
		} else {
			result.ProjectsImported++
		}
		opts.Progress.report("importing", i+1, len(data), d.key)
	}

	im.setState(ImportDone)
	logging.Info("import finished", "summary", result.Summary())
	return result, nil
}

// fetchAll reads every selected project with bounded parallelism. Results
// keep the order of opts.ProjectKeys.
func (im *Importer) fetchAll(ctx context.Context, opts ImportOptions) []projectData {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	data := make([]projectData, len(opts.ProjectKeys))
	var (
		g        errgroup.Group
		progress sync.Mutex
		fetched  int
	)
	g.SetLimit(limit)

	for i, key := range opts.ProjectKeys {
		i, key := i, key
		g.Go(func() error {
			data[i] = im.fetchProject(ctx, key)

			progress.Lock()
			fetched++
			opts.Progress.report("fetching", fetched, len(data), key)
			progress.Unlock()
			// failures stay with the project
			return nil
		})
	}
	_ = g.Wait()
	return data
}

func (im *Importer) fetchProject(ctx context.Context, key string) projectData {
	d := projectData{key: key}
	if err := ctx.Err(); err != nil {
		d.err = stepErr(KindCancelled, "fetch-project", err)
		return d
	}

	project := findProject(im.projects, key)
	if project == nil {
		d.err = &StepError{Kind: KindDiscovery, Step: "fetch-project", Err: fmt.Errorf("project '%s' not found or not visible", key)}
		return d
	}
	d.project = *project
	d.key = project.Key

	statuses, err := im.remote.ListProjectStatuses(ctx, project.Key)
	if err != nil {
		d.err = stepErr(KindDiscovery, "fetch-statuses", err)
		return d
	}
	d.statuses = statuses

	var extra []string
	ref, err := im.remote.FindStoryPointsField(ctx, project.Key)
	switch {
	case err != nil:
		d.warnings = append(d.warnings, Warning{Step: "fetch-issues", Message: fmt.Sprintf("%s: story points skipped: %v", project.Key, err)})
	case ref != nil:
		d.storyPoints = ref
		extra = append(extra, ref.Key)
	}

	sprintRef, err := im.remote.FindSprintField(ctx, project.Key)
	switch {
	case err != nil:
		d.warnings = append(d.warnings, Warning{Step: "fetch-issues", Message: fmt.Sprintf("%s: sprints skipped: %v", project.Key, err)})
	case sprintRef != nil:
		d.sprintField = sprintRef
		extra = append(extra, sprintRef.Key)
	}

	issues, err := im.remote.SearchProjectIssues(ctx, project.Key, extra...)
	if err != nil {
		d.err = stepErr(KindDiscovery, "fetch-issues", err)
		return d
	}
	d.issues = issues
	logging.Debug("fetched project", "project", project.Key, "issues", len(issues), "statuses", len(statuses))
	return d
}

// materialize writes one project's statuses and tasks to the store
func (im *Importer) materialize(ctx context.Context, d projectData, targetSpaceID string, result *ImportResult) error {
	spaceID := targetSpaceID
	if spaceID == "" {
		space, err := im.store.EnsureSpace(ctx, d.project.Name, d.project.Key)
		if err != nil {
			return stepErr(KindStorage, "create-space", err)
		}
		spaceID = space.ID
	}

	localByRemote := make(map[string]string)
	ensure := func(rs models.Status) error {
		if _, ok := localByRemote[rs.ID]; ok {
			return nil
		}
		local, created, err := im.store.EnsureLinkedStatus(ctx, spaceID, models.LocalStatus{
			Name:            rs.Name,
			Color:           reconcile.ColorFor(rs),
			StatusType:      reconcile.StatusTypeFor(rs),
			IntegrationType: models.IntegrationJira,
			ExternalID:      rs.ID,
			ExternalName:    rs.Name,
		})
		if err != nil {
			return stepErr(KindStorage, "import-statuses", err)
		}
		if created {
			result.StatusesImported++
		}
		localByRemote[rs.ID] = local.ID
		return nil
	}

	for _, rs := range d.statuses {
		if err := ensure(rs); err != nil {
			return err
		}
	}

	localSprints := make(map[int]string)
	ensureSprint := func(rs *models.IssueSprint) (string, error) {
		if id, ok := localSprints[rs.ID]; ok {
			return id, nil
		}
		local, created, err := im.store.EnsureSprint(ctx, spaceID, models.LocalSprint{
			Name:       rs.Name,
			Goal:       rs.Goal,
			StartDate:  rs.StartDate,
			EndDate:    rs.EndDate,
			ExternalID: strconv.Itoa(rs.ID),
		})
		if err != nil {
			return "", stepErr(KindStorage, "import-sprints", err)
		}
		if created {
			result.SprintsImported++
		}
		localSprints[rs.ID] = local.ID
		return local.ID, nil
	}

	tasks := make([]models.LocalTask, 0, len(d.issues))
	// oldest first, so the workspace keeps creation order
	for i := len(d.issues) - 1; i >= 0; i-- {
		issue := &d.issues[i]
		if id := issue.StatusID(); id != "" {
			if err := ensure(models.Status{ID: id, Name: issue.StatusName()}); err != nil {
				return err
			}
		}
		task := taskFromIssue(issue, localByRemote, d.storyPoints)
		if d.sprintField != nil {
			if rs := issue.CurrentSprint(d.sprintField.Key); rs != nil {
				sprintID, err := ensureSprint(rs)
				if err != nil {
					return err
				}
				task.SprintID = sprintID
			}
		}
		tasks = append(tasks, task)
	}

	added, err := im.store.AddTasks(ctx, spaceID, tasks)
	if err != nil {
		return stepErr(KindStorage, "import-tasks", err)
	}
	result.TasksImported += len(added)
	result.SpaceIDs[d.key] = spaceID
	return nil
}

func taskFromIssue(issue *models.Issue, localByRemote map[string]string, storyPoints *jira.FieldRef) models.LocalTask {
	title := issue.Summary()
	if title == "" {
		title = issue.Key
	}
	task := models.LocalTask{
		Title:         title,
		Description:   jira.ADFToPlainText(issue.Description()),
		StatusID:      localByRemote[issue.StatusID()],
		Priority:      issue.PriorityName(),
		AssigneeEmail: issue.AssigneeEmail(),
		DueDate:       issue.DueDate(),
		ExternalKey:   issue.Key,
		ParentKey:     issue.ParentKey(),
		CreatedAt:     issue.Created(),
	}
	if storyPoints != nil {
		task.StoryPoints = issue.NumberField(storyPoints.Key)
	}
	return task
}

func findProject(projects []models.Project, key string) *models.Project {
	for i := range projects {
		if strings.EqualFold(projects[i].Key, key) {
			return &projects[i]
		}
	}
	return nil
}

// RunImport connects, lists projects and imports the selected ones
func RunImport(ctx context.Context, remote Remote, store workspace.Store, opts ImportOptions) (*ImportResult, error) {
	im := NewImporter(remote, store)
	if err := im.Connect(ctx); err != nil {
		return nil, err
	}
	return im.Run(ctx, opts)
}
