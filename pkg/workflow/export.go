package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sanisideup/jira-workspace-sync/pkg/jira"
	"github.com/sanisideup/jira-workspace-sync/pkg/logging"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
	"github.com/sanisideup/jira-workspace-sync/pkg/reconcile"
	"github.com/sanisideup/jira-workspace-sync/pkg/workspace"
)

// ExportState is a state of an Exporter
type ExportState string

const (
	ExportConnect       ExportState = "connect"
	ExportSelectProject ExportState = "select-or-create-project"
	ExportMapStatuses   ExportState = "map-statuses"
	ExportExporting     ExportState = "exporting"
	ExportCompleted     ExportState = "completed"
)

// DefaultScrumStatuses stand in for the statuses of a project that does not
// exist yet. Mappings to them are rebound by name once it is created.
var DefaultScrumStatuses = []models.Status{
	{ID: "default:todo", Name: "To Do", StatusCategory: models.StatusCategory{Key: models.CategoryNew}},
	{ID: "default:inprogress", Name: "In Progress", StatusCategory: models.StatusCategory{Key: models.CategoryIndeterminate}},
	{ID: "default:done", Name: "Done", StatusCategory: models.StatusCategory{Key: models.CategoryDone}},
}

// ExportOptions tune an export run
type ExportOptions struct {
	// IssueType is the preferred issue type name; the first standard type is
	// used when the project has none by that name
	IssueType string
	Progress  ProgressFunc
}

// CreatedSprint pairs a local sprint with the sprint created for it
type CreatedSprint struct {
	LocalID string        `json:"local_id"`
	Sprint  models.Sprint `json:"sprint"`
}

// CreatedIssue pairs a local task with the issue created for it
type CreatedIssue struct {
	TaskID   string `json:"task_id"`
	Key      string `json:"key"`
	SprintID int    `json:"sprint_id,omitempty"`
}

// ExportResult lists everything an export created, including on failure
type ExportResult struct {
	Project        *models.Project `json:"project,omitempty"`
	ProjectCreated bool            `json:"project_created"`
	Filter         *models.Filter  `json:"filter,omitempty"`
	Board          *models.Board   `json:"board,omitempty"`
	Sprints        []CreatedSprint `json:"sprints,omitempty"`
	Issues         []CreatedIssue  `json:"issues,omitempty"`
	Warnings       []Warning       `json:"warnings,omitempty"`
}

// TasksExported is the number of issues created
func (r *ExportResult) TasksExported() int { return len(r.Issues) }

// SprintsCreated is the number of sprints created
func (r *ExportResult) SprintsCreated() int { return len(r.Sprints) }

// Exporter pushes one workspace scope into Jira. Failures return it to
// ExportMapStatuses so mappings can be corrected and Run retried.
type Exporter struct {
	remote Remote
	opts   ExportOptions

	mu       sync.Mutex
	state    ExportState
	lastErr  error
	user     *models.User
	existing []models.Project

	project     *models.Project
	newProject  *models.Project
	description string
	statuses    []models.Status
	mappings    []models.StatusMapping
}

// NewExporter returns an exporter waiting to connect
func NewExporter(remote Remote, opts ExportOptions) *Exporter {
	return &Exporter{remote: remote, opts: opts, state: ExportConnect}
}

// State returns the current state
func (e *Exporter) State() ExportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastError returns the failure that sent the exporter back to mapping
func (e *Exporter) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Exporter) setState(s ExportState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	logging.Debug("export state", "state", s)
}

// Connect checks the credentials and loads the live project list
func (e *Exporter) Connect(ctx context.Context) error {
	user, err := e.remote.Myself(ctx)
	if err != nil {
		return stepErr(KindConnection, "connect", err)
	}
	projects, err := e.remote.ListProjects(ctx)
	if err != nil {
		return stepErr(KindDiscovery, "list-projects", err)
	}
	e.user = user
	e.existing = projects
	e.setState(ExportSelectProject)
	return nil
}

// SelectProject targets an existing project and loads its statuses
func (e *Exporter) SelectProject(ctx context.Context, key string) error {
	if e.user == nil {
		return &StepError{Kind: KindConnection, Step: "select-project", Err: ErrNotConnected}
	}
	project := findProject(e.existing, key)
	if project == nil {
		return &StepError{Kind: KindValidation, Step: "select-project", Err: fmt.Errorf("project '%s' not found", key)}
	}
	statuses, err := e.remote.ListProjectStatuses(ctx, project.Key)
	if err != nil {
		return stepErr(KindDiscovery, "fetch-statuses", err)
	}

	e.project = project
	e.newProject = nil
	e.statuses = statuses
	e.setState(ExportMapStatuses)
	return nil
}

// NewProject targets a project that Run will create. An empty key is
// generated from the name. The key is checked against the live project list
// before anything is sent.
func (e *Exporter) NewProject(name, key, description string) (string, error) {
	if e.user == nil {
		return "", &StepError{Kind: KindConnection, Step: "new-project", Err: ErrNotConnected}
	}
	if strings.TrimSpace(name) == "" {
		return "", &StepError{Kind: KindValidation, Step: "new-project", Err: errors.New("project name is required")}
	}

	var err error
	if key == "" {
		key, err = jira.UniqueProjectKey(name, e.existing)
	} else {
		key = strings.ToUpper(strings.TrimSpace(key))
		err = jira.ValidateProjectKey(key, e.existing)
	}
	if err != nil {
		return "", &StepError{Kind: KindValidation, Step: "new-project", Err: err}
	}

	e.project = nil
	e.newProject = &models.Project{Key: key, Name: name}
	e.description = description
	e.statuses = DefaultScrumStatuses
	e.setState(ExportMapStatuses)
	return key, nil
}

// RemoteStatuses are the statuses local ones can be mapped to
func (e *Exporter) RemoteStatuses() []models.Status {
	return e.statuses
}

// ProposeMappings reconciles local statuses against the target project
func (e *Exporter) ProposeMappings(local []models.LocalStatus) []models.StatusMapping {
	e.mappings = reconcile.Reconcile(local, e.statuses)
	return e.mappings
}

// SetMappings replaces the mappings, typically after review
func (e *Exporter) SetMappings(mappings []models.StatusMapping) {
	e.mappings = append([]models.StatusMapping(nil), mappings...)
}

// Mappings returns the current mappings
func (e *Exporter) Mappings() []models.StatusMapping {
	return e.mappings
}

// ProjectKey returns the key of the target project
func (e *Exporter) ProjectKey() string {
	switch {
	case e.project != nil:
		return e.project.Key
	case e.newProject != nil:
		return e.newProject.Key
	}
	return ""
}

// exportRun holds the per-run lookups shared by the steps
type exportRun struct {
	scope       *models.SprintScope
	result      *ExportResult
	issueType   *models.IssueType
	storyPoints *jira.FieldRef
	targets     map[string]models.StatusMapping
	priorities  []models.Priority
	users       []models.User
	usersLoaded bool
	total       int
	done        int
}

func (r *exportRun) warn(step, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logging.Warn("export warning", "step", step, "message", msg)
	r.result.Warnings = append(r.result.Warnings, Warning{Step: step, Message: msg})
}

// Run exports scope. It checks the preconditions, then creates the project
// (if new), a filter, a board, the sprints in chronological order and the
// issues, and finally moves issues into their sprints. The returned result
// lists what was created even when err is not nil.
func (e *Exporter) Run(ctx context.Context, scope *models.SprintScope) (*ExportResult, error) {
	result := &ExportResult{}
	if err := e.preflight(scope, result); err != nil {
		return result, err
	}

	e.setState(ExportExporting)
	if err := e.export(ctx, scope, result); err != nil {
		e.mu.Lock()
		e.state = ExportMapStatuses
		e.lastErr = err
		e.mu.Unlock()
		logging.Error("export failed", "error", err, "issues_created", len(result.Issues))
		return result, err
	}

	e.mu.Lock()
	e.state = ExportCompleted
	e.lastErr = nil
	e.mu.Unlock()
	logging.Info("export finished", "project", result.Project.Key, "sprints", result.SprintsCreated(), "issues", result.TasksExported())
	return result, nil
}

func (e *Exporter) preflight(scope *models.SprintScope, result *ExportResult) error {
	if e.user == nil {
		return &StepError{Kind: KindConnection, Step: "preflight", Err: ErrNotConnected}
	}
	if e.project == nil && e.newProject == nil {
		return &StepError{Kind: KindValidation, Step: "preflight", Err: errors.New("no target project selected")}
	}
	if scope == nil {
		return &StepError{Kind: KindValidation, Step: "preflight", Err: errors.New("nothing to export")}
	}
	if e.newProject != nil {
		if err := jira.ValidateProjectKey(e.newProject.Key, e.existing); err != nil {
			return &StepError{Kind: KindValidation, Step: "preflight", Err: err}
		}
	}

	warnings, err := reconcile.Validate(e.mappings, scope.Statuses, e.statuses)
	for _, w := range warnings {
		result.Warnings = append(result.Warnings, Warning{Step: "map-statuses", Message: w})
	}
	if err != nil {
		return &StepError{Kind: KindValidation, Step: "map-statuses", Err: err}
	}
	return nil
}

func (e *Exporter) export(ctx context.Context, scope *models.SprintScope, result *ExportResult) error {
	run := &exportRun{
		scope:   scope,
		result:  result,
		targets: make(map[string]models.StatusMapping),
		total:   scope.TaskCount(),
	}

	if err := e.ensureProject(ctx, run); err != nil {
		return err
	}
	for _, m := range e.mappings {
		run.targets[m.LocalStatusID] = m
	}
	if err := e.discover(ctx, run); err != nil {
		return err
	}

	key := result.Project.Key
	if err := checkCancelled(ctx, "create-filter"); err != nil {
		return err
	}
	filter, err := e.remote.CreateFilter(ctx, fmt.Sprintf("%s (%s) board filter", scope.Name, key), jira.BoardFilterJQL(key))
	if err != nil {
		return stepErr(KindRemoteMutation, "create-filter", err)
	}
	result.Filter = filter

	if err := checkCancelled(ctx, "create-board"); err != nil {
		return err
	}
	board, err := e.remote.CreateBoard(ctx, fmt.Sprintf("%s board", scope.Name), filter.ID, key)
	if err != nil {
		return stepErr(KindRemoteMutation, "create-board", err)
	}
	result.Board = board

	sprints := append([]models.SprintWithTasks(nil), scope.Sprints...)
	workspace.SortSprints(sprints)

	remoteSprints := make([]int, len(sprints))
	for i, sp := range sprints {
		if err := checkCancelled(ctx, "create-sprint"); err != nil {
			return err
		}
		created, err := e.remote.CreateSprint(ctx, board.ID, sp.Sprint.Name, sp.Sprint.Goal, sp.Sprint.StartDate, sp.Sprint.EndDate)
		if err != nil {
			return stepErr(KindRemoteMutation, fmt.Sprintf("create-sprint %q", sp.Sprint.Name), err)
		}
		remoteSprints[i] = created.ID
		result.Sprints = append(result.Sprints, CreatedSprint{LocalID: sp.Sprint.ID, Sprint: *created})
		e.opts.Progress.report("sprints", i+1, len(sprints), sp.Sprint.Name)
	}

	keysBySprint := make([][]string, len(sprints))
	for i, sp := range sprints {
		for _, task := range sp.Tasks {
			issueKey, err := e.exportTask(ctx, run, task, remoteSprints[i])
			if err != nil {
				return err
			}
			keysBySprint[i] = append(keysBySprint[i], issueKey)
		}
	}
	for _, task := range scope.Backlog {
		if _, err := e.exportTask(ctx, run, task, 0); err != nil {
			return err
		}
	}

	for i, keys := range keysBySprint {
		if len(keys) == 0 {
			continue
		}
		if err := checkCancelled(ctx, "move-issues"); err != nil {
			return err
		}
		if err := e.remote.MoveIssuesToSprint(ctx, remoteSprints[i], keys); err != nil {
			return stepErr(KindRemoteMutation, fmt.Sprintf("move-issues %q", sprints[i].Sprint.Name), err)
		}
		e.opts.Progress.report("moves", i+1, len(keysBySprint), sprints[i].Sprint.Name)
	}
	return nil
}

// ensureProject creates the new project, if any, and rebinds mappings made
// against DefaultScrumStatuses to its live statuses
func (e *Exporter) ensureProject(ctx context.Context, run *exportRun) error {
	if e.newProject == nil {
		run.result.Project = e.project
		return nil
	}

	if err := checkCancelled(ctx, "create-project"); err != nil {
		return err
	}
	project, err := e.remote.CreateProject(ctx, e.newProject.Name, e.newProject.Key, e.description)
	if err != nil {
		return stepErr(KindRemoteMutation, "create-project", err)
	}
	run.result.Project = project
	run.result.ProjectCreated = true

	// a retry after a later failure reuses the project
	e.project = project
	e.newProject = nil
	e.existing = append(e.existing, *project)

	live, err := e.remote.ListProjectStatuses(ctx, project.Key)
	if err != nil {
		return stepErr(KindDiscovery, "fetch-statuses", err)
	}
	e.statuses = live
	e.rebind(run, live)
	return nil
}

func (e *Exporter) rebind(run *exportRun, live []models.Status) {
	local := make(map[string]models.LocalStatus, len(run.scope.Statuses))
	for _, ls := range run.scope.Statuses {
		local[ls.ID] = ls
	}

	for i, m := range e.mappings {
		var match *models.Status
		for j := range live {
			if strings.EqualFold(live[j].Name, m.RemoteStatusName) {
				match = &live[j]
				break
			}
		}
		if match != nil {
			e.mappings[i].RemoteStatusID = match.ID
			e.mappings[i].RemoteStatusName = match.Name
			continue
		}
		ls, ok := local[m.LocalStatusID]
		if !ok {
			ls = models.LocalStatus{ID: m.LocalStatusID, Name: m.LocalStatusName}
		}
		e.mappings[i] = reconcile.MatchOne(ls, live)
		run.warn("map-statuses", "status %q: %q does not exist in the new project, using %q", m.LocalStatusName, m.RemoteStatusName, e.mappings[i].RemoteStatusName)
	}
}

// discover loads the lookups issue creation needs
func (e *Exporter) discover(ctx context.Context, run *exportRun) error {
	project := run.result.Project

	types, err := e.remote.ListIssueTypes(ctx, project.ID)
	if err != nil {
		return stepErr(KindDiscovery, "fetch-issue-types", err)
	}
	run.issueType = jira.PickIssueType(types, e.opts.IssueType)
	if run.issueType == nil {
		return &StepError{Kind: KindDiscovery, Step: "fetch-issue-types", Err: fmt.Errorf("project %s has no standard issue type", project.Key)}
	}

	ref, err := e.remote.FindStoryPointsField(ctx, project.Key)
	if err != nil {
		run.warn("discover-fields", "story points field lookup failed: %v", err)
	}
	if ref != nil {
		// the field may sit on another issue type's create screen only
		onScreen, err := e.remote.FieldOnCreateScreen(ctx, project.Key, run.issueType.Name, ref.Key)
		if err != nil {
			logging.Debug("create screen lookup failed", "project", project.Key, "error", err)
		}
		scoped := *ref
		scoped.OnCreateScreen = onScreen
		ref = &scoped
	}
	run.storyPoints = ref
	if ref == nil && hasStoryPoints(run.scope) {
		run.warn("discover-fields", "no story points field on %s; story points are not exported", project.Key)
	}

	if hasPriorities(run.scope) {
		priorities, err := e.remote.ListPriorities(ctx)
		if err != nil {
			run.warn("discover-fields", "priorities unavailable: %v", err)
		}
		run.priorities = priorities
	}
	return nil
}

// exportTask creates one issue and applies the soft follow-ups: story points
// outside the create screen, assignee and status transition
func (e *Exporter) exportTask(ctx context.Context, run *exportRun, task models.LocalTask, sprintID int) (string, error) {
	if err := checkCancelled(ctx, "create-issue"); err != nil {
		return "", err
	}
	project := run.result.Project
	step := fmt.Sprintf("create-issue %q", task.Title)

	fields := map[string]interface{}{
		"project":   map[string]string{"key": project.Key},
		"summary":   task.Title,
		"issuetype": map[string]string{"id": run.issueType.ID},
	}
	if doc := jira.PlainTextToADF(task.Description); doc != nil {
		fields["description"] = doc
	}
	if task.DueDate != nil {
		fields["duedate"] = task.DueDate.Format("2006-01-02")
	}
	if task.Priority != "" {
		if p := jira.FindPriorityByName(run.priorities, task.Priority); p != nil {
			fields["priority"] = map[string]string{"id": p.ID}
		} else {
			run.warn(step, "unknown priority %q", task.Priority)
		}
	}
	pendingPoints := false
	if task.StoryPoints != nil && run.storyPoints != nil {
		if run.storyPoints.OnCreateScreen {
			fields[run.storyPoints.Key] = *task.StoryPoints
		} else {
			pendingPoints = true
		}
	}

	created, err := e.remote.CreateIssue(ctx, fields)
	if err != nil {
		return "", stepErr(KindRemoteMutation, step, err)
	}
	run.result.Issues = append(run.result.Issues, CreatedIssue{TaskID: task.ID, Key: created.Key, SprintID: sprintID})

	if pendingPoints {
		e.setStoryPoints(ctx, run, created.Key, *task.StoryPoints)
	}
	if task.AssigneeEmail != "" {
		e.assign(ctx, run, created.Key, task.AssigneeEmail)
	}
	if err := e.transition(ctx, run, created.Key, task); err != nil {
		return "", err
	}

	run.done++
	e.opts.Progress.report("issues", run.done, run.total, created.Key)
	return created.Key, nil
}

func (e *Exporter) setStoryPoints(ctx context.Context, run *exportRun, issueKey string, points float64) {
	field := run.storyPoints.Key
	editable, err := e.remote.IsFieldEditable(ctx, issueKey, field)
	if err != nil || !editable {
		run.warn("story-points", "%s: story points field %s is not editable", issueKey, field)
		return
	}
	if err := e.remote.UpdateIssue(ctx, issueKey, map[string]interface{}{field: points}); err != nil {
		run.warn("story-points", "%s: %v", issueKey, err)
	}
}

func (e *Exporter) assign(ctx context.Context, run *exportRun, issueKey, email string) {
	if !run.usersLoaded {
		users, err := e.remote.ListAssignableUsers(ctx, run.result.Project.Key)
		if err != nil {
			run.warn("assign", "assignable users unavailable: %v", err)
		}
		run.users = users
		run.usersLoaded = true
	}
	user := jira.FindUserByEmail(run.users, email)
	if user == nil {
		run.warn("assign", "%s: no assignable user with email %s", issueKey, email)
		return
	}
	if err := e.remote.AssignIssue(ctx, issueKey, user.AccountID); err != nil {
		run.warn("assign", "%s: %v", issueKey, err)
	}
}

// transition moves the issue to its mapped status. A missing transition
// path is a warning; a failed transition call is not.
func (e *Exporter) transition(ctx context.Context, run *exportRun, issueKey string, task models.LocalTask) error {
	target, ok := run.targets[task.StatusID]
	if !ok || target.RemoteStatusID == "" {
		if task.StatusID != "" {
			run.warn("transition", "%s: local status %s has no mapping", issueKey, task.StatusID)
		}
		return nil
	}

	issue, err := e.remote.GetIssue(ctx, issueKey, "status")
	if err != nil {
		run.warn("transition", "%s: cannot read status: %v", issueKey, err)
		return nil
	}
	if issue.StatusID() == target.RemoteStatusID {
		return nil
	}

	moved, err := e.remote.TransitionIssueToStatus(ctx, issueKey, target.RemoteStatusID, target.RemoteStatusName)
	if err != nil {
		return stepErr(KindRemoteMutation, fmt.Sprintf("transition %s", issueKey), err)
	}
	if !moved {
		run.warn("transition", "%s: no transition to %q", issueKey, target.RemoteStatusName)
	}
	return nil
}

func hasStoryPoints(scope *models.SprintScope) bool {
	return anyTask(scope, func(t models.LocalTask) bool { return t.StoryPoints != nil })
}

func hasPriorities(scope *models.SprintScope) bool {
	return anyTask(scope, func(t models.LocalTask) bool { return t.Priority != "" })
}

func anyTask(scope *models.SprintScope, pred func(models.LocalTask) bool) bool {
	for _, t := range scope.Backlog {
		if pred(t) {
			return true
		}
	}
	for _, sp := range scope.Sprints {
		for _, t := range sp.Tasks {
			if pred(t) {
				return true
			}
		}
	}
	return false
}

// ExportTarget names the project an export goes to: an existing key, or
// the name (and optional key) of a project to create
type ExportTarget struct {
	ProjectKey  string
	NewName     string
	NewKey      string
	Description string
}

// RunExport connects, selects or plans the target project, applies mappings
// (proposing them when nil) and runs the export
func RunExport(ctx context.Context, remote Remote, target ExportTarget, mappings []models.StatusMapping, scope *models.SprintScope, opts ExportOptions) (*ExportResult, error) {
	e := NewExporter(remote, opts)
	if err := e.Connect(ctx); err != nil {
		return nil, err
	}

	if target.NewName != "" {
		if _, err := e.NewProject(target.NewName, target.NewKey, target.Description); err != nil {
			return nil, err
		}
	} else if err := e.SelectProject(ctx, target.ProjectKey); err != nil {
		return nil, err
	}

	if mappings == nil {
		if scope == nil {
			return nil, &StepError{Kind: KindValidation, Step: "map-statuses", Err: errors.New("nothing to export")}
		}
		e.ProposeMappings(scope.Statuses)
	} else {
		e.SetMappings(mappings)
	}
	return e.Run(ctx, scope)
}
