package jira

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/logging"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// Options tune a Tracker
type Options struct {
	// ReadRetry is the backoff budget for discovery reads; 0 disables retries
	ReadRetry time.Duration
	// StoryPointsField pins the story points field key and skips discovery
	StoryPointsField string
}

// Tracker is the remote side of one sync run. It bundles the services and
// caches discovery results so a workflow never asks the same question twice.
// A Tracker is safe for concurrent use.
type Tracker struct {
	Client   *client.Client
	Projects *ProjectService
	Fields   *FieldService
	Metadata *MetadataService
	Search   *SearchService
	Issues   *IssueService
	Agile    *AgileService

	opts Options

	mu              sync.Mutex
	myself          *models.User
	projects        []models.Project
	statuses        map[string][]models.Status
	storyPoints     map[string]*FieldRef
	sprintFields    map[string]*FieldRef
	issueTypes      map[string][]models.IssueType
	priorities      []models.Priority
	assignableUsers map[string][]models.User
}

// NewTracker wires every service to the same client
func NewTracker(c *client.Client, opts Options) *Tracker {
	reads := newAPI(c, opts.ReadRetry)
	metadata := &MetadataService{api: reads, cache: &metadataCache{entries: make(map[string]*cacheEntry)}}

	return &Tracker{
		Client:   c,
		Projects: &ProjectService{api: reads},
		Fields:   &FieldService{api: reads, metadata: metadata},
		Metadata: metadata,
		Search:   &SearchService{api: reads},
		Issues:   &IssueService{api: reads},
		Agile:    &AgileService{api: reads},
		opts:     opts,

		statuses:        make(map[string][]models.Status),
		storyPoints:     make(map[string]*FieldRef),
		sprintFields:    make(map[string]*FieldRef),
		issueTypes:      make(map[string][]models.IssueType),
		assignableUsers: make(map[string][]models.User),
	}
}

// Myself returns the authenticated user
func (t *Tracker) Myself(ctx context.Context) (*models.User, error) {
	t.mu.Lock()
	if t.myself != nil {
		defer t.mu.Unlock()
		return t.myself, nil
	}
	t.mu.Unlock()

	user, err := t.Client.ValidateCredentials(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.myself = user
	t.mu.Unlock()
	return user, nil
}

// TestConnection reports whether the credentials authenticate. A failure is
// logged, never returned.
func (t *Tracker) TestConnection(ctx context.Context) bool {
	if _, err := t.Myself(ctx); err != nil {
		logging.Warn("jira connection failed", "error", err)
		return false
	}
	return true
}

// ListProjects returns every visible project
func (t *Tracker) ListProjects(ctx context.Context) ([]models.Project, error) {
	t.mu.Lock()
	if t.projects != nil {
		defer t.mu.Unlock()
		return t.projects, nil
	}
	t.mu.Unlock()

	projects, err := t.Projects.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.projects = projects
	t.mu.Unlock()
	return projects, nil
}

// ListProjectStatuses returns the distinct statuses of a project
func (t *Tracker) ListProjectStatuses(ctx context.Context, projectKey string) ([]models.Status, error) {
	t.mu.Lock()
	if cached, ok := t.statuses[projectKey]; ok {
		t.mu.Unlock()
		return cached, nil
	}
	t.mu.Unlock()

	statuses, err := t.Projects.ListProjectStatuses(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.statuses[projectKey] = statuses
	t.mu.Unlock()
	return statuses, nil
}

// FindStoryPointsField returns the story points field of a project or nil
// when the instance has none. A key pinned in Options wins over discovery.
func (t *Tracker) FindStoryPointsField(ctx context.Context, projectKey string) (*FieldRef, error) {
	t.mu.Lock()
	if cached, ok := t.storyPoints[projectKey]; ok {
		t.mu.Unlock()
		return cached, nil
	}
	t.mu.Unlock()

	var ref *FieldRef
	if key := t.opts.StoryPointsField; key != "" {
		ref = &FieldRef{Key: key, Name: "Story Points", Source: SourceConfig}
		if meta, err := t.Metadata.GetProjectCreateMeta(ctx, projectKey); err == nil {
			_, ref.OnCreateScreen = meta.AllFields()[key]
		}
	} else {
		var err error
		ref, err = t.Fields.FindStoryPointsField(ctx, projectKey)
		if err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	t.storyPoints[projectKey] = ref
	t.mu.Unlock()
	return ref, nil
}

// FieldOnCreateScreen reports whether fieldKey can be sent when creating an
// issue of issueType in the project. Create screens differ per issue type.
func (t *Tracker) FieldOnCreateScreen(ctx context.Context, projectKey, issueType, fieldKey string) (bool, error) {
	meta, err := t.Metadata.GetProjectCreateMeta(ctx, projectKey)
	if err != nil {
		return false, err
	}
	return meta.HasField(issueType, fieldKey), nil
}

// FindSprintField returns the sprint field of a project or nil
func (t *Tracker) FindSprintField(ctx context.Context, projectKey string) (*FieldRef, error) {
	t.mu.Lock()
	if cached, ok := t.sprintFields[projectKey]; ok {
		t.mu.Unlock()
		return cached, nil
	}
	t.mu.Unlock()

	ref, err := t.Fields.FindSprintField(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.sprintFields[projectKey] = ref
	t.mu.Unlock()
	return ref, nil
}

// IsFieldEditable checks the issue's edit metadata
func (t *Tracker) IsFieldEditable(ctx context.Context, issueKey, fieldKey string) (bool, error) {
	return t.Metadata.IsFieldEditable(ctx, issueKey, fieldKey)
}

// ListIssueTypes returns the issue types of a project
func (t *Tracker) ListIssueTypes(ctx context.Context, projectID string) ([]models.IssueType, error) {
	t.mu.Lock()
	if cached, ok := t.issueTypes[projectID]; ok {
		t.mu.Unlock()
		return cached, nil
	}
	t.mu.Unlock()

	types, err := t.Issues.ListIssueTypes(ctx, projectID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.issueTypes[projectID] = types
	t.mu.Unlock()
	return types, nil
}

// ListPriorities returns the site priorities
func (t *Tracker) ListPriorities(ctx context.Context) ([]models.Priority, error) {
	t.mu.Lock()
	if t.priorities != nil {
		defer t.mu.Unlock()
		return t.priorities, nil
	}
	t.mu.Unlock()

	priorities, err := t.Issues.ListPriorities(ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.priorities = priorities
	t.mu.Unlock()
	return priorities, nil
}

// ListAssignableUsers returns the users assignable in a project
func (t *Tracker) ListAssignableUsers(ctx context.Context, projectKey string) ([]models.User, error) {
	t.mu.Lock()
	if cached, ok := t.assignableUsers[projectKey]; ok {
		t.mu.Unlock()
		return cached, nil
	}
	t.mu.Unlock()

	users, err := t.Issues.ListAssignableUsers(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.assignableUsers[projectKey] = users
	t.mu.Unlock()
	return users, nil
}

// SearchProjectIssues returns every issue of a project
func (t *Tracker) SearchProjectIssues(ctx context.Context, projectKey string, extraFields ...string) ([]models.Issue, error) {
	return t.Search.SearchProjectIssues(ctx, projectKey, extraFields...)
}

// CreateProject creates a scrum project led by the authenticated user
func (t *Tracker) CreateProject(ctx context.Context, name, key, description string) (*models.Project, error) {
	me, err := t.Myself(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve project lead: %w", err)
	}

	created, err := t.Projects.CreateProject(ctx, name, key, description, me.AccountID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.projects = nil
	t.mu.Unlock()
	t.Metadata.Invalidate()

	return &models.Project{
		ID:   created.ID.String(),
		Key:  created.Key,
		Name: name,
		Self: created.Self,
		Lead: &models.ProjectLead{AccountID: me.AccountID, DisplayName: me.DisplayName},
	}, nil
}

// CreateIssue creates an issue
func (t *Tracker) CreateIssue(ctx context.Context, fields map[string]interface{}) (*models.CreatedResource, error) {
	return t.Issues.CreateIssue(ctx, fields)
}

// GetIssue fetches an issue, optionally limited to some fields
func (t *Tracker) GetIssue(ctx context.Context, key string, fields ...string) (*models.Issue, error) {
	return t.Issues.GetIssue(ctx, key, fields...)
}

// UpdateIssue sets fields on an issue
func (t *Tracker) UpdateIssue(ctx context.Context, key string, fields map[string]interface{}) error {
	return t.Issues.UpdateIssue(ctx, key, fields)
}

// AssignIssue sets the assignee of an issue
func (t *Tracker) AssignIssue(ctx context.Context, key, accountID string) error {
	return t.Issues.AssignIssue(ctx, key, accountID)
}

// GetTransitions lists the transitions available on an issue
func (t *Tracker) GetTransitions(ctx context.Context, key string) ([]models.Transition, error) {
	return t.Issues.GetTransitions(ctx, key)
}

// TransitionIssueToStatus moves an issue to a status when a transition leads
// there; it reports false, without error, when none does
func (t *Tracker) TransitionIssueToStatus(ctx context.Context, key, statusID, statusName string) (bool, error) {
	return t.Issues.TransitionIssueToStatus(ctx, key, statusID, statusName)
}

// CreateFilter saves a JQL filter
func (t *Tracker) CreateFilter(ctx context.Context, name, jql string) (*models.Filter, error) {
	return t.Agile.CreateFilter(ctx, name, jql)
}

// CreateBoard creates a scrum board
func (t *Tracker) CreateBoard(ctx context.Context, name, filterID, projectKey string) (*models.Board, error) {
	return t.Agile.CreateBoard(ctx, name, filterID, projectKey)
}

// CreateSprint creates a sprint on a board
func (t *Tracker) CreateSprint(ctx context.Context, boardID int, name, goal string, start, end *time.Time) (*models.Sprint, error) {
	return t.Agile.CreateSprint(ctx, boardID, name, goal, start, end)
}

// MoveIssuesToSprint moves issues into a sprint
func (t *Tracker) MoveIssuesToSprint(ctx context.Context, sprintID int, issueKeys []string) error {
	return t.Agile.MoveIssuesToSprint(ctx, sprintID, issueKeys)
}

// FindUserByEmail looks an email up among the project's assignable users.
// It returns nil when nobody matches.
func FindUserByEmail(users []models.User, email string) *models.User {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	for i := range users {
		if strings.EqualFold(users[i].EmailAddress, email) {
			return &users[i]
		}
	}
	return nil
}

// FindPriorityByName returns the priority with the given name or nil
func FindPriorityByName(priorities []models.Priority, name string) *models.Priority {
	for i := range priorities {
		if strings.EqualFold(priorities[i].Name, name) {
			return &priorities[i]
		}
	}
	return nil
}
