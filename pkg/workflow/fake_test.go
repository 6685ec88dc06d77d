package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sanisideup/jira-workspace-sync/pkg/jira"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// fakeRemote records every call in order and answers from canned data
type fakeRemote struct {
	mu    sync.Mutex
	calls []string

	myselfErr   error
	projects    []models.Project
	statuses    map[string][]models.Status
	issues      map[string][]models.Issue
	fetchErr    map[string]error
	storyPoints *jira.FieldRef
	sprintField *jira.FieldRef
	// createScreen lists the field keys on each issue type's create screen
	createScreen map[string][]string
	editable     bool
	issueTypes  []models.IssueType
	priorities  []models.Priority
	users       []models.User

	// initialStatus is the status every created issue starts in
	initialStatus string
	// reachable lists the status ids a transition can reach
	reachable map[string]bool
	// failOn makes the named call return the error
	failOn map[string]error
	// onCall runs after a call is recorded
	onCall func(name string)

	searchFields map[string][]string
	createdIssue []map[string]interface{}
	updates      map[string]map[string]interface{}
	assigned     map[string]string
	moves        map[int][]string
	nextIssue    int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		projects: []models.Project{
			{ID: "10000", Key: "ABC", Name: "Alpha"},
			{ID: "10001", Key: "DEF", Name: "Delta"},
			{ID: "10002", Key: "GHI", Name: "Gamma"},
		},
		statuses:      make(map[string][]models.Status),
		issues:        make(map[string][]models.Issue),
		fetchErr:      make(map[string]error),
		issueTypes:    []models.IssueType{{ID: "5", Name: "Sub-task", Subtask: true}, {ID: "10", Name: "Task"}},
		initialStatus: "1",
		reachable:     map[string]bool{"1": true, "3": true, "10001": true},
		failOn:        make(map[string]error),
		searchFields:  make(map[string][]string),
		updates:       make(map[string]map[string]interface{}),
		assigned:      make(map[string]string),
		moves:         make(map[int][]string),
	}
}

func (f *fakeRemote) record(name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	err := f.failOn[name]
	hook := f.onCall
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	return err
}

// trace returns the recorded calls whose names start with one of prefixes
func (f *fakeRemote) trace(prefixes ...string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		for _, p := range prefixes {
			if strings.HasPrefix(c, p) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (f *fakeRemote) Myself(ctx context.Context) (*models.User, error) {
	if err := f.record("Myself"); err != nil {
		return nil, err
	}
	if f.myselfErr != nil {
		return nil, f.myselfErr
	}
	return &models.User{AccountID: "acc-me", DisplayName: "Me"}, nil
}

func (f *fakeRemote) ListProjects(ctx context.Context) ([]models.Project, error) {
	if err := f.record("ListProjects"); err != nil {
		return nil, err
	}
	return f.projects, nil
}

func (f *fakeRemote) ListProjectStatuses(ctx context.Context, projectKey string) ([]models.Status, error) {
	if err := f.record("ListProjectStatuses " + projectKey); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr["statuses "+projectKey]; err != nil {
		return nil, err
	}
	return f.statuses[projectKey], nil
}

func (f *fakeRemote) SearchProjectIssues(ctx context.Context, projectKey string, extraFields ...string) ([]models.Issue, error) {
	if err := f.record("SearchProjectIssues " + projectKey); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchFields[projectKey] = extraFields
	if err := f.fetchErr["issues "+projectKey]; err != nil {
		return nil, err
	}
	return f.issues[projectKey], nil
}

func (f *fakeRemote) FindStoryPointsField(ctx context.Context, projectKey string) (*jira.FieldRef, error) {
	if err := f.record("FindStoryPointsField " + projectKey); err != nil {
		return nil, err
	}
	return f.storyPoints, nil
}

func (f *fakeRemote) FindSprintField(ctx context.Context, projectKey string) (*jira.FieldRef, error) {
	if err := f.record("FindSprintField " + projectKey); err != nil {
		return nil, err
	}
	return f.sprintField, nil
}

func (f *fakeRemote) FieldOnCreateScreen(ctx context.Context, projectKey, issueType, fieldKey string) (bool, error) {
	if err := f.record("FieldOnCreateScreen " + issueType); err != nil {
		return false, err
	}
	for _, key := range f.createScreen[issueType] {
		if key == fieldKey {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRemote) IsFieldEditable(ctx context.Context, issueKey, fieldKey string) (bool, error) {
	if err := f.record("IsFieldEditable " + issueKey); err != nil {
		return false, err
	}
	return f.editable, nil
}

func (f *fakeRemote) ListIssueTypes(ctx context.Context, projectID string) ([]models.IssueType, error) {
	if err := f.record("ListIssueTypes " + projectID); err != nil {
		return nil, err
	}
	return f.issueTypes, nil
}

func (f *fakeRemote) ListPriorities(ctx context.Context) ([]models.Priority, error) {
	if err := f.record("ListPriorities"); err != nil {
		return nil, err
	}
	return f.priorities, nil
}

func (f *fakeRemote) ListAssignableUsers(ctx context.Context, projectKey string) ([]models.User, error) {
	if err := f.record("ListAssignableUsers " + projectKey); err != nil {
		return nil, err
	}
	return f.users, nil
}

func (f *fakeRemote) CreateProject(ctx context.Context, name, key, description string) (*models.Project, error) {
	if err := f.record("CreateProject " + key); err != nil {
		return nil, err
	}
	project := models.Project{ID: "10050", Key: key, Name: name}
	f.mu.Lock()
	f.projects = append(f.projects, project)
	f.mu.Unlock()
	return &project, nil
}

func (f *fakeRemote) CreateFilter(ctx context.Context, name, jql string) (*models.Filter, error) {
	if err := f.record("CreateFilter " + jql); err != nil {
		return nil, err
	}
	return &models.Filter{ID: "10500", Name: name, JQL: jql}, nil
}

func (f *fakeRemote) CreateBoard(ctx context.Context, name, filterID, projectKey string) (*models.Board, error) {
	if err := f.record("CreateBoard " + filterID); err != nil {
		return nil, err
	}
	return &models.Board{ID: 12, Name: name, Type: "scrum"}, nil
}

func (f *fakeRemote) CreateSprint(ctx context.Context, boardID int, name, goal string, start, end *time.Time) (*models.Sprint, error) {
	if err := f.record("CreateSprint " + name); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.Sprint{ID: 100 + countPrefix(f.calls, "CreateSprint"), Name: name, Goal: goal, OriginBoardID: boardID}, nil
}

func (f *fakeRemote) CreateIssue(ctx context.Context, fields map[string]interface{}) (*models.CreatedResource, error) {
	if err := f.record("CreateIssue " + fmt.Sprint(fields["summary"])); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextIssue++
	project := fields["project"].(map[string]string)["key"]
	f.createdIssue = append(f.createdIssue, fields)
	key := fmt.Sprintf("%s-%d", project, f.nextIssue)
	return &models.CreatedResource{ID: models.FlexID(fmt.Sprint(10000 + f.nextIssue)), Key: key}, nil
}

func (f *fakeRemote) GetIssue(ctx context.Context, key string, fields ...string) (*models.Issue, error) {
	if err := f.record("GetIssue " + key); err != nil {
		return nil, err
	}
	return &models.Issue{Key: key, Fields: map[string]interface{}{
		"status": map[string]interface{}{"id": f.initialStatus},
	}}, nil
}

func (f *fakeRemote) UpdateIssue(ctx context.Context, key string, fields map[string]interface{}) error {
	if err := f.record("UpdateIssue " + key); err != nil {
		return err
	}
	f.mu.Lock()
	f.updates[key] = fields
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) AssignIssue(ctx context.Context, key, accountID string) error {
	if err := f.record("AssignIssue " + key); err != nil {
		return err
	}
	f.mu.Lock()
	f.assigned[key] = accountID
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) TransitionIssueToStatus(ctx context.Context, key, statusID, statusName string) (bool, error) {
	if err := f.record("TransitionIssueToStatus " + key); err != nil {
		return false, err
	}
	return f.reachable[statusID], nil
}

func (f *fakeRemote) MoveIssuesToSprint(ctx context.Context, sprintID int, issueKeys []string) error {
	if err := f.record(fmt.Sprintf("MoveIssuesToSprint %d", sprintID)); err != nil {
		return err
	}
	f.mu.Lock()
	f.moves[sprintID] = append(f.moves[sprintID], issueKeys...)
	f.mu.Unlock()
	return nil
}

func countPrefix(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func jiraStatus(id, name, category string) models.Status {
	return models.Status{ID: id, Name: name, StatusCategory: models.StatusCategory{Key: category}}
}

func jiraIssue(key, summary, statusID, statusName string) models.Issue {
	return models.Issue{Key: key, Fields: map[string]interface{}{
		"summary": summary,
		"status":  map[string]interface{}{"id": statusID, "name": statusName},
		"created": "2026-01-02T10:00:00.000+0000",
	}}
}
