// Package workflow drives the Import and Export runs between a workspace
// and Jira.
//
// Both runs are explicit state machines owned by one caller. Export creates
// remote resources strictly in order: project, filter, board, sprints,
// issues, then sprint moves. A failed step stops the run and nothing already
// created is removed. Import fans out across projects and isolates their
// failures.
package workflow

import (
	"context"
	"time"

	"github.com/sanisideup/jira-workspace-sync/pkg/jira"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// Remote is the Jira side of a run. *jira.Tracker implements it.
type Remote interface {
	Myself(ctx context.Context) (*models.User, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListProjectStatuses(ctx context.Context, projectKey string) ([]models.Status, error)
	SearchProjectIssues(ctx context.Context, projectKey string, extraFields ...string) ([]models.Issue, error)
	FindStoryPointsField(ctx context.Context, projectKey string) (*jira.FieldRef, error)
	FindSprintField(ctx context.Context, projectKey string) (*jira.FieldRef, error)
	FieldOnCreateScreen(ctx context.Context, projectKey, issueType, fieldKey string) (bool, error)
	IsFieldEditable(ctx context.Context, issueKey, fieldKey string) (bool, error)
	ListIssueTypes(ctx context.Context, projectID string) ([]models.IssueType, error)
	ListPriorities(ctx context.Context) ([]models.Priority, error)
	ListAssignableUsers(ctx context.Context, projectKey string) ([]models.User, error)

	CreateProject(ctx context.Context, name, key, description string) (*models.Project, error)
	CreateFilter(ctx context.Context, name, jql string) (*models.Filter, error)
	CreateBoard(ctx context.Context, name, filterID, projectKey string) (*models.Board, error)
	CreateSprint(ctx context.Context, boardID int, name, goal string, start, end *time.Time) (*models.Sprint, error)
	CreateIssue(ctx context.Context, fields map[string]interface{}) (*models.CreatedResource, error)
	GetIssue(ctx context.Context, key string, fields ...string) (*models.Issue, error)
	UpdateIssue(ctx context.Context, key string, fields map[string]interface{}) error
	AssignIssue(ctx context.Context, key, accountID string) error
	TransitionIssueToStatus(ctx context.Context, key, statusID, statusName string) (bool, error)
	MoveIssuesToSprint(ctx context.Context, sprintID int, issueKeys []string) error
}

var _ Remote = (*jira.Tracker)(nil)
