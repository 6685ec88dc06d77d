package jira

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/logging"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// IssueService handles issue-related operations
type IssueService struct {
	api *api
}

// CreateIssueRequest represents a request to create a single issue
type CreateIssueRequest struct {
	Fields map[string]interface{} `json:"fields"`
}

// NewIssueService creates a new IssueService instance
func NewIssueService(c *client.Client) *IssueService {
	return &IssueService{api: newAPI(c, 0)}
}

// CreateIssue creates a single issue in Jira
// Returns the created issue's key, ID, and self URL
func (s *IssueService) CreateIssue(ctx context.Context, fields map[string]interface{}) (*models.CreatedResource, error) {
	var result models.CreatedResource
	if err := s.api.post(ctx, client.FamilyCore, "/issue", CreateIssueRequest{Fields: fields}, &result); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return &result, nil
}

// GetIssue retrieves a single issue by its key or ID
func (s *IssueService) GetIssue(ctx context.Context, keyOrID string, fields ...string) (*models.Issue, error) {
	if keyOrID == "" {
		return nil, fmt.Errorf("issue key or ID cannot be empty")
	}

	var query map[string]string
	if len(fields) > 0 {
		query = map[string]string{"fields": strings.Join(fields, ",")}
	}

	var issue models.Issue
	if err := s.api.get(ctx, client.FamilyCore, "/issue/"+url.PathEscape(keyOrID), query, &issue); err != nil {
		if client.StatusCodeOf(err) == 404 {
			return nil, fmt.Errorf("issue '%s' not found: %w", keyOrID, err)
		}
		return nil, fmt.Errorf("failed to get issue %s: %w", keyOrID, err)
	}
	return &issue, nil
}

// UpdateIssue updates fields on an existing issue
// Parameters:
//   - keyOrID: Issue key (e.g., "PROJ-123") or ID
//   - fields: Map of field IDs to values to update
func (s *IssueService) UpdateIssue(ctx context.Context, keyOrID string, fields map[string]interface{}) error {
	if keyOrID == "" {
		return fmt.Errorf("issue key or ID cannot be empty")
	}
	if len(fields) == 0 {
		return fmt.Errorf("no fields to update")
	}

	body := map[string]interface{}{"fields": fields}
	if err := s.api.put(ctx, "/issue/"+url.PathEscape(keyOrID), body); err != nil {
		return fmt.Errorf("failed to update issue %s: %w", keyOrID, err)
	}
	return nil
}

// AssignIssue sets the assignee of an issue
func (s *IssueService) AssignIssue(ctx context.Context, keyOrID, accountID string) error {
	body := map[string]interface{}{"accountId": accountID}
	endpoint := fmt.Sprintf("/issue/%s/assignee", url.PathEscape(keyOrID))
	if err := s.api.put(ctx, endpoint, body); err != nil {
		return fmt.Errorf("failed to assign issue %s: %w", keyOrID, err)
	}
	return nil
}

// GetTransitions retrieves available transitions for an issue
func (s *IssueService) GetTransitions(ctx context.Context, keyOrID string) ([]models.Transition, error) {
	if keyOrID == "" {
		return nil, fmt.Errorf("issue key or ID cannot be empty")
	}

	var result models.TransitionsResponse
	endpoint := fmt.Sprintf("/issue/%s/transitions", url.PathEscape(keyOrID))
	if err := s.api.get(ctx, client.FamilyCore, endpoint, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get transitions for %s: %w", keyOrID, err)
	}
	return result.Transitions, nil
}

// TransitionIssueToStatus moves an issue to the status with the given id
// (or, failing that, the given name). It returns false without error when no
// available transition leads there: the issue simply keeps its status.
func (s *IssueService) TransitionIssueToStatus(ctx context.Context, keyOrID, statusID, statusName string) (bool, error) {
	transitions, err := s.GetTransitions(ctx, keyOrID)
	if err != nil {
		return false, err
	}

	transitionID := findTransition(transitions, statusID, statusName)
	if transitionID == "" {
		available := make([]string, len(transitions))
		for i, t := range transitions {
			available[i] = t.To.Name
		}
		logging.Debug("no transition path", "issue", keyOrID, "status", statusName, "available", available)
		return false, nil
	}

	body := map[string]interface{}{
		"transition": map[string]interface{}{
			"id": transitionID,
		},
	}
	endpoint := fmt.Sprintf("/issue/%s/transitions", url.PathEscape(keyOrID))
	if err := s.api.post(ctx, client.FamilyCore, endpoint, body, nil); err != nil {
		return false, fmt.Errorf("failed to transition issue %s: %w", keyOrID, err)
	}
	return true, nil
}

func findTransition(transitions []models.Transition, statusID, statusName string) string {
	if statusID != "" {
		for _, t := range transitions {
			if t.To.ID == statusID {
				return t.ID
			}
		}
	}
	if statusName != "" {
		for _, t := range transitions {
			if strings.EqualFold(t.To.Name, statusName) {
				return t.ID
			}
		}
	}
	return ""
}

// ListIssueTypes returns the issue types available in a project
func (s *IssueService) ListIssueTypes(ctx context.Context, projectID string) ([]models.IssueType, error) {
	var types []models.IssueType
	query := map[string]string{"projectId": projectID}
	if err := s.api.get(ctx, client.FamilyCore, "/issuetype/project", query, &types); err != nil {
		return nil, fmt.Errorf("failed to list issue types: %w", err)
	}
	return types, nil
}

// ListPriorities returns the site-wide priorities
func (s *IssueService) ListPriorities(ctx context.Context) ([]models.Priority, error) {
	var priorities []models.Priority
	if err := s.api.get(ctx, client.FamilyCore, "/priority", nil, &priorities); err != nil {
		return nil, fmt.Errorf("failed to list priorities: %w", err)
	}
	return priorities, nil
}

// ListAssignableUsers returns users that can be assigned issues in a project
func (s *IssueService) ListAssignableUsers(ctx context.Context, projectKey string) ([]models.User, error) {
	var users []models.User
	query := map[string]string{"project": projectKey, "maxResults": "1000"}
	if err := s.api.get(ctx, client.FamilyCore, "/user/assignable/search", query, &users); err != nil {
		return nil, fmt.Errorf("failed to list assignable users for %s: %w", projectKey, err)
	}
	return users, nil
}

// PickIssueType returns the preferred issue type by name, otherwise the
// first standard (non-subtask) type
func PickIssueType(types []models.IssueType, preferred string) *models.IssueType {
	for i := range types {
		if strings.EqualFold(types[i].Name, preferred) {
			return &types[i]
		}
	}
	for i := range types {
		if !types[i].Subtask {
			return &types[i]
		}
	}
	return nil
}
