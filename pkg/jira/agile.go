package jira

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// maxSprintMoveBatch is the most issues POST /sprint/{id}/issue accepts
const maxSprintMoveBatch = 50

// sprintDateLayout is the date format the agile API expects
const sprintDateLayout = "2006-01-02T15:04:05.000Z07:00"

// AgileService creates the filter, board and sprints an exported project needs
type AgileService struct {
	api *api
}

// NewAgileService creates a new AgileService instance
func NewAgileService(c *client.Client) *AgileService {
	return &AgileService{api: newAPI(c, 0)}
}

// BoardFilterJQL is the saved filter backing a project's board
func BoardFilterJQL(projectKey string) string {
	return fmt.Sprintf("project = %s ORDER BY Rank ASC", quoteJQL(projectKey))
}

// CreateFilter saves a JQL filter (core API)
func (s *AgileService) CreateFilter(ctx context.Context, name, jql string) (*models.Filter, error) {
	req := models.Filter{
		Name:        name,
		Description: "Created by jws export",
		JQL:         jql,
	}

	var filter models.Filter
	if err := s.api.post(ctx, client.FamilyCore, "/filter", req, &filter); err != nil {
		return nil, fmt.Errorf("failed to create filter %q: %w", name, err)
	}
	return &filter, nil
}

// CreateBoard creates a scrum board on top of a saved filter, located in projectKey
func (s *AgileService) CreateBoard(ctx context.Context, name, filterID, projectKey string) (*models.Board, error) {
	id, err := strconv.Atoi(filterID)
	if err != nil {
		return nil, fmt.Errorf("invalid filter id %q: %w", filterID, err)
	}

	req := models.Board{
		Name:     name,
		Type:     "scrum",
		FilterID: id,
		Location: &models.BoardLocation{Type: "project", ProjectKeyOrID: projectKey},
	}

	var board models.Board
	if err := s.api.post(ctx, client.FamilyAgile, "/board", req, &board); err != nil {
		return nil, fmt.Errorf("failed to create board %q: %w", name, err)
	}
	return &board, nil
}

// CreateSprint creates a future sprint on a board. Zero dates are omitted.
func (s *AgileService) CreateSprint(ctx context.Context, boardID int, name, goal string, start, end *time.Time) (*models.Sprint, error) {
	req := models.Sprint{
		Name:          name,
		Goal:          goal,
		OriginBoardID: boardID,
	}
	if start != nil && !start.IsZero() {
		req.StartDate = start.UTC().Format(sprintDateLayout)
	}
	if end != nil && !end.IsZero() {
		req.EndDate = end.UTC().Format(sprintDateLayout)
	}

	var sprint models.Sprint
	if err := s.api.post(ctx, client.FamilyAgile, "/sprint", req, &sprint); err != nil {
		return nil, fmt.Errorf("failed to create sprint %q: %w", name, err)
	}
	return &sprint, nil
}

// MoveIssuesToSprint moves issues into a sprint, in batches of 50
func (s *AgileService) MoveIssuesToSprint(ctx context.Context, sprintID int, issueKeys []string) error {
	for i := 0; i < len(issueKeys); i += maxSprintMoveBatch {
		end := i + maxSprintMoveBatch
		if end > len(issueKeys) {
			end = len(issueKeys)
		}

		body := map[string]interface{}{"issues": issueKeys[i:end]}
		endpoint := fmt.Sprintf("/sprint/%d/issue", sprintID)
		if err := s.api.post(ctx, client.FamilyAgile, endpoint, body, nil); err != nil {
			return fmt.Errorf("failed to move issues %d-%d to sprint %d: %w", i, end, sprintID, err)
		}
	}
	return nil
}
