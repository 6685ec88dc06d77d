package jira

import (
	"context"
	"fmt"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

const (
	// searchPageSize is the maxResults sent with every /search/jql page
	searchPageSize = 100
	// maxSearchPages caps pagination against a server that never says isLast
	maxSearchPages = 500
)

// ImportFields are the issue fields requested when importing a project
var ImportFields = []string{
	"summary",
	"description",
	"status",
	"issuetype",
	"assignee",
	"priority",
	"created",
	"updated",
	"duedate",
	"parent",
	"subtasks",
}

// SearchService handles issue search operations
type SearchService struct {
	api *api
}

// NewSearchService creates a new search service
func NewSearchService(c *client.Client) *SearchService {
	return &SearchService{api: newAPI(c, 0)}
}

// SearchRequest represents a JQL search request
type SearchRequest struct {
	JQL           string   `json:"jql"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
	MaxResults    int      `json:"maxResults,omitempty"`
	Fields        []string `json:"fields,omitempty"`
}

// Search executes one page of a JQL query
// Parameters:
//   - jql: JQL query string (e.g., "project = PROJ AND status = Open")
//   - fields: List of fields to include in response (nil = ImportFields)
//   - pageToken: nextPageToken from the previous page, empty for the first
func (s *SearchService) Search(ctx context.Context, jql string, fields []string, pageToken string) (*models.SearchResponse, error) {
	if jql == "" {
		return nil, fmt.Errorf("JQL query cannot be empty")
	}

	if len(fields) == 0 {
		fields = ImportFields
	}

	req := SearchRequest{
		JQL:           jql,
		NextPageToken: pageToken,
		MaxResults:    searchPageSize,
		Fields:        fields,
	}

	var result models.SearchResponse
	if err := s.api.search(ctx, "/search/jql", req, &result); err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	return &result, nil
}

// SearchAll follows nextPageToken until the last page and returns every issue
func (s *SearchService) SearchAll(ctx context.Context, jql string, fields []string) ([]models.Issue, error) {
	issues := []models.Issue{}
	token := ""

	for page := 0; page < maxSearchPages; page++ {
		result, err := s.Search(ctx, jql, fields, token)
		if err != nil {
			return nil, err
		}
		issues = append(issues, result.Issues...)

		if result.IsLast || result.NextPageToken == "" || result.NextPageToken == token {
			break
		}
		token = result.NextPageToken
	}

	return issues, nil
}

// ProjectIssuesJQL is the query used to import a project
func ProjectIssuesJQL(projectKey string) string {
	return fmt.Sprintf("project = %s ORDER BY created DESC", quoteJQL(projectKey))
}

// SearchProjectIssues returns every issue of a project, newest first, with
// ImportFields plus any extra (custom) fields
func (s *SearchService) SearchProjectIssues(ctx context.Context, projectKey string, extraFields ...string) ([]models.Issue, error) {
	fields := append(append([]string{}, ImportFields...), extraFields...)
	issues, err := s.SearchAll(ctx, ProjectIssuesJQL(projectKey), fields)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issues for %s: %w", projectKey, err)
	}
	return issues, nil
}

// quoteJQL quotes a value unless it is a plain project key
func quoteJQL(value string) string {
	if projectKeyPattern.MatchString(value) {
		return value
	}
	return fmt.Sprintf("%q", value)
}
