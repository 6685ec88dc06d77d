package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/logging"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

const (
	// projectPageSize is the page size used for GET /project/search
	projectPageSize = 50
	// maxProjectPages stops a misbehaving server from paging forever
	maxProjectPages = 200

	// ProjectTypeSoftware is the project type used for exported projects
	ProjectTypeSoftware = "software"
	// ScrumTemplateKey is the simplified scrum template applied to new projects
	ScrumTemplateKey = "com.pyxis.greenhopper.jira:gh-simplified-scrum-classic"

	// MaxProjectKeyLength is the longest key Jira accepts
	MaxProjectKeyLength = 10
)

var (
	// ErrInvalidProjectKey is returned for keys that fail ^[A-Z][A-Z0-9]{1,9}$
	ErrInvalidProjectKey = errors.New("invalid project key")
	// ErrProjectKeyTaken is returned when a key is already used by another project
	ErrProjectKeyTaken = errors.New("project key already in use")

	projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)
)

// ProjectService handles project discovery and creation
type ProjectService struct {
	api *api
}

// NewProjectService creates a new ProjectService instance
func NewProjectService(c *client.Client) *ProjectService {
	return &ProjectService{api: newAPI(c, 0)}
}

// ListProjects returns every project visible to the user. Pages of
// /project/search are followed until the server marks one as last.
func (s *ProjectService) ListProjects(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project

	for page := 0; page < maxProjectPages; page++ {
		query := map[string]string{
			"startAt":    strconv.Itoa(len(projects)),
			"maxResults": strconv.Itoa(projectPageSize),
			"expand":     "description,lead,url",
		}

		var raw json.RawMessage
		if err := s.api.get(ctx, client.FamilyCore, "/project/search", query, &raw); err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}

		batch, isLast := NormalizeProjects(raw)
		projects = append(projects, batch...)
		if isLast || len(batch) == 0 {
			break
		}
	}

	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}

// projectEnvelope covers the wrapped shapes Jira has returned for project lists
type projectEnvelope struct {
	Values   *[]models.Project `json:"values"`
	Projects *[]models.Project `json:"projects"`
	IsLast   *bool             `json:"isLast"`
}

// NormalizeProjects decodes a project list from any of the known response
// shapes: a bare array, {"values": [...]} or {"projects": [...]}. Anything
// else yields an empty list. isLast is false only for a paginated envelope
// that says more pages follow.
func NormalizeProjects(raw []byte) (projects []models.Project, isLast bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []models.Project{}, true
	}

	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &projects); err != nil {
			logging.Debug("unrecognized project list", "error", err)
			return []models.Project{}, true
		}
		return nonNil(projects), true

	case '{':
		var env projectEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			logging.Debug("unrecognized project envelope", "error", err)
			return []models.Project{}, true
		}
		switch {
		case env.Values != nil:
			return nonNil(*env.Values), env.IsLast == nil || *env.IsLast
		case env.Projects != nil:
			return nonNil(*env.Projects), true
		}
	}

	logging.Debug("unrecognized project response shape")
	return []models.Project{}, true
}

func nonNil(projects []models.Project) []models.Project {
	if projects == nil {
		return []models.Project{}
	}
	return projects
}

// ListProjectStatuses returns the distinct statuses used by a project. Jira
// groups statuses per issue type; the same status appears under several
// types and is kept once, in first-seen order.
func (s *ProjectService) ListProjectStatuses(ctx context.Context, projectKey string) ([]models.Status, error) {
	var groups []models.IssueTypeStatuses
	endpoint := fmt.Sprintf("/project/%s/statuses", url.PathEscape(projectKey))
	if err := s.api.get(ctx, client.FamilyCore, endpoint, nil, &groups); err != nil {
		return nil, fmt.Errorf("failed to list statuses for %s: %w", projectKey, err)
	}
	return FlattenStatuses(groups), nil
}

// FlattenStatuses de-duplicates statuses across issue types by id
func FlattenStatuses(groups []models.IssueTypeStatuses) []models.Status {
	seen := make(map[string]bool)
	statuses := []models.Status{}
	for _, group := range groups {
		for _, status := range group.Statuses {
			if status.ID == "" || seen[status.ID] {
				continue
			}
			seen[status.ID] = true
			statuses = append(statuses, status)
		}
	}
	return statuses
}

// CreateProject creates a scrum software project led by leadAccountID
func (s *ProjectService) CreateProject(ctx context.Context, name, key, description, leadAccountID string) (*models.CreatedResource, error) {
	if err := ValidateProjectKey(key, nil); err != nil {
		return nil, err
	}

	req := models.CreateProjectRequest{
		Key:                key,
		Name:               name,
		Description:        description,
		LeadAccountID:      leadAccountID,
		ProjectTypeKey:     ProjectTypeSoftware,
		ProjectTemplateKey: ScrumTemplateKey,
	}

	var result models.CreatedResource
	if err := s.api.post(ctx, client.FamilyCore, "/project", req, &result); err != nil {
		return nil, fmt.Errorf("failed to create project %s: %w", key, err)
	}
	if result.Key == "" {
		result.Key = key
	}
	return &result, nil
}

// GenerateProjectKey derives a key from a project name: the uppercase
// alphanumerics of the name, with leading digits dropped, cut to ten
// characters. Multi-word names use word initials when they give at least
// two letters.
func GenerateProjectKey(name string) (string, error) {
	words := strings.FieldsFunc(strings.ToUpper(name), func(r rune) bool {
		return !isKeyRune(r)
	})

	var key string
	if len(words) > 1 {
		var initials strings.Builder
		for _, w := range words {
			initials.WriteByte(w[0])
		}
		key = trimLeadingDigits(initials.String())
	}
	if len(key) < 2 {
		key = trimLeadingDigits(strings.Join(words, ""))
	}

	if len(key) > MaxProjectKeyLength {
		key = key[:MaxProjectKeyLength]
	}
	if len(key) < 2 {
		return "", fmt.Errorf("%w: name %q yields fewer than 2 usable characters", ErrInvalidProjectKey, name)
	}
	return key, nil
}

// ValidateProjectKey checks the key format and that no existing project
// already uses it (case-insensitive)
func ValidateProjectKey(key string, existing []models.Project) error {
	if !projectKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q must be 2-10 uppercase letters or digits starting with a letter", ErrInvalidProjectKey, key)
	}
	for _, p := range existing {
		if strings.EqualFold(p.Key, key) {
			return fmt.Errorf("%w: %s (%s)", ErrProjectKeyTaken, key, p.Name)
		}
	}
	return nil
}

// UniqueProjectKey generates a key for name and appends a digit suffix until
// it no longer collides with an existing project
func UniqueProjectKey(name string, existing []models.Project) (string, error) {
	base, err := GenerateProjectKey(name)
	if err != nil {
		return "", err
	}
	if ValidateProjectKey(base, existing) == nil {
		return base, nil
	}
	for i := 2; i < 1000; i++ {
		suffix := strconv.Itoa(i)
		candidate := base
		if len(candidate)+len(suffix) > MaxProjectKeyLength {
			candidate = candidate[:MaxProjectKeyLength-len(suffix)]
		}
		candidate += suffix
		if ValidateProjectKey(candidate, existing) == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free key for %q", ErrProjectKeyTaken, name)
}

func isKeyRune(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func trimLeadingDigits(s string) string {
	return strings.TrimLeft(s, "0123456789")
}
