// Package workspace is the local side of a sync: spaces with their statuses,
// tasks, sprints and sprint folders.
package workspace

import (
	"context"
	"errors"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// ErrNotFound is returned when a space, folder or status does not exist
var ErrNotFound = errors.New("not found")

// SprintFolder groups sprints that are exported together
type SprintFolder struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Space is a workspace project
type Space struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	// ExternalKey is the Jira project key the space was imported from
	ExternalKey string                 `yaml:"external_key,omitempty" json:"external_key,omitempty"`
	Statuses    []models.LocalStatus   `yaml:"statuses,omitempty" json:"statuses,omitempty"`
	Folders     []SprintFolder         `yaml:"folders,omitempty" json:"folders,omitempty"`
	Sprints     []models.LocalSprint   `yaml:"sprints,omitempty" json:"sprints,omitempty"`
	Tasks       []models.LocalTask     `yaml:"tasks,omitempty" json:"tasks,omitempty"`
	Mappings    []models.StatusMapping `yaml:"mappings,omitempty" json:"mappings,omitempty"`
}

// Store is what the sync workflows need from the host data layer.
// Implementations must be safe for concurrent use.
type Store interface {
	// Spaces lists every space
	Spaces(ctx context.Context) ([]Space, error)
	// Space returns one space by id or name
	Space(ctx context.Context, idOrName string) (*Space, error)
	// EnsureSpace returns the space imported from externalKey, creating it
	// with name when there is none
	EnsureSpace(ctx context.Context, name, externalKey string) (*Space, error)
	// EnsureLinkedStatus returns the status of the space already linked to
	// status.ExternalID, or adds status. created reports which happened.
	EnsureLinkedStatus(ctx context.Context, spaceID string, status models.LocalStatus) (models.LocalStatus, bool, error)
	// LinkStatus records the Jira status a local status was exported to
	LinkStatus(ctx context.Context, spaceID, statusID, externalID, externalName string) error
	// EnsureSprint returns the sprint of the space already linked to
	// sprint.ExternalID, or adds sprint. created reports which happened.
	EnsureSprint(ctx context.Context, spaceID string, sprint models.LocalSprint) (models.LocalSprint, bool, error)
	// AddTasks appends tasks to a space and returns them with ids assigned
	AddTasks(ctx context.Context, spaceID string, tasks []models.LocalTask) ([]models.LocalTask, error)
	// SaveMappings stores the reviewed status mappings of a space
	SaveMappings(ctx context.Context, spaceID string, mappings []models.StatusMapping) error
	// Scope builds the export unit for a whole space or one sprint folder
	Scope(ctx context.Context, kind models.ScopeKind, id string) (*models.SprintScope, error)
}
