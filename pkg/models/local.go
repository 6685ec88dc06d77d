package models

import "time"

// Credentials identify the account used against a Jira Cloud site.
// They are passed by value and never mutated by the sync layer.
type Credentials struct {
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	APIToken string `json:"-"`
}

// IntegrationJira marks a local status linked to a Jira status
const IntegrationJira = "jira"

// StatusType is the coarse category of a local workflow status
type StatusType string

const (
	StatusNotStarted StatusType = "not_started"
	StatusActive     StatusType = "active"
	StatusDone       StatusType = "done"
	StatusClosed     StatusType = "closed"
)

// LocalStatus is a workflow status of a workspace space
type LocalStatus struct {
	ID              string     `yaml:"id" json:"id"`
	Name            string     `yaml:"name" json:"name"`
	Color           string     `yaml:"color,omitempty" json:"color,omitempty"`
	StatusType      StatusType `yaml:"status_type" json:"status_type"`
	IntegrationType string     `yaml:"integration_type,omitempty" json:"integration_type,omitempty"`
	ExternalID      string     `yaml:"external_id,omitempty" json:"external_id,omitempty"`
	ExternalName    string     `yaml:"external_name,omitempty" json:"external_name,omitempty"`
}

// IsLinked reports whether the status carries a Jira integration link
func (s LocalStatus) IsLinked() bool {
	return s.IntegrationType == IntegrationJira && s.ExternalID != ""
}

// MatchTier records which reconciliation rule produced a mapping
type MatchTier string

const (
	MatchExisting  MatchTier = "existing"
	MatchExact     MatchTier = "exact"
	MatchSubstring MatchTier = "substring"
	MatchKeyword   MatchTier = "keyword"
	MatchFallback  MatchTier = "fallback"
	MatchManual    MatchTier = "manual"
)

// StatusMapping maps one local status to one remote status
type StatusMapping struct {
	LocalStatusID         string    `yaml:"local_status_id" json:"local_status_id"`
	LocalStatusName       string    `yaml:"local_status_name" json:"local_status_name"`
	RemoteStatusID        string    `yaml:"remote_status_id" json:"remote_status_id"`
	RemoteStatusName      string    `yaml:"remote_status_name" json:"remote_status_name"`
	IsExistingIntegration bool      `yaml:"is_existing_integration" json:"is_existing_integration"`
	MatchedBy             MatchTier `yaml:"matched_by,omitempty" json:"matched_by,omitempty"`
	Confirmed             bool      `yaml:"confirmed,omitempty" json:"confirmed,omitempty"`
}

// LocalTask is a workspace task
type LocalTask struct {
	ID            string     `yaml:"id" json:"id"`
	Title         string     `yaml:"title" json:"title"`
	Description   string     `yaml:"description,omitempty" json:"description,omitempty"`
	StatusID      string     `yaml:"status_id" json:"status_id"`
	SprintID      string     `yaml:"sprint_id,omitempty" json:"sprint_id,omitempty"`
	Priority      string     `yaml:"priority,omitempty" json:"priority,omitempty"`
	AssigneeEmail string     `yaml:"assignee_email,omitempty" json:"assignee_email,omitempty"`
	StoryPoints   *float64   `yaml:"story_points,omitempty" json:"story_points,omitempty"`
	DueDate       *time.Time `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	ExternalKey   string     `yaml:"external_key,omitempty" json:"external_key,omitempty"`
	ParentKey     string     `yaml:"parent_key,omitempty" json:"parent_key,omitempty"`
	CreatedAt     time.Time  `yaml:"created_at" json:"created_at"`
}

// LocalSprint is a workspace sprint, optionally grouped in a sprint folder
type LocalSprint struct {
	ID        string     `yaml:"id" json:"id"`
	Name      string     `yaml:"name" json:"name"`
	Goal      string     `yaml:"goal,omitempty" json:"goal,omitempty"`
	FolderID  string     `yaml:"folder_id,omitempty" json:"folder_id,omitempty"`
	StartDate *time.Time `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate   *time.Time `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	// ExternalID is the Jira sprint id an imported sprint came from
	ExternalID string `yaml:"external_id,omitempty" json:"external_id,omitempty"`
}

// ScopeKind says whether an export covers a whole space or one sprint folder
type ScopeKind string

const (
	ScopeSpace  ScopeKind = "space"
	ScopeFolder ScopeKind = "folder"
)

// SprintWithTasks pairs a sprint with the tasks planned in it
type SprintWithTasks struct {
	Sprint LocalSprint
	Tasks  []LocalTask
}

// SprintScope is the unit handed to an export run
type SprintScope struct {
	Kind     ScopeKind
	ID       string
	Name     string
	Statuses []LocalStatus
	Sprints  []SprintWithTasks
	// Backlog holds tasks outside any sprint; only a space scope has them.
	Backlog []LocalTask
}

// TaskCount returns the number of tasks in the scope
func (s *SprintScope) TaskCount() int {
	n := len(s.Backlog)
	for _, sp := range s.Sprints {
		n += len(sp.Tasks)
	}
	return n
}
