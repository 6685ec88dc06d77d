package models

import (
	"bytes"
	"encoding/json"
)

// User represents a Jira user
type User struct {
	Self         string `json:"self"`
	AccountID    string `json:"accountId"`
	AccountType  string `json:"accountType"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
	Active       bool   `json:"active"`
	TimeZone     string `json:"timeZone"`
}

// ProjectLead is the lead reference embedded in a project
type ProjectLead struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// Project represents a Jira project
type Project struct {
	Self           string       `json:"self"`
	ID             string       `json:"id"`
	Key            string       `json:"key"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	ProjectTypeKey string       `json:"projectTypeKey"`
	Lead           *ProjectLead `json:"lead,omitempty"`
	URL            string       `json:"url,omitempty"`
}

// CreateProjectRequest is the body of POST /project
type CreateProjectRequest struct {
	Key                string `json:"key"`
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	LeadAccountID      string `json:"leadAccountId"`
	ProjectTypeKey     string `json:"projectTypeKey"`
	ProjectTemplateKey string `json:"projectTemplateKey,omitempty"`
}

// FlexID is an id that Jira encodes as a string on some endpoints and as a
// number on others (POST /project answers with a numeric id)
type FlexID string

// UnmarshalJSON accepts both "10000" and 10000
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// String returns the id as text
func (f FlexID) String() string { return string(f) }

// CreatedResource is the id/key/self triple returned by Jira create endpoints
type CreatedResource struct {
	ID   FlexID `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// IssueType represents a Jira issue type
type IssueType struct {
	Self           string `json:"self"`
	ID             string `json:"id"`
	Name           string `json:"name"`
	Subtask        bool   `json:"subtask"`
	HierarchyLevel int    `json:"hierarchyLevel"`
}

// Priority represents a Jira priority
type Priority struct {
	Self string `json:"self"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FieldSchema represents the schema of a field
type FieldSchema struct {
	Type     string `json:"type"`
	Items    string `json:"items,omitempty"`
	System   string `json:"system,omitempty"`
	Custom   string `json:"custom,omitempty"`
	CustomID int    `json:"customId,omitempty"`
}

// Field represents a Jira field (standard or custom)
type Field struct {
	ID         string      `json:"id"`
	Key        string      `json:"key,omitempty"`
	Name       string      `json:"name"`
	Custom     bool        `json:"custom"`
	Orderable  bool        `json:"orderable"`
	Navigable  bool        `json:"navigable"`
	Searchable bool        `json:"searchable"`
	Schema     FieldSchema `json:"schema"`
}

// Issue represents a Jira issue. Fields stays untyped because custom field
// keys differ per instance; see issue.go for typed accessors.
type Issue struct {
	ID     string                 `json:"id"`
	Key    string                 `json:"key"`
	Self   string                 `json:"self"`
	Fields map[string]interface{} `json:"fields"`
}

// ErrorResponse represents a Jira API error response
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
	Status        int               `json:"status,omitempty"`
}

// SearchResponse represents a page of POST /search/jql
type SearchResponse struct {
	Issues        []Issue `json:"issues"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	IsLast        bool    `json:"isLast"`
}

// Status represents a workflow status
type Status struct {
	Self           string         `json:"self,omitempty"`
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	StatusCategory StatusCategory `json:"statusCategory"`
}

// StatusCategory represents a status category. Key is one of
// "new", "indeterminate", "done" (or "undefined").
type StatusCategory struct {
	Self      string `json:"self,omitempty"`
	ID        int    `json:"id"`
	Key       string `json:"key"`
	ColorName string `json:"colorName"`
	Name      string `json:"name"`
}

// Status category keys
const (
	CategoryNew           = "new"
	CategoryIndeterminate = "indeterminate"
	CategoryDone          = "done"
)

// IssueTypeStatuses is one element of GET /project/{key}/statuses
type IssueTypeStatuses struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Subtask  bool     `json:"subtask"`
	Statuses []Status `json:"statuses"`
}

// CreateMetaResponse represents the create metadata response
type CreateMetaResponse struct {
	Expand   string              `json:"expand"`
	Projects []CreateMetaProject `json:"projects"`
}

// CreateMetaProject represents project info in create metadata
type CreateMetaProject struct {
	ID         string                `json:"id"`
	Key        string                `json:"key"`
	Name       string                `json:"name"`
	IssueTypes []CreateMetaIssueType `json:"issuetypes"`
}

// CreateMetaIssueType represents issue type info in create metadata
type CreateMetaIssueType struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Subtask bool                 `json:"subtask"`
	Fields  map[string]FieldMeta `json:"fields"`
}

// EditMetaResponse represents GET /issue/{key}/editmeta
type EditMetaResponse struct {
	Fields map[string]FieldMeta `json:"fields"`
}

// FieldMeta represents field metadata for issue creation and editing
type FieldMeta struct {
	Required        bool          `json:"required"`
	Schema          FieldSchema   `json:"schema"`
	Name            string        `json:"name"`
	Key             string        `json:"key,omitempty"`
	HasDefaultValue bool          `json:"hasDefaultValue"`
	Operations      []string      `json:"operations,omitempty"`
	AllowedValues   []interface{} `json:"allowedValues,omitempty"`
}

// Transition represents a workflow transition
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   Status `json:"to"`
}

// TransitionsResponse represents available transitions for an issue
type TransitionsResponse struct {
	Expand      string       `json:"expand"`
	Transitions []Transition `json:"transitions"`
}

// Filter represents a saved JQL filter
type Filter struct {
	Self        string `json:"self,omitempty"`
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	JQL         string `json:"jql"`
}

// BoardLocation scopes a board to a project
type BoardLocation struct {
	Type           string `json:"type"`
	ProjectKeyOrID string `json:"projectKeyOrId"`
}

// Board represents an agile board
type Board struct {
	ID       int            `json:"id,omitempty"`
	Self     string         `json:"self,omitempty"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	FilterID int            `json:"filterId,omitempty"`
	Location *BoardLocation `json:"location,omitempty"`
}

// Sprint represents an agile sprint
type Sprint struct {
	ID            int    `json:"id,omitempty"`
	Self          string `json:"self,omitempty"`
	State         string `json:"state,omitempty"`
	Name          string `json:"name"`
	Goal          string `json:"goal,omitempty"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
	OriginBoardID int    `json:"originBoardId"`
}
