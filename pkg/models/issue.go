package models

import (
	"strconv"
	"time"
)

// jiraTimeLayouts are the timestamp formats returned by Jira Cloud
var jiraTimeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z0700",
	time.RFC3339,
	"2006-01-02",
}

// ParseJiraTime parses a Jira timestamp, returning the zero time on failure.
func ParseJiraTime(s string) time.Time {
	for _, layout := range jiraTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// StringField returns a top-level string field
func (i *Issue) StringField(key string) string {
	s, _ := i.Fields[key].(string)
	return s
}

// objectField returns a named property of a nested object field
func (i *Issue) objectField(key, prop string) string {
	obj, ok := i.Fields[key].(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := obj[prop].(string)
	return s
}

// Summary returns the issue summary
func (i *Issue) Summary() string { return i.StringField("summary") }

// Description returns the raw description (ADF document or string)
func (i *Issue) Description() interface{} { return i.Fields["description"] }

// StatusID returns the id of the issue's current status
func (i *Issue) StatusID() string { return i.objectField("status", "id") }

// StatusName returns the name of the issue's current status
func (i *Issue) StatusName() string { return i.objectField("status", "name") }

// PriorityName returns the priority name, if any
func (i *Issue) PriorityName() string { return i.objectField("priority", "name") }

// AssigneeEmail returns the assignee's email when visible
func (i *Issue) AssigneeEmail() string { return i.objectField("assignee", "emailAddress") }

// AssigneeName returns the assignee's display name
func (i *Issue) AssigneeName() string { return i.objectField("assignee", "displayName") }

// IssueTypeName returns the issue type name
func (i *Issue) IssueTypeName() string { return i.objectField("issuetype", "name") }

// ParentKey returns the parent issue key for subtasks and child issues
func (i *Issue) ParentKey() string { return i.objectField("parent", "key") }

// SubtaskKeys returns the keys of the issue's subtasks
func (i *Issue) SubtaskKeys() []string {
	raw, ok := i.Fields["subtasks"].([]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(raw))
	for _, st := range raw {
		if m, ok := st.(map[string]interface{}); ok {
			if k, ok := m["key"].(string); ok {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Created returns the creation time
func (i *Issue) Created() time.Time { return ParseJiraTime(i.StringField("created")) }

// Updated returns the last update time
func (i *Issue) Updated() time.Time { return ParseJiraTime(i.StringField("updated")) }

// DueDate returns the due date, or nil when unset
func (i *Issue) DueDate() *time.Time {
	s := i.StringField("duedate")
	if s == "" {
		return nil
	}
	t := ParseJiraTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

// NumberField reads a numeric custom field such as story points
func (i *Issue) NumberField(key string) *float64 {
	switch v := i.Fields[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

// IssueSprint is one entry of an issue's sprint field
type IssueSprint struct {
	ID        int
	Name      string
	State     string
	Goal      string
	StartDate *time.Time
	EndDate   *time.Time
}

// Sprints reads the sprint custom field stored under key. Jira Cloud returns
// a list of sprint objects; entries without an id are skipped.
func (i *Issue) Sprints(key string) []IssueSprint {
	raw, ok := i.Fields[key].([]interface{})
	if !ok {
		return nil
	}
	sprints := make([]IssueSprint, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := m["id"].(float64)
		if !ok {
			continue
		}
		s := IssueSprint{ID: int(id)}
		s.Name, _ = m["name"].(string)
		s.State, _ = m["state"].(string)
		s.Goal, _ = m["goal"].(string)
		s.StartDate = timeProp(m, "startDate")
		s.EndDate = timeProp(m, "endDate")
		sprints = append(sprints, s)
	}
	return sprints
}

// CurrentSprint picks the sprint an issue belongs to now: the active one,
// else the first future one, else the last closed one
func (i *Issue) CurrentSprint(key string) *IssueSprint {
	sprints := i.Sprints(key)
	if len(sprints) == 0 {
		return nil
	}
	for _, state := range []string{"active", "future"} {
		for j := range sprints {
			if sprints[j].State == state {
				return &sprints[j]
			}
		}
	}
	return &sprints[len(sprints)-1]
}

func timeProp(m map[string]interface{}, key string) *time.Time {
	s, _ := m[key].(string)
	if s == "" {
		return nil
	}
	t := ParseJiraTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}
