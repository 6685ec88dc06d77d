package jira

import (
	"context"
	"testing"
	"time"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

func TestMetadataCache(t *testing.T) {
	cache := &metadataCache{
		entries: make(map[string]*cacheEntry),
	}

	// Test cache miss
	if result := cache.get("ABC"); result != nil {
		t.Error("Expected cache miss for non-existent key")
	}

	meta := &ProjectCreateMeta{
		Key: "ABC",
		IssueTypes: []models.CreateMetaIssueType{{
			Name: "Story",
			Fields: map[string]models.FieldMeta{
				"summary": {Required: true, Name: "Summary", Schema: models.FieldSchema{Type: "string"}},
			},
		}},
	}

	cache.set("ABC", meta)

	result := cache.get("ABC")
	if result == nil {
		t.Fatal("Expected cache hit")
	}
	if result.IssueTypes[0].Name != "Story" {
		t.Errorf("Expected name 'Story', got '%s'", result.IssueTypes[0].Name)
	}

	// Expired entries are misses
	cache.entries["ABC"].expiresAt = time.Now().Add(-time.Second)
	if result := cache.get("ABC"); result != nil {
		t.Error("Expected cache miss for expired entry")
	}
}

func TestCacheClear(t *testing.T) {
	cache := &metadataCache{
		entries: make(map[string]*cacheEntry),
	}
	cache.set("A", &ProjectCreateMeta{Key: "A"})
	cache.set("B", &ProjectCreateMeta{Key: "B"})

	cache.clear()

	if len(cache.entries) != 0 {
		t.Errorf("Expected empty cache after clear, got %d entries", len(cache.entries))
	}
}

func TestGetProjectCreateMeta_Cached(t *testing.T) {
	fake, c := newFakeJira(t)
	fake.respond("GET /rest/api/3/issue/createmeta", createMeta("ABC", map[string]models.FieldMeta{
		"summary": {Name: "Summary"},
	}))
	svc := NewMetadataService(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.GetProjectCreateMeta(ctx, "ABC"); err != nil {
			t.Fatalf("GetProjectCreateMeta() error = %v", err)
		}
	}
	if n := fake.count("GET /rest/api/3/issue/createmeta"); n != 1 {
		t.Errorf("Expected 1 createmeta call, got %d", n)
	}

	svc.Invalidate()
	if _, err := svc.GetProjectCreateMeta(ctx, "ABC"); err != nil {
		t.Fatalf("GetProjectCreateMeta() error = %v", err)
	}
	if n := fake.count("GET /rest/api/3/issue/createmeta"); n != 2 {
		t.Errorf("Expected refetch after Invalidate, got %d calls", n)
	}
}

func TestProjectCreateMeta_HasField(t *testing.T) {
	meta := &ProjectCreateMeta{
		Key: "ABC",
		IssueTypes: []models.CreateMetaIssueType{
			{ID: "1", Name: "Task", Fields: map[string]models.FieldMeta{"summary": {Name: "Summary"}}},
			{ID: "2", Name: "Story", Fields: map[string]models.FieldMeta{
				"summary":           {Name: "Summary"},
				"customfield_10016": {Name: "Story Points"},
			}},
		},
	}

	tests := []struct {
		issueType string
		field     string
		want      bool
	}{
		{"Story", "customfield_10016", true},
		{"story", "customfield_10016", true},
		{"Task", "customfield_10016", false},
		{"Task", "summary", true},
		{"Epic", "summary", false},
	}
	for _, tt := range tests {
		if got := meta.HasField(tt.issueType, tt.field); got != tt.want {
			t.Errorf("HasField(%q, %q) = %v, want %v", tt.issueType, tt.field, got, tt.want)
		}
	}

	// the merged view still sees the Story-only field
	if _, ok := meta.AllFields()["customfield_10016"]; !ok {
		t.Error("AllFields() should include fields of every issue type")
	}
}

func TestGetProjectCreateMeta_NoProjects(t *testing.T) {
	fake, c := newFakeJira(t)
	fake.respond("GET /rest/api/3/issue/createmeta", models.CreateMetaResponse{})

	if _, err := NewMetadataService(c).GetProjectCreateMeta(context.Background(), "NOPE"); err == nil {
		t.Error("Expected error when createmeta lists no projects")
	}
}

func TestIsFieldEditable(t *testing.T) {
	fake, c := newFakeJira(t)
	fake.respond("GET /rest/api/3/issue/ABC-1/editmeta", models.EditMetaResponse{
		Fields: map[string]models.FieldMeta{
			"customfield_10016": {Name: "Story Points", Operations: []string{"set"}},
			"labels":            {Name: "Labels", Operations: []string{"add", "remove"}},
			"summary":           {Name: "Summary"},
		},
	})
	svc := NewMetadataService(c)
	ctx := context.Background()

	tests := []struct {
		field string
		want  bool
	}{
		{"customfield_10016", true},
		{"labels", false},
		{"summary", true},
		{"customfield_99999", false},
	}
	for _, tt := range tests {
		got, err := svc.IsFieldEditable(ctx, "ABC-1", tt.field)
		if err != nil {
			t.Fatalf("IsFieldEditable(%s) error = %v", tt.field, err)
		}
		if got != tt.want {
			t.Errorf("IsFieldEditable(%s) = %v, want %v", tt.field, got, tt.want)
		}
	}
}

func TestProjectCreateMeta_AllFields(t *testing.T) {
	meta := &ProjectCreateMeta{IssueTypes: []models.CreateMetaIssueType{
		{Name: "Task", Fields: map[string]models.FieldMeta{"summary": {Name: "Summary"}}},
		{Name: "Bug", Fields: map[string]models.FieldMeta{
			"summary":     {Name: "Bug Summary"},
			"environment": {Name: "Environment"},
		}},
	}}

	fields := meta.AllFields()
	if len(fields) != 2 {
		t.Fatalf("Expected 2 merged fields, got %d", len(fields))
	}
	if fields["summary"].Name != "Summary" {
		t.Errorf("Expected first issue type to win, got %s", fields["summary"].Name)
	}
	if fields["environment"].Key != "environment" {
		t.Errorf("Expected key to be filled in, got %q", fields["environment"].Key)
	}
	if !meta.HasField("bug", "environment") || meta.HasField("task", "environment") {
		t.Error("HasField should only report fields on the issue type's screen")
	}
}
