package jira

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

func TestNormalizeProjects_KnownShapes(t *testing.T) {
	items := `[{"id":"1","key":"ABC","name":"Alpha"},{"id":"2","key":"XYZ","name":"Omega"}]`
	shapes := map[string]string{
		"bare array": items,
		"values":     `{"values":` + items + `,"isLast":true,"total":2}`,
		"projects":   `{"projects":` + items + `}`,
	}

	var first []models.Project
	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			projects, isLast := NormalizeProjects([]byte(body))
			assert.True(t, isLast)
			require.Len(t, projects, 2)
			if first == nil {
				first = projects
			}
			assert.Equal(t, first, projects)
			assert.Equal(t, "ABC", projects[0].Key)
		})
	}
}

func TestNormalizeProjects_UnrecognizedShapes(t *testing.T) {
	for _, body := range []string{
		``,
		`null`,
		`"text"`,
		`42`,
		`{"items":[{"key":"ABC"}]}`,
		`{"values":"nope"}`,
		`[1,2,3]`,
		`<html>`,
	} {
		projects, isLast := NormalizeProjects([]byte(body))
		assert.NotNil(t, projects, "body %q", body)
		assert.Empty(t, projects, "body %q", body)
		assert.True(t, isLast, "body %q", body)
	}
}

func TestNormalizeProjects_Paginated(t *testing.T) {
	projects, isLast := NormalizeProjects([]byte(`{"values":[{"key":"ABC"}],"isLast":false}`))
	assert.False(t, isLast)
	assert.Len(t, projects, 1)
}

func TestListProjects_Paginates(t *testing.T) {
	fake, c := newFakeJira(t)
	fake.handle("GET /rest/api/3/project/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("startAt") == "0" {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"values": []models.Project{{Key: "ABC"}, {Key: "DEF"}},
				"isLast": false,
			})
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("startAt"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"values": []models.Project{{Key: "GHI"}},
			"isLast": true,
		})
	})

	projects, err := NewProjectService(c).ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "GHI", projects[2].Key)
	assert.Equal(t, 2, fake.count("GET /rest/api/3/project/search"))
}

func TestListProjects_UnrecognizedIsEmpty(t *testing.T) {
	fake, c := newFakeJira(t)
	fake.respond("GET /rest/api/3/project/search", map[string]interface{}{"unexpected": true})

	projects, err := NewProjectService(c).ListProjects(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Empty(t, projects)
}

func TestListProjectStatuses_Dedupes(t *testing.T) {
	fake, c := newFakeJira(t)
	todo := models.Status{ID: "1", Name: "To Do"}
	doing := models.Status{ID: "3", Name: "In Progress"}
	done := models.Status{ID: "10001", Name: "Done"}
	fake.respond("GET /rest/api/3/project/ABC/statuses", []models.IssueTypeStatuses{
		{ID: "1", Name: "Task", Statuses: []models.Status{todo, doing, done}},
		{ID: "2", Name: "Bug", Statuses: []models.Status{todo, done}},
		{ID: "3", Name: "Story", Statuses: []models.Status{doing}},
	})

	statuses, err := NewProjectService(c).ListProjectStatuses(context.Background(), "ABC")
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, []string{"1", "3", "10001"}, []string{statuses[0].ID, statuses[1].ID, statuses[2].ID})
}

func TestCreateProject_NumericID(t *testing.T) {
	fake, c := newFakeJira(t)
	fake.handle("POST /rest/api/3/project", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"self":"https://x/rest/api/3/project/10042","id":10042,"key":"NEW"}`))
	})

	created, err := NewProjectService(c).CreateProject(context.Background(), "New Thing", "NEW", "", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "10042", created.ID.String())
	assert.Equal(t, "NEW", created.Key)
}

func TestCreateProject_RejectsBadKeyBeforeCalling(t *testing.T) {
	fake, c := newFakeJira(t)

	_, err := NewProjectService(c).CreateProject(context.Background(), "x", "x", "", "acc-1")
	assert.True(t, errors.Is(err, ErrInvalidProjectKey))
	assert.Equal(t, 0, fake.count("POST /rest/api/3/project"))
}

func TestGenerateProjectKey(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "Mobile App", want: "MA"},
		{name: "platform", want: "PLATFORM"},
		{name: "Infrastructure Automation Tooling", want: "IAT"},
		{name: "supercalifragilistic", want: "SUPERCALIF"},
		{name: "42 answers", want: "ANSWERS"},
		{name: "Q3-roadmap v2", want: "QRV"},
		{name: "x", wantErr: true},
		{name: "", wantErr: true},
		{name: "!!!", wantErr: true},
		{name: "9", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := GenerateProjectKey(tt.name)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidProjectKey))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestGenerateProjectKey_AlwaysValid(t *testing.T) {
	valid := regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)
	names := []string{
		"Customer Success Platform 2024 Relaunch And Migration Phase One",
		"ünïcödé project name",
		"a1",
		"123 go",
		strings.Repeat("word ", 40),
		"Team-Ω Backend",
	}
	for _, name := range names {
		key, err := GenerateProjectKey(name)
		if err != nil {
			assert.True(t, errors.Is(err, ErrInvalidProjectKey), name)
			continue
		}
		assert.Regexp(t, valid, key, name)
		assert.LessOrEqual(t, len(key), MaxProjectKeyLength, name)
	}
}

func TestValidateProjectKey(t *testing.T) {
	existing := []models.Project{{Key: "ABC", Name: "Alpha"}}

	assert.NoError(t, ValidateProjectKey("NEW1", existing))
	assert.True(t, errors.Is(ValidateProjectKey("abc", existing), ErrInvalidProjectKey))
	assert.True(t, errors.Is(ValidateProjectKey("A", existing), ErrInvalidProjectKey))
	assert.True(t, errors.Is(ValidateProjectKey("1AB", existing), ErrInvalidProjectKey))
	assert.True(t, errors.Is(ValidateProjectKey("ABCDEFGHIJK", existing), ErrInvalidProjectKey))
	assert.True(t, errors.Is(ValidateProjectKey("ABC", existing), ErrProjectKeyTaken))
}

func TestUniqueProjectKey(t *testing.T) {
	existing := []models.Project{{Key: "MA"}, {Key: "MA2"}}
	key, err := UniqueProjectKey("Mobile App", existing)
	require.NoError(t, err)
	assert.Equal(t, "MA3", key)

	key, err = UniqueProjectKey("supercalifragilistic", []models.Project{{Key: "SUPERCALIF"}})
	require.NoError(t, err)
	assert.Equal(t, "SUPERCALI2", key)
}
