package jira

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// fakeJira is a minimal Jira Cloud stand-in that records every call
type fakeJira struct {
	mux *http.ServeMux

	mu    sync.Mutex
	calls []string
}

func newFakeJira(t *testing.T) (*fakeJira, *client.Client) {
	t.Helper()
	f := &fakeJira{mux: http.NewServeMux()}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	creds := models.Credentials{Domain: "example.atlassian.net", Email: "dev@example.com", APIToken: "token"}
	return f, client.New(creds, client.WithHostURL(server.URL))
}

// handle registers a handler for a "METHOD /path" pattern
func (f *fakeJira) handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

// respond registers a handler that always answers with v as JSON
func (f *fakeJira) respond(pattern string, v interface{}) {
	f.handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, v)
	})
}

func (f *fakeJira) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func createMeta(projectKey string, fields map[string]models.FieldMeta) models.CreateMetaResponse {
	return models.CreateMetaResponse{
		Projects: []models.CreateMetaProject{{
			ID:  "10000",
			Key: projectKey,
			IssueTypes: []models.CreateMetaIssueType{
				{ID: "1", Name: "Task", Fields: fields},
			},
		}},
	}
}
