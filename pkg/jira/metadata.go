package jira

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// MetadataService handles fetching and caching issue create and edit metadata
type MetadataService struct {
	api   *api
	cache *metadataCache
}

// metadataCache stores create metadata with TTL
type metadataCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// cacheEntry represents a cached metadata entry
type cacheEntry struct {
	data      *ProjectCreateMeta
	expiresAt time.Time
}

// ProjectCreateMeta is the create screen of every issue type of one project
type ProjectCreateMeta struct {
	Key        string                       `json:"key"`
	IssueTypes []models.CreateMetaIssueType `json:"issuetypes"`
}

const (
	// cacheTTL is the time-to-live for cached metadata (5 minutes)
	cacheTTL = 5 * time.Minute
)

// NewMetadataService creates a new MetadataService
func NewMetadataService(c *client.Client) *MetadataService {
	return &MetadataService{
		api: newAPI(c, 0),
		cache: &metadataCache{
			entries: make(map[string]*cacheEntry),
		},
	}
}

// GetProjectCreateMeta fetches create metadata, with fields, for all issue
// types of a project
func (s *MetadataService) GetProjectCreateMeta(ctx context.Context, projectKey string) (*ProjectCreateMeta, error) {
	if meta := s.cache.get(projectKey); meta != nil {
		return meta, nil
	}

	var response models.CreateMetaResponse
	query := map[string]string{
		"projectKeys": projectKey,
		"expand":      "projects.issuetypes.fields",
	}
	if err := s.api.get(ctx, client.FamilyCore, "/issue/createmeta", query, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch create metadata: %w", err)
	}

	if len(response.Projects) == 0 {
		return nil, fmt.Errorf("project '%s' not found or you don't have access", projectKey)
	}

	project := response.Projects[0]
	meta := &ProjectCreateMeta{Key: project.Key, IssueTypes: project.IssueTypes}
	s.cache.set(projectKey, meta)

	return meta, nil
}

// GetEditMetadata fetches the fields that can be edited on an existing issue
func (s *MetadataService) GetEditMetadata(ctx context.Context, issueKey string) (map[string]models.FieldMeta, error) {
	var response models.EditMetaResponse
	endpoint := fmt.Sprintf("/issue/%s/editmeta", url.PathEscape(issueKey))
	if err := s.api.get(ctx, client.FamilyCore, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch edit metadata for %s: %w", issueKey, err)
	}
	return response.Fields, nil
}

// IsFieldEditable reports whether fieldKey is on the edit screen of issueKey
// and accepts a "set" operation
func (s *MetadataService) IsFieldEditable(ctx context.Context, issueKey, fieldKey string) (bool, error) {
	fields, err := s.GetEditMetadata(ctx, issueKey)
	if err != nil {
		return false, err
	}
	field, ok := fields[fieldKey]
	if !ok {
		return false, nil
	}
	if len(field.Operations) == 0 {
		return true, nil
	}
	for _, op := range field.Operations {
		if op == "set" {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops all cached create metadata
func (s *MetadataService) Invalidate() {
	s.cache.clear()
}

// IssueType finds an issue type by name (case-insensitive)
func (m *ProjectCreateMeta) IssueType(name string) *models.CreateMetaIssueType {
	for i := range m.IssueTypes {
		if strings.EqualFold(m.IssueTypes[i].Name, name) {
			return &m.IssueTypes[i]
		}
	}
	return nil
}

// AllFields merges the fields of every issue type. When two issue types
// disagree on a field the first one wins.
func (m *ProjectCreateMeta) AllFields() map[string]models.FieldMeta {
	fields := make(map[string]models.FieldMeta)
	for _, it := range m.IssueTypes {
		for key, f := range it.Fields {
			if _, ok := fields[key]; !ok {
				if f.Key == "" {
					f.Key = key
				}
				fields[key] = f
			}
		}
	}
	return fields
}

// HasField reports whether issueType's create screen includes fieldKey
func (m *ProjectCreateMeta) HasField(issueType, fieldKey string) bool {
	it := m.IssueType(issueType)
	if it == nil {
		return false
	}
	_, ok := it.Fields[fieldKey]
	return ok
}

// get retrieves a cached entry if it exists and hasn't expired
func (c *metadataCache) get(key string) *ProjectCreateMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil
	}

	if time.Now().After(entry.expiresAt) {
		return nil
	}

	return entry.data
}

// set stores a new entry in the cache with TTL
func (c *metadataCache) set(key string, data *ProjectCreateMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(cacheTTL),
	}
}

// clear removes all cached entries
func (c *metadataCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
}

func sortedKeys(fields map[string]models.FieldMeta) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
