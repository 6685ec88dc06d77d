package jira

import (
	"context"
	"fmt"
	"strings"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/config"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// sprintSchemaMarker identifies the sprint custom field type
// (com.pyxis.greenhopper.jira:gh-sprint)
const sprintSchemaMarker = "gh-sprint"

// storyPointsHints are the substring heuristics, in order, used when no
// field is named exactly "story points"
var storyPointsHints = []string{"story point", "storypoint", "points"}

// FieldSource says where a discovered field came from
type FieldSource string

const (
	SourceConfig     FieldSource = "config"
	SourceCreateMeta FieldSource = "createmeta"
	SourceGlobal     FieldSource = "global"
)

// FieldRef is a discovered custom field. A nil *FieldRef means the remote
// instance has no such field and the feature is unavailable.
type FieldRef struct {
	Key    string      `json:"key"`
	Name   string      `json:"name"`
	Source FieldSource `json:"source"`
	// OnCreateScreen is true when the field is on the create screen of at
	// least one issue type. Use Tracker.FieldOnCreateScreen before sending it
	// with POST /issue for a given type.
	OnCreateScreen bool `json:"on_create_screen"`
}

// FieldService handles field-related operations
type FieldService struct {
	api      *api
	metadata *MetadataService
}

// NewFieldService creates a new FieldService instance
func NewFieldService(c *client.Client) *FieldService {
	return &FieldService{
		api:      newAPI(c, 0),
		metadata: NewMetadataService(c),
	}
}

// ListFields retrieves all fields from Jira. The /field endpoint is global;
// per-project availability comes from create metadata.
func (s *FieldService) ListFields(ctx context.Context) ([]models.Field, error) {
	var fields []models.Field
	if err := s.api.get(ctx, client.FamilyCore, "/field", nil, &fields); err != nil {
		return nil, fmt.Errorf("failed to fetch fields: %w", err)
	}
	return fields, nil
}

// GetFieldByID retrieves a field by its ID
func (s *FieldService) GetFieldByID(ctx context.Context, id string) (*models.Field, error) {
	fields, err := s.ListFields(ctx)
	if err != nil {
		return nil, err
	}

	for _, field := range fields {
		if field.ID == id {
			return &field, nil
		}
	}

	return nil, fmt.Errorf("field with ID '%s' not found", id)
}

// SaveFieldMapping validates that fieldID exists and records alias -> fieldID
// in cfg, then writes cfg to configPath. An existing alias is only replaced
// when overwrite is set.
func (s *FieldService) SaveFieldMapping(ctx context.Context, alias, fieldID string, overwrite bool, cfg *config.Config, configPath string) error {
	if _, err := s.GetFieldByID(ctx, fieldID); err != nil {
		return fmt.Errorf("cannot map alias '%s': %w", alias, err)
	}

	if cfg.FieldMappings == nil {
		cfg.FieldMappings = make(map[string]string)
	}

	if existingID, exists := cfg.FieldMappings[alias]; exists && !overwrite {
		if existingID == fieldID {
			return fmt.Errorf("alias '%s' is already mapped to '%s'", alias, fieldID)
		}
		return fmt.Errorf("alias '%s' already mapped to '%s'. Use --force to replace it", alias, existingID)
	}

	cfg.FieldMappings[alias] = fieldID

	if err := cfg.SaveTo(configPath); err != nil {
		return fmt.Errorf("failed to save field mapping: %w", err)
	}

	return nil
}

// FindStoryPointsField discovers the story points custom field of a project.
// Create metadata is searched first for an exact (case-insensitive) "Story
// Points" name, then for the substring hints; the global field list is the
// last resort. Returns nil, nil when nothing matches.
func (s *FieldService) FindStoryPointsField(ctx context.Context, projectKey string) (*FieldRef, error) {
	var createFields map[string]models.FieldMeta
	meta, err := s.metadata.GetProjectCreateMeta(ctx, projectKey)
	if err == nil {
		createFields = meta.AllFields()
	}

	if ref := matchStoryPoints(createFields); ref != nil {
		return ref, nil
	}

	fields, ferr := s.ListFields(ctx)
	if ferr != nil {
		if err != nil {
			return nil, fmt.Errorf("story points discovery failed: %w", err)
		}
		return nil, ferr
	}

	for _, hint := range storyPointsHints {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f.Name), hint) {
				return &FieldRef{Key: f.ID, Name: f.Name, Source: SourceGlobal}, nil
			}
		}
	}
	return nil, nil
}

// matchStoryPoints applies the exact-name tier, then the substring tier, to
// create metadata. Keys are visited in sorted order so ties resolve the same
// way on every run.
func matchStoryPoints(fields map[string]models.FieldMeta) *FieldRef {
	keys := sortedKeys(fields)

	for _, key := range keys {
		if strings.EqualFold(strings.TrimSpace(fields[key].Name), "story points") {
			return &FieldRef{Key: key, Name: fields[key].Name, Source: SourceCreateMeta, OnCreateScreen: true}
		}
	}
	for _, hint := range storyPointsHints {
		for _, key := range keys {
			if strings.Contains(strings.ToLower(fields[key].Name), hint) {
				return &FieldRef{Key: key, Name: fields[key].Name, Source: SourceCreateMeta, OnCreateScreen: true}
			}
		}
	}
	return nil
}

// FindSprintField discovers the sprint custom field by its schema type
// rather than its (localized, renameable) name
func (s *FieldService) FindSprintField(ctx context.Context, projectKey string) (*FieldRef, error) {
	meta, err := s.metadata.GetProjectCreateMeta(ctx, projectKey)
	if err == nil {
		fields := meta.AllFields()
		for _, key := range sortedKeys(fields) {
			if strings.Contains(fields[key].Schema.Custom, sprintSchemaMarker) {
				return &FieldRef{Key: key, Name: fields[key].Name, Source: SourceCreateMeta, OnCreateScreen: true}, nil
			}
		}
	}

	fields, ferr := s.ListFields(ctx)
	if ferr != nil {
		if err != nil {
			return nil, fmt.Errorf("sprint field discovery failed: %w", err)
		}
		return nil, ferr
	}
	for _, f := range fields {
		if strings.Contains(f.Schema.Custom, sprintSchemaMarker) {
			return &FieldRef{Key: f.ID, Name: f.Name, Source: SourceGlobal}, nil
		}
	}
	return nil, nil
}

// ResolveFieldID resolves an alias or field ID to the actual field ID
// It checks:
// 1. If it's an alias in the config's field mappings
// 2. If the input is already a valid field ID (standard or custom)
// 3. If it's a field name that can be resolved
func (s *FieldService) ResolveFieldID(ctx context.Context, nameOrID string, cfg *config.Config) (string, error) {
	nameOrID = strings.TrimSpace(nameOrID)

	if cfg != nil {
		if fieldID, exists := cfg.FieldMappings[nameOrID]; exists {
			return fieldID, nil
		}
	}

	fields, err := s.ListFields(ctx)
	if err != nil {
		return "", err
	}
	for _, f := range fields {
		if f.ID == nameOrID {
			return f.ID, nil
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.Name, nameOrID) {
			return f.ID, nil
		}
	}

	return "", fmt.Errorf("could not resolve '%s': not a valid field ID, alias, or field name. Run 'jws fields list' to see available fields", nameOrID)
}
