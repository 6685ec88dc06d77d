package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

const (
	// FilePerms is the permission of the workspace file
	FilePerms = 0600
	// DirPerms is the permission of the directory holding it
	DirPerms = 0700
)

// document is the on-disk layout of a FileStore
type document struct {
	Spaces []Space `yaml:"spaces"`
}

// FileStore keeps the workspace in a single YAML file. Every mutation is
// written through to disk under the store's lock.
type FileStore struct {
	path string

	mu  sync.Mutex
	doc document
	now func() time.Time
}

// OpenFileStore loads the workspace file at path. A missing file is an empty
// workspace. Entries without ids (hand-written files) get one.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, now: time.Now}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("failed to parse workspace file %s: %w", path, err)
	}
	if s.assignIDs() {
		if err := s.save(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Path returns the workspace file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Spaces(_ context.Context) ([]Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spaces := make([]Space, len(s.doc.Spaces))
	copy(spaces, s.doc.Spaces)
	return spaces, nil
}

func (s *FileStore) Space(_ context.Context, idOrName string) (*Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.find(idOrName)
	if sp == nil {
		return nil, fmt.Errorf("space '%s': %w", idOrName, ErrNotFound)
	}
	out := *sp
	return &out, nil
}

func (s *FileStore) EnsureSpace(_ context.Context, name, externalKey string) (*Space, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.doc.Spaces {
		if externalKey != "" && strings.EqualFold(s.doc.Spaces[i].ExternalKey, externalKey) {
			out := s.doc.Spaces[i]
			return &out, nil
		}
	}

	sp := Space{ID: uuid.NewString(), Name: name, ExternalKey: externalKey}
	s.doc.Spaces = append(s.doc.Spaces, sp)
	if err := s.save(); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *FileStore) EnsureLinkedStatus(_ context.Context, spaceID string, status models.LocalStatus) (models.LocalStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.find(spaceID)
	if sp == nil {
		return models.LocalStatus{}, false, fmt.Errorf("space '%s': %w", spaceID, ErrNotFound)
	}
	if status.ExternalID != "" {
		for _, existing := range sp.Statuses {
			if existing.IsLinked() && existing.ExternalID == status.ExternalID {
				return existing, false, nil
			}
		}
	}

	if status.ID == "" {
		status.ID = uuid.NewString()
	}
	sp.Statuses = append(sp.Statuses, status)
	if err := s.save(); err != nil {
		return models.LocalStatus{}, false, err
	}
	return status, true, nil
}

func (s *FileStore) EnsureSprint(_ context.Context, spaceID string, sprint models.LocalSprint) (models.LocalSprint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.find(spaceID)
	if sp == nil {
		return models.LocalSprint{}, false, fmt.Errorf("space '%s': %w", spaceID, ErrNotFound)
	}
	if sprint.ExternalID != "" {
		for _, existing := range sp.Sprints {
			if existing.ExternalID == sprint.ExternalID {
				return existing, false, nil
			}
		}
	}

	if sprint.ID == "" {
		sprint.ID = uuid.NewString()
	}
	sp.Sprints = append(sp.Sprints, sprint)
	if err := s.save(); err != nil {
		return models.LocalSprint{}, false, err
	}
	return sprint, true, nil
}

func (s *FileStore) LinkStatus(_ context.Context, spaceID, statusID, externalID, externalName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.find(spaceID)
	if sp == nil {
		return fmt.Errorf("space '%s': %w", spaceID, ErrNotFound)
	}
	for i := range sp.Statuses {
		if sp.Statuses[i].ID == statusID {
			sp.Statuses[i].IntegrationType = models.IntegrationJira
			sp.Statuses[i].ExternalID = externalID
			sp.Statuses[i].ExternalName = externalName
			return s.save()
		}
	}
	return fmt.Errorf("status '%s': %w", statusID, ErrNotFound)
}

func (s *FileStore) AddTasks(_ context.Context, spaceID string, tasks []models.LocalTask) ([]models.LocalTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.find(spaceID)
	if sp == nil {
		return nil, fmt.Errorf("space '%s': %w", spaceID, ErrNotFound)
	}

	added := make([]models.LocalTask, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now().UTC()
		}
		added[i] = t
	}
	sp.Tasks = append(sp.Tasks, added...)
	if err := s.save(); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *FileStore) SaveMappings(_ context.Context, spaceID string, mappings []models.StatusMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.find(spaceID)
	if sp == nil {
		return fmt.Errorf("space '%s': %w", spaceID, ErrNotFound)
	}
	sp.Mappings = append([]models.StatusMapping(nil), mappings...)
	return s.save()
}

// Scope finds the space, or the space owning the folder, and builds the
// export unit from it
func (s *FileStore) Scope(_ context.Context, kind models.ScopeKind, id string) (*models.SprintScope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case models.ScopeSpace:
		sp := s.find(id)
		if sp == nil {
			return nil, fmt.Errorf("space '%s': %w", id, ErrNotFound)
		}
		return BuildScope(sp, ""), nil
	case models.ScopeFolder:
		for i := range s.doc.Spaces {
			for _, f := range s.doc.Spaces[i].Folders {
				if f.ID == id || strings.EqualFold(f.Name, id) {
					return BuildScope(&s.doc.Spaces[i], f.ID), nil
				}
			}
		}
		return nil, fmt.Errorf("sprint folder '%s': %w", id, ErrNotFound)
	default:
		return nil, fmt.Errorf("unknown scope kind '%s'", kind)
	}
}

// find looks a space up by id, then by case-insensitive name
func (s *FileStore) find(idOrName string) *Space {
	for i := range s.doc.Spaces {
		if s.doc.Spaces[i].ID == idOrName {
			return &s.doc.Spaces[i]
		}
	}
	for i := range s.doc.Spaces {
		if strings.EqualFold(s.doc.Spaces[i].Name, idOrName) {
			return &s.doc.Spaces[i]
		}
	}
	return nil
}

// assignIDs fills in missing ids and reports whether anything changed
func (s *FileStore) assignIDs() bool {
	changed := false
	fill := func(id *string) {
		if *id == "" {
			*id = uuid.NewString()
			changed = true
		}
	}
	for i := range s.doc.Spaces {
		sp := &s.doc.Spaces[i]
		fill(&sp.ID)
		for j := range sp.Statuses {
			fill(&sp.Statuses[j].ID)
		}
		for j := range sp.Folders {
			fill(&sp.Folders[j].ID)
		}
		for j := range sp.Sprints {
			fill(&sp.Sprints[j].ID)
		}
		for j := range sp.Tasks {
			fill(&sp.Tasks[j].ID)
		}
	}
	return changed
}

// save writes the document to a temp file and renames it into place.
// Callers hold s.mu.
func (s *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), DirPerms); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	data, err := yaml.Marshal(&s.doc)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, FilePerms); err != nil {
		return fmt.Errorf("failed to write workspace file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace workspace file: %w", err)
	}
	return nil
}
