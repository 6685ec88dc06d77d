package workspace

import (
	"sort"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// BuildScope assembles the export unit of a space. With folderID set only the
// sprints of that folder are included and the backlog is left out.
func BuildScope(space *Space, folderID string) *models.SprintScope {
	scope := &models.SprintScope{
		Kind:     models.ScopeSpace,
		ID:       space.ID,
		Name:     space.Name,
		Statuses: append([]models.LocalStatus(nil), space.Statuses...),
	}
	if folderID != "" {
		scope.Kind = models.ScopeFolder
		scope.ID = folderID
		for _, f := range space.Folders {
			if f.ID == folderID {
				scope.Name = f.Name
			}
		}
	}

	index := make(map[string]int)
	for _, sp := range space.Sprints {
		if folderID != "" && sp.FolderID != folderID {
			continue
		}
		index[sp.ID] = len(scope.Sprints)
		scope.Sprints = append(scope.Sprints, models.SprintWithTasks{Sprint: sp})
	}

	for _, task := range space.Tasks {
		if i, ok := index[task.SprintID]; ok && task.SprintID != "" {
			scope.Sprints[i].Tasks = append(scope.Sprints[i].Tasks, task)
			continue
		}
		if folderID == "" {
			scope.Backlog = append(scope.Backlog, task)
		}
	}

	SortSprints(scope.Sprints)
	return scope
}

// SortSprints orders sprints chronologically by start date. Sprints without a
// start date keep their relative order after the dated ones.
func SortSprints(sprints []models.SprintWithTasks) {
	sort.SliceStable(sprints, func(i, j int) bool {
		a, b := sprints[i].Sprint.StartDate, sprints[j].Sprint.StartDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
