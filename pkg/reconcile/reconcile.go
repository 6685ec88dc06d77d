// Package reconcile maps local workflow statuses onto the statuses of a Jira
// project.
//
// Each local status is matched by the first rule that succeeds, in order:
// an existing link that is still present remotely, an exact name, a
// substring in either direction, a keyword or status category for the
// status type, and finally the first remote status. The result is advisory
// and is meant to be confirmed by a person before an export.
package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// ErrUnmappedStatus is returned by Validate when a local status has no usable
// remote target
var ErrUnmappedStatus = errors.New("status is not mapped to a Jira status")

// keywords are matched against remote status names, per status type
var keywords = map[models.StatusType][]string{
	models.StatusNotStarted: {"to do", "todo", "backlog", "open", "new", "selected"},
	models.StatusActive:     {"in progress", "active", "doing", "started"},
	models.StatusDone:       {"done", "complete", "resolved", "finished"},
	models.StatusClosed:     {"closed", "cancel", "won't", "rejected"},
}

// categories maps a status type to the Jira status category key
var categories = map[models.StatusType]string{
	models.StatusNotStarted: models.CategoryNew,
	models.StatusActive:     models.CategoryIndeterminate,
	models.StatusDone:       models.CategoryDone,
	models.StatusClosed:     models.CategoryDone,
}

// matcher is one tier of the matching rules
type matcher struct {
	tier  models.MatchTier
	match func(local models.LocalStatus, remote []models.Status) *models.Status
}

var tiers = []matcher{
	{models.MatchExisting, matchExisting},
	{models.MatchExact, matchExact},
	{models.MatchSubstring, matchSubstring},
	{models.MatchKeyword, matchKeyword},
	{models.MatchFallback, matchFallback},
}

// Reconcile returns one mapping per local status, in input order. With a
// non-empty remote list every mapping has a remote target.
func Reconcile(local []models.LocalStatus, remote []models.Status) []models.StatusMapping {
	mappings := make([]models.StatusMapping, 0, len(local))
	for _, ls := range local {
		mappings = append(mappings, MatchOne(ls, remote))
	}
	return mappings
}

// MatchOne maps a single local status
func MatchOne(local models.LocalStatus, remote []models.Status) models.StatusMapping {
	m := models.StatusMapping{
		LocalStatusID:   local.ID,
		LocalStatusName: local.Name,
	}
	for _, t := range tiers {
		rs := t.match(local, remote)
		if rs == nil {
			continue
		}
		m.RemoteStatusID = rs.ID
		m.RemoteStatusName = rs.Name
		m.MatchedBy = t.tier
		m.IsExistingIntegration = t.tier == models.MatchExisting
		// a surviving link was confirmed when it was created
		m.Confirmed = m.IsExistingIntegration
		return m
	}
	return m
}

func matchExisting(local models.LocalStatus, remote []models.Status) *models.Status {
	if !local.IsLinked() {
		return nil
	}
	return findByID(remote, local.ExternalID)
}

func matchExact(local models.LocalStatus, remote []models.Status) *models.Status {
	name := normalize(local.Name)
	if name == "" {
		return nil
	}
	for i := range remote {
		if normalize(remote[i].Name) == name {
			return &remote[i]
		}
	}
	return nil
}

func matchSubstring(local models.LocalStatus, remote []models.Status) *models.Status {
	name := normalize(local.Name)
	if name == "" {
		return nil
	}
	for i := range remote {
		rn := normalize(remote[i].Name)
		if rn == "" {
			continue
		}
		if strings.Contains(name, rn) || strings.Contains(rn, name) {
			return &remote[i]
		}
	}
	return nil
}

// matchKeyword picks the first remote status, in remote order, whose name
// contains any keyword of the local status type, then falls back to the
// status category
func matchKeyword(local models.LocalStatus, remote []models.Status) *models.Status {
	words := keywords[local.StatusType]
	for i := range remote {
		name := normalize(remote[i].Name)
		for _, kw := range words {
			if strings.Contains(name, kw) {
				return &remote[i]
			}
		}
	}
	category, ok := categories[local.StatusType]
	if !ok {
		return nil
	}
	for i := range remote {
		if remote[i].StatusCategory.Key == category {
			return &remote[i]
		}
	}
	return nil
}

func matchFallback(_ models.LocalStatus, remote []models.Status) *models.Status {
	if len(remote) == 0 {
		return nil
	}
	return &remote[0]
}

// Validate checks mappings before an export. Every local status must map to
// a remote status that still exists; anything else is ErrUnmappedStatus.
// Fallback mappings nobody confirmed come back as warnings.
func Validate(mappings []models.StatusMapping, local []models.LocalStatus, remote []models.Status) ([]string, error) {
	byLocal := make(map[string]models.StatusMapping, len(mappings))
	for _, m := range mappings {
		byLocal[m.LocalStatusID] = m
	}

	var warnings []string
	var missing []string
	for _, ls := range local {
		m, ok := byLocal[ls.ID]
		switch {
		case !ok || m.RemoteStatusID == "":
			missing = append(missing, fmt.Sprintf("%q has no target", ls.Name))
		case findByID(remote, m.RemoteStatusID) == nil:
			missing = append(missing, fmt.Sprintf("%q targets unknown status %s", ls.Name, m.RemoteStatusID))
		case m.MatchedBy == models.MatchFallback && !m.Confirmed:
			warnings = append(warnings, fmt.Sprintf("status %q was mapped to %q by fallback and is unconfirmed", ls.Name, m.RemoteStatusName))
		}
	}

	if len(missing) > 0 {
		return warnings, fmt.Errorf("%w: %s", ErrUnmappedStatus, strings.Join(missing, "; "))
	}
	return warnings, nil
}

// Confirm marks every mapping as reviewed
func Confirm(mappings []models.StatusMapping) {
	for i := range mappings {
		mappings[i].Confirmed = true
	}
}

// Override points one local status at a remote status chosen by hand. The
// remote status is looked up by id or, failing that, by name.
func Override(mappings []models.StatusMapping, localIDOrName, remoteIDOrName string, remote []models.Status) error {
	rs := findByID(remote, remoteIDOrName)
	if rs == nil {
		for i := range remote {
			if strings.EqualFold(remote[i].Name, remoteIDOrName) {
				rs = &remote[i]
				break
			}
		}
	}
	if rs == nil {
		return fmt.Errorf("remote status '%s' not found", remoteIDOrName)
	}

	for i := range mappings {
		if mappings[i].LocalStatusID == localIDOrName || strings.EqualFold(mappings[i].LocalStatusName, localIDOrName) {
			mappings[i].RemoteStatusID = rs.ID
			mappings[i].RemoteStatusName = rs.Name
			mappings[i].MatchedBy = models.MatchManual
			mappings[i].IsExistingIntegration = false
			mappings[i].Confirmed = true
			return nil
		}
	}
	return fmt.Errorf("local status '%s' not found", localIDOrName)
}

// StatusTypeFor derives a local status type from a Jira status category
func StatusTypeFor(s models.Status) models.StatusType {
	switch s.StatusCategory.Key {
	case models.CategoryIndeterminate:
		return models.StatusActive
	case models.CategoryDone:
		name := normalize(s.Name)
		for _, kw := range keywords[models.StatusClosed] {
			if strings.Contains(name, kw) {
				return models.StatusClosed
			}
		}
		return models.StatusDone
	default:
		return models.StatusNotStarted
	}
}

// ColorFor returns a display color for a Jira status category
func ColorFor(s models.Status) string {
	switch s.StatusCategory.Key {
	case models.CategoryIndeterminate:
		return "#0052cc"
	case models.CategoryDone:
		return "#36b37e"
	default:
		return "#6b778c"
	}
}

func findByID(remote []models.Status, id string) *models.Status {
	for i := range remote {
		if remote[i].ID == id {
			return &remote[i]
		}
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
