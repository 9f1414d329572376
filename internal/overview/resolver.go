package overview

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"opsdeck/internal/domain"
)

// defaultScopeLabel stands in when no project or client name resolves.
const defaultScopeLabel = "General"

// orgScopeLabel replaces the meaningless "General / General" pairing with a
// single organization-level label.
const orgScopeLabel = "Company General"

// projectMetadataPaths and clientMetadataPaths are the ordered raw-metadata
// extractors, evaluated first-match-wins after the resolved directories.
var (
	projectMetadataPaths = []string{"project.name", "task.projectName", "projectName"}
	clientMetadataPaths  = []string{"client.name", "clientName"}
)

// resolvedContext carries the permission-scoped directories plus the ids the
// viewer was explicitly denied, which suppress raw-metadata label fallback.
type resolvedContext struct {
	projects       map[string]domain.ProjectRef
	clients        map[string]domain.ClientRef
	deniedProjects map[string]struct{}
	deniedClients  map[string]struct{}
	privileged     bool
}

// resolveContext builds the display-name directories for the ids referenced
// by the log slice. Non-privileged viewers only resolve ids inside their
// accessible sets; ids outside the sets are never looked up.
func (s *Service) resolveContext(ctx context.Context, viewer domain.User, entries []domain.LogEntry) (resolvedContext, error) {
	projectIDs, clientIDs := referencedIDs(entries)

	resolved := resolvedContext{
		projects:       map[string]domain.ProjectRef{},
		clients:        map[string]domain.ClientRef{},
		deniedProjects: map[string]struct{}{},
		deniedClients:  map[string]struct{}{},
		privileged:     viewer.IsPrivileged(),
	}

	allowedProjects := projectIDs
	allowedClients := clientIDs
	if !resolved.privileged {
		accessibleProjects, err := s.perms.AccessibleProjectIDs(ctx, viewer.ID)
		if err != nil {
			return resolvedContext{}, fmt.Errorf("list accessible projects: %w", err)
		}
		accessibleClients, err := s.perms.AccessibleClientIDs(ctx, viewer.ID)
		if err != nil {
			return resolvedContext{}, fmt.Errorf("list accessible clients: %w", err)
		}
		allowedProjects, resolved.deniedProjects = intersect(projectIDs, accessibleProjects)
		allowedClients, resolved.deniedClients = intersect(clientIDs, accessibleClients)
	}

	if len(allowedProjects) > 0 {
		projects, err := s.dir.ProjectsByIDs(ctx, allowedProjects)
		if err != nil {
			return resolvedContext{}, fmt.Errorf("resolve project names: %w", err)
		}
		resolved.projects = projects
	}
	if len(allowedClients) > 0 {
		clients, err := s.dir.ClientsByIDs(ctx, allowedClients)
		if err != nil {
			return resolvedContext{}, fmt.Errorf("resolve client names: %w", err)
		}
		resolved.clients = clients
	}
	return resolved, nil
}

// Context exposes the resolved directories in their public shape.
func (rc resolvedContext) Context() domain.OverviewContext {
	return domain.OverviewContext{
		Projects: rc.projects,
		Clients:  rc.clients,
	}
}

// scopeLabel renders the project/client pairing for one entry, walking the
// fallback chain: resolved directory, raw metadata, generic default.
func scopeLabel(entry domain.LogEntry, rc resolvedContext) string {
	project := rc.projectLabel(entry)
	client := rc.clientLabel(entry)
	if project == defaultScopeLabel && client == defaultScopeLabel {
		return orgScopeLabel
	}
	return project + " / " + client
}

func (rc resolvedContext) projectLabel(entry domain.LogEntry) string {
	if entry.ProjectID != "" {
		if ref, ok := rc.projects[entry.ProjectID]; ok && ref.Name != "" {
			return ref.Name
		}
	}
	if !rc.metadataSuppressed(entry) {
		if name := firstMetadataValue(entry.Metadata, projectMetadataPaths); name != "" {
			return name
		}
	}
	return defaultScopeLabel
}

func (rc resolvedContext) clientLabel(entry domain.LogEntry) string {
	// Prefer the parent client of the entry's resolved project.
	if entry.ProjectID != "" {
		if project, ok := rc.projects[entry.ProjectID]; ok {
			if ref, ok := rc.clients[project.ClientID]; ok && ref.Name != "" {
				return ref.Name
			}
		}
	}
	if entry.ClientID != "" {
		if ref, ok := rc.clients[entry.ClientID]; ok && ref.Name != "" {
			return ref.Name
		}
	}
	if !rc.metadataSuppressed(entry) {
		if name := firstMetadataValue(entry.Metadata, clientMetadataPaths); name != "" {
			return name
		}
	}
	return defaultScopeLabel
}

// metadataSuppressed reports whether raw metadata may not be surfaced for
// this entry. Metadata is written without access checks, so when a
// non-privileged viewer was denied the entry's referenced project or client,
// the unchecked names inside metadata stay hidden too. Entries with no
// target id carry no ACL subject and keep their metadata labels.
func (rc resolvedContext) metadataSuppressed(entry domain.LogEntry) bool {
	if rc.privileged {
		return false
	}
	if entry.ProjectID != "" {
		if _, denied := rc.deniedProjects[entry.ProjectID]; denied {
			return true
		}
	}
	if entry.ClientID != "" {
		if _, denied := rc.deniedClients[entry.ClientID]; denied {
			return true
		}
	}
	return false
}

// firstMetadataValue evaluates the ordered gjson extractors and returns the
// first non-empty string value.
func firstMetadataValue(metadata []byte, paths []string) string {
	if len(metadata) == 0 {
		return ""
	}
	for _, path := range paths {
		result := gjson.GetBytes(metadata, path)
		if result.Type != gjson.String {
			continue
		}
		if value := strings.TrimSpace(result.String()); value != "" {
			return value
		}
	}
	return ""
}

// referencedIDs deduplicates the project and client ids present in the log
// slice, preserving first-seen order.
func referencedIDs(entries []domain.LogEntry) (projectIDs, clientIDs []string) {
	seenProjects := map[string]struct{}{}
	seenClients := map[string]struct{}{}
	for _, entry := range entries {
		if entry.ProjectID != "" {
			if _, ok := seenProjects[entry.ProjectID]; !ok {
				seenProjects[entry.ProjectID] = struct{}{}
				projectIDs = append(projectIDs, entry.ProjectID)
			}
		}
		if entry.ClientID != "" {
			if _, ok := seenClients[entry.ClientID]; !ok {
				seenClients[entry.ClientID] = struct{}{}
				clientIDs = append(clientIDs, entry.ClientID)
			}
		}
	}
	return projectIDs, clientIDs
}

// intersect splits referenced ids into the allowed subset and the denied set.
func intersect(referenced, accessible []string) ([]string, map[string]struct{}) {
	allowed := make([]string, 0, len(referenced))
	denied := map[string]struct{}{}
	accessibleSet := make(map[string]struct{}, len(accessible))
	for _, id := range accessible {
		accessibleSet[id] = struct{}{}
	}
	for _, id := range referenced {
		if _, ok := accessibleSet[id]; ok {
			allowed = append(allowed, id)
		} else {
			denied[id] = struct{}{}
		}
	}
	return allowed, denied
}
