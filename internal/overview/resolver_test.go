package overview

import (
	"context"
	"testing"

	"opsdeck/internal/domain"
)

func scopedEntry(projectID, clientID string, metadata string) domain.LogEntry {
	return domain.LogEntry{
		ID:         1,
		ActorName:  "Dana",
		Verb:       "updated task",
		TargetType: domain.TargetTask,
		ProjectID:  projectID,
		ClientID:   clientID,
		Metadata:   []byte(metadata),
		OccurredAt: testNow,
	}
}

func TestResolveContextScopesMemberLookups(t *testing.T) {
	perms := &fakePerms{projectIDs: []string{"p1"}, clientIDs: []string{"c1"}}
	dir := &fakeDirectory{
		projects: map[string]domain.ProjectRef{
			"p1": {Name: "Website Revamp", ClientID: "c1"},
			"p2": {Name: "Secret Bid", ClientID: "c2"},
		},
		clients: map[string]domain.ClientRef{
			"c1": {Name: "Acme"},
			"c2": {Name: "Initech"},
		},
	}
	deps := testDeps(&fakeLog{}, &fakeCounters{}, newFakeCache())
	deps.Perms = perms
	deps.Directory = dir
	svc := NewService(deps)

	entries := []domain.LogEntry{
		scopedEntry("p1", "c1", "{}"),
		scopedEntry("p2", "c2", "{}"),
		scopedEntry("p1", "", "{}"),
	}
	resolved, err := svc.resolveContext(context.Background(), testViewer(), entries)
	if err != nil {
		t.Fatalf("resolveContext() error = %v", err)
	}

	// Only the accessible ids reach the directory at all.
	if len(dir.gotProjectIDs) != 1 || dir.gotProjectIDs[0] != "p1" {
		t.Fatalf("directory project lookup = %v", dir.gotProjectIDs)
	}
	if len(dir.gotClientIDs) != 1 || dir.gotClientIDs[0] != "c1" {
		t.Fatalf("directory client lookup = %v", dir.gotClientIDs)
	}
	if _, ok := resolved.projects["p2"]; ok {
		t.Fatal("denied project leaked into resolved context")
	}
	if _, denied := resolved.deniedProjects["p2"]; !denied {
		t.Fatal("p2 missing from denied set")
	}

	ctxOut := resolved.Context()
	if ctxOut.Projects["p1"].Name != "Website Revamp" {
		t.Fatalf("resolved projects = %v", ctxOut.Projects)
	}
}

func TestResolveContextAdminBypassesPermissions(t *testing.T) {
	dir := &fakeDirectory{
		projects: map[string]domain.ProjectRef{"p2": {Name: "Secret Bid", ClientID: "c2"}},
		clients:  map[string]domain.ClientRef{"c2": {Name: "Initech"}},
	}
	deps := testDeps(&fakeLog{}, &fakeCounters{}, newFakeCache())
	// Permission failures must be irrelevant on the admin path.
	deps.Perms = &fakePerms{err: context.DeadlineExceeded}
	deps.Directory = dir
	svc := NewService(deps)

	admin := domain.User{ID: "a1", DisplayName: "Root", Role: domain.RoleAdmin, CreatedAt: testNow}
	resolved, err := svc.resolveContext(context.Background(), admin, []domain.LogEntry{scopedEntry("p2", "c2", "{}")})
	if err != nil {
		t.Fatalf("resolveContext() error = %v", err)
	}
	if resolved.projects["p2"].Name != "Secret Bid" {
		t.Fatalf("resolved projects = %v", resolved.projects)
	}
	if len(resolved.deniedProjects) != 0 {
		t.Fatalf("denied projects = %v", resolved.deniedProjects)
	}
}

func TestScopeLabelFallbackChain(t *testing.T) {
	rc := resolvedContext{
		projects: map[string]domain.ProjectRef{
			"p1": {Name: "Website Revamp", ClientID: "c1"},
		},
		clients: map[string]domain.ClientRef{
			"c1": {Name: "Acme"},
		},
		deniedProjects: map[string]struct{}{},
		deniedClients:  map[string]struct{}{},
	}

	cases := []struct {
		name  string
		entry domain.LogEntry
		want  string
	}{
		{
			name:  "resolved project and parent client",
			entry: scopedEntry("p1", "", "{}"),
			want:  "Website Revamp / Acme",
		},
		{
			name:  "direct client id without project",
			entry: scopedEntry("", "c1", "{}"),
			want:  "General / Acme",
		},
		{
			name:  "metadata names when nothing resolves",
			entry: scopedEntry("", "", `{"project":{"name":"Side Gig"},"clientName":"Globex"}`),
			want:  "Side Gig / Globex",
		},
		{
			name:  "later extractor path wins when earlier is absent",
			entry: scopedEntry("", "", `{"task":{"projectName":"Migration"}}`),
			want:  "Migration / General",
		},
		{
			name:  "non-string metadata values are skipped",
			entry: scopedEntry("", "", `{"project":{"name":42},"clientName":"  "}`),
			want:  "Company General",
		},
		{
			name:  "nothing resolves at all",
			entry: scopedEntry("", "", "{}"),
			want:  "Company General",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scopeLabel(tc.entry, rc); got != tc.want {
				t.Fatalf("scopeLabel() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestScopeLabelSuppressesMetadataForDeniedTargets(t *testing.T) {
	rc := resolvedContext{
		projects:       map[string]domain.ProjectRef{},
		clients:        map[string]domain.ClientRef{},
		deniedProjects: map[string]struct{}{"p2": {}},
		deniedClients:  map[string]struct{}{},
	}

	entry := scopedEntry("p2", "", `{"project":{"name":"Secret Bid"}}`)
	if got := scopeLabel(entry, rc); got != "Company General" {
		t.Fatalf("scopeLabel() = %q, want suppressed label", got)
	}

	// The same metadata is honored for a privileged viewer.
	rc.privileged = true
	if got := scopeLabel(entry, rc); got != "Secret Bid / General" {
		t.Fatalf("privileged scopeLabel() = %q", got)
	}
}

func TestReferencedIDsDeduplicatesInOrder(t *testing.T) {
	entries := []domain.LogEntry{
		scopedEntry("p1", "c1", "{}"),
		scopedEntry("p2", "c1", "{}"),
		scopedEntry("p1", "c2", "{}"),
	}
	projectIDs, clientIDs := referencedIDs(entries)
	if len(projectIDs) != 2 || projectIDs[0] != "p1" || projectIDs[1] != "p2" {
		t.Fatalf("projectIDs = %v", projectIDs)
	}
	if len(clientIDs) != 2 || clientIDs[0] != "c1" || clientIDs[1] != "c2" {
		t.Fatalf("clientIDs = %v", clientIDs)
	}
}

func TestIntersectSplitsAllowedAndDenied(t *testing.T) {
	allowed, denied := intersect([]string{"a", "b", "c"}, []string{"b"})
	if len(allowed) != 1 || allowed[0] != "b" {
		t.Fatalf("allowed = %v", allowed)
	}
	if len(denied) != 2 {
		t.Fatalf("denied = %v", denied)
	}
	if _, ok := denied["a"]; !ok {
		t.Fatal("a missing from denied set")
	}
}
