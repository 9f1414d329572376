// Package sqlite implements the portal's persistent collaborators over one
// sqlite database: activity log, counters, directories, permissions,
// sessions, and the overview summary cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"opsdeck/internal/domain"
	"opsdeck/internal/overview"
)

const driverName = "sqlite"

// Repository is the sqlite-backed store shared by every adapter port.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			created_at TEXT NOT NULL,
			archived_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			archived_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			archived_at TEXT,
			FOREIGN KEY(client_id) REFERENCES clients(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS project_members (
			project_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY(project_id, user_id),
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'todo',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			completed_at TEXT,
			archived_at TEXT,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			archived_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			actor_name TEXT NOT NULL,
			verb TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			target_type TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			client_id TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS overview_cache (
			user_id TEXT NOT NULL,
			timeframe_days INTEGER NOT NULL,
			summary_json TEXT NOT NULL,
			cached_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			PRIMARY KEY(user_id, timeframe_days)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_log_created_at ON activity_log(created_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_completed_at ON tasks(completed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_project_members_user ON project_members(user_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// --- write paths (seeding and the surrounding portal) ---

func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, display_name, role, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.DisplayName, string(u.Role), ts(u.CreatedAt), nullableTS(u.ArchivedAt))
	return err
}

func (r *Repository) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions(token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, s.Token, s.UserID, ts(s.CreatedAt), ts(s.ExpiresAt))
	return err
}

func (r *Repository) CreateClient(ctx context.Context, c domain.Client) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients(id, name, created_at, archived_at)
		VALUES (?, ?, ?, ?)
	`, c.ID, c.Name, ts(c.CreatedAt), nullableTS(c.ArchivedAt))
	return err
}

func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(id, client_id, name, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.ClientID, p.Name, ts(p.CreatedAt), nullableTS(p.ArchivedAt))
	return err
}

func (r *Repository) AddProjectMember(ctx context.Context, projectID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO project_members(project_id, user_id)
		VALUES (?, ?)
	`, projectID, userID)
	return err
}

func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks(id, project_id, title, status, created_at, updated_at, completed_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ProjectID, t.Title, string(t.Status), ts(t.CreatedAt), ts(t.UpdatedAt), nullableTS(t.CompletedAt), nullableTS(t.ArchivedAt))
	return err
}

func (r *Repository) CreateLead(ctx context.Context, l domain.Lead) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads(id, name, source, created_at, archived_at)
		VALUES (?, ?, ?, ?, ?)
	`, l.ID, l.Name, l.Source, ts(l.CreatedAt), nullableTS(l.ArchivedAt))
	return err
}

// AppendLogEntry writes one immutable activity record. Metadata defaults to
// an empty JSON object so readers can probe it unconditionally.
func (r *Repository) AppendLogEntry(ctx context.Context, entry domain.LogEntry) error {
	metadata := strings.TrimSpace(string(entry.Metadata))
	if metadata == "" {
		metadata = "{}"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log(actor_name, verb, summary, target_type, project_id, client_id, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ActorName, entry.Verb, entry.Summary, string(entry.TargetType), entry.ProjectID, entry.ClientID, metadata, ts(entry.OccurredAt))
	return err
}

// --- session verification ---

// ViewerByToken resolves a bearer token into its active user. Expired
// sessions and archived users fail with domain.ErrUnauthenticated.
func (r *Repository) ViewerByToken(ctx context.Context, token string, now time.Time) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.display_name, u.role, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ? AND u.archived_at IS NULL
	`, token, ts(now))

	var (
		user       domain.User
		roleRaw    string
		createdRaw string
	)
	if err := row.Scan(&user.ID, &user.DisplayName, &roleRaw, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUnauthenticated
		}
		return domain.User{}, err
	}
	user.Role = domain.Role(roleRaw)
	user.CreatedAt = parseTS(createdRaw)
	return user, nil
}

// --- activity log reader ---

// ListSince returns activity entries with created_at >= since, newest first,
// capped at limit.
func (r *Repository) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_name, verb, summary, target_type, project_id, client_id, metadata_json, created_at
		FROM activity_log
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, ts(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.LogEntry, 0)
	for rows.Next() {
		var (
			entry       domain.LogEntry
			targetRaw   string
			metadataRaw string
			createdRaw  string
		)
		if err := rows.Scan(&entry.ID, &entry.ActorName, &entry.Verb, &entry.Summary, &targetRaw, &entry.ProjectID, &entry.ClientID, &metadataRaw, &createdRaw); err != nil {
			return nil, err
		}
		entry.TargetType = domain.TargetType(targetRaw)
		if strings.TrimSpace(metadataRaw) == "" {
			metadataRaw = "{}"
		}
		entry.Metadata = []byte(metadataRaw)
		entry.OccurredAt = parseTS(createdRaw)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// --- counters ---

func (r *Repository) TasksDoneSince(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE status = 'done' AND completed_at >= ? AND archived_at IS NULL
	`, ts(since))
}

func (r *Repository) LeadsCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM leads
		WHERE created_at >= ? AND archived_at IS NULL
	`, ts(since))
}

func (r *Repository) TasksBlocked(ctx context.Context) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE status = 'blocked' AND archived_at IS NULL
	`)
}

func (r *Repository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// --- permission source ---

func (r *Repository) AccessibleProjectIDs(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, `
		SELECT m.project_id
		FROM project_members m
		JOIN projects p ON p.id = m.project_id
		WHERE m.user_id = ? AND p.archived_at IS NULL
		ORDER BY m.project_id
	`, userID)
}

// AccessibleClientIDs derives client access from project membership: a user
// may resolve a client when they belong to at least one of its projects.
func (r *Repository) AccessibleClientIDs(ctx context.Context, userID string) ([]string, error) {
	return r.ids(ctx, `
		SELECT DISTINCT p.client_id
		FROM project_members m
		JOIN projects p ON p.id = m.project_id
		JOIN clients c ON c.id = p.client_id
		WHERE m.user_id = ? AND p.archived_at IS NULL AND c.archived_at IS NULL
		ORDER BY p.client_id
	`, userID)
}

func (r *Repository) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- directory lookups ---

func (r *Repository) ProjectsByIDs(ctx context.Context, projectIDs []string) (map[string]domain.ProjectRef, error) {
	out := map[string]domain.ProjectRef{}
	if len(projectIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT id, name, client_id FROM projects
		WHERE archived_at IS NULL AND id IN (` + placeholders(len(projectIDs)) + `)
	`
	rows, err := r.db.QueryContext(ctx, query, toAnySlice(projectIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			ref domain.ProjectRef
		)
		if err := rows.Scan(&id, &ref.Name, &ref.ClientID); err != nil {
			return nil, err
		}
		out[id] = ref
	}
	return out, rows.Err()
}

func (r *Repository) ClientsByIDs(ctx context.Context, clientIDs []string) (map[string]domain.ClientRef, error) {
	out := map[string]domain.ClientRef{}
	if len(clientIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT id, name FROM clients
		WHERE archived_at IS NULL AND id IN (` + placeholders(len(clientIDs)) + `)
	`
	rows, err := r.db.QueryContext(ctx, query, toAnySlice(clientIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  string
			ref domain.ClientRef
		)
		if err := rows.Scan(&id, &ref.Name); err != nil {
			return nil, err
		}
		out[id] = ref
	}
	return out, rows.Err()
}

// --- summary cache ---

// Get returns the stored overview entry for one (user, timeframe) key. The
// store never judges freshness; callers compare expires_at themselves.
func (r *Repository) Get(ctx context.Context, userID string, timeframeDays int) (overview.CacheEntry, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT summary_json, cached_at, expires_at
		FROM overview_cache
		WHERE user_id = ? AND timeframe_days = ?
	`, userID, timeframeDays)

	var (
		payload    string
		cachedRaw  string
		expiresRaw string
	)
	if err := row.Scan(&payload, &cachedRaw, &expiresRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return overview.CacheEntry{}, false, nil
		}
		return overview.CacheEntry{}, false, err
	}
	return overview.CacheEntry{
		Payload:   []byte(payload),
		CachedAt:  parseTS(cachedRaw),
		ExpiresAt: parseTS(expiresRaw),
	}, true, nil
}

// Put upserts the overview entry for one key; the latest write wins.
func (r *Repository) Put(ctx context.Context, userID string, timeframeDays int, payload []byte, cachedAt, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO overview_cache(user_id, timeframe_days, summary_json, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, timeframe_days) DO UPDATE SET
			summary_json = excluded.summary_json,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
	`, userID, timeframeDays, string(payload), ts(cachedAt), ts(expiresAt))
	return err
}

// --- helpers ---

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
