package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the deploy journal.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Config holds SQLite store configuration
type Config struct {
	// Path is the database file, or ":memory:".
	Path string
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: cfg.Path}, nil
}

// Open creates, initializes and migrates a store in one step.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// Init opens the database connection.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One writer per invocation. It also keeps ":memory:" databases from
	// being split across connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateDeployment records the start of a deploy. An empty ID is filled in.
func (s *SQLiteStore) CreateDeployment(ctx context.Context, d *Deployment) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = DeploymentStatusRunning
	}

	query := `
		INSERT INTO deployments (id, target, host, username, method, status, stage, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID,
		d.Target,
		d.Host,
		d.User,
		d.Method,
		d.Status,
		d.Stage,
		d.Error,
		d.StartedAt,
		d.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deployment: %w", err)
	}

	return nil
}

// UpdateStage records the stage a running deployment reached.
func (s *SQLiteStore) UpdateStage(ctx context.Context, id, stage string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE deployments SET stage = ? WHERE id = ?`, stage, id)
	if err != nil {
		return fmt.Errorf("failed to update stage: %w", err)
	}
	return expectRow(result, id)
}

// FinishDeployment records the outcome of a deploy. A nil cause marks it
// succeeded.
func (s *SQLiteStore) FinishDeployment(ctx context.Context, id, stage string, cause error) error {
	query := `
		UPDATE deployments
		SET status = ?, stage = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	status := DeploymentStatusSucceeded
	var errMsg *string
	if cause != nil {
		status = DeploymentStatusFailed
		msg := cause.Error()
		errMsg = &msg
	}

	result, err := s.db.ExecContext(ctx, query, status, stage, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to finish deployment: %w", err)
	}
	return expectRow(result, id)
}

// GetDeployment retrieves a deployment by ID
func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	query := `
		SELECT id, target, host, username, method, status, stage, error, started_at, finished_at
		FROM deployments
		WHERE id = ?
	`

	d, err := scanDeployment(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	return d, nil
}

// ListDeployments lists the most recent deployments first.
func (s *SQLiteStore) ListDeployments(ctx context.Context, limit, offset int) ([]*Deployment, error) {
	query := `
		SELECT id, target, host, username, method, status, stage, error, started_at, finished_at
		FROM deployments
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	deployments := []*Deployment{}
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployments: %w", err)
	}

	return deployments, nil
}

// RecordFile records a file copied during a deployment.
func (s *SQLiteStore) RecordFile(ctx context.Context, f *DeployedFile) error {
	if f.CopiedAt.IsZero() {
		f.CopiedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO deployed_files (deployment_id, category, local_path, remote_path, copied_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		f.DeploymentID,
		f.Category,
		f.LocalPath,
		f.RemotePath,
		f.CopiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record file: %w", err)
	}

	f.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get file id: %w", err)
	}
	return nil
}

// ListFiles lists the files of a deployment in copy order.
func (s *SQLiteStore) ListFiles(ctx context.Context, deploymentID string) ([]*DeployedFile, error) {
	query := `
		SELECT id, deployment_id, category, local_path, remote_path, copied_at
		FROM deployed_files
		WHERE deployment_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []*DeployedFile{}
	for rows.Next() {
		f := &DeployedFile{}
		if err := rows.Scan(&f.ID, &f.DeploymentID, &f.Category, &f.LocalPath, &f.RemotePath, &f.CopiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (*Deployment, error) {
	d := &Deployment{}
	err := row.Scan(
		&d.ID,
		&d.Target,
		&d.Host,
		&d.User,
		&d.Method,
		&d.Status,
		&d.Stage,
		&d.Error,
		&d.StartedAt,
		&d.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("deployment %s: %w", id, ErrNotFound)
	}
	return nil
}
