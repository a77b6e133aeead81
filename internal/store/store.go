package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/storyrank/pkg/source"
	"github.com/elonfeng/storyrank/pkg/story"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one archived engine run.
type Run struct {
	ID        string          `db:"id" json:"id"`
	StartedAt time.Time       `db:"started_at" json:"started_at"`
	Status    string          `db:"status" json:"status"`
	StatsJSON string          `db:"stats" json:"-"`
	Stats     story.Stats     `db:"-" json:"stats"`
	Clusters  []ClusterRecord `db:"-" json:"clusters,omitempty"`
}

// ClusterRecord is a ranked cluster as archived with its run.
type ClusterRecord struct {
	RunID       string        `db:"run_id" json:"run_id"`
	Position    int           `db:"position" json:"position"`
	ClusterID   string        `db:"cluster_id" json:"id"`
	Score       float64       `db:"score" json:"score"`
	Title       string        `db:"title" json:"title"`
	URL         string        `db:"url" json:"url"`
	Size        int           `db:"size" json:"size"`
	Main        int           `db:"main" json:"main"`
	SourcesJSON string        `db:"sources" json:"-"`
	Sources     []string      `db:"-" json:"sources"`
	ItemsJSON   string        `db:"items" json:"-"`
	Items       []source.Item `db:"-" json:"items"`
	Alerted     bool          `db:"alerted" json:"alerted"`
}

// NewRun builds an archive record from an engine result. A non-nil runErr
// marks the run failed.
func NewRun(res story.Result, runErr error) *Run {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: res.Stats.StartedAt.UTC(),
		Status:    StatusOK,
		Stats:     res.Stats,
	}
	if runErr != nil {
		run.Status = StatusFailed
	}
	for i, c := range res.Clusters {
		main := c.MainItem()
		run.Clusters = append(run.Clusters, ClusterRecord{
			RunID:     run.ID,
			Position:  i + 1,
			ClusterID: c.ID,
			Score:     c.Score,
			Title:     main.Title,
			URL:       main.URL,
			Size:      len(c.Items),
			Main:      c.Main,
			Sources:   c.Sources(),
			Items:     c.Items,
		})
	}
	return run
}

// Store is the persistence interface.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListClusters(ctx context.Context, runID string) ([]ClusterRecord, error)
	MarkAlerted(ctx context.Context, runID, clusterID string) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun writes the run and its clusters in one transaction. An empty ID is
// filled with a fresh UUID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = StatusOK
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("encode stats %s: %w", run.ID, err)
	}
	run.StatsJSON = string(statsJSON)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run %s: %w", run.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, status, stats)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC(), run.Status, run.StatsJSON)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i := range run.Clusters {
		c := &run.Clusters[i]
		c.RunID = run.ID
		sourcesJSON, _ := json.Marshal(c.Sources)
		itemsJSON, err := json.Marshal(c.Items)
		if err != nil {
			return fmt.Errorf("encode cluster %s: %w", c.ClusterID, err)
		}
		c.SourcesJSON, c.ItemsJSON = string(sourcesJSON), string(itemsJSON)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO clusters (run_id, position, cluster_id, score, title, url, size, main, sources, items, alerted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, c.RunID, c.Position, c.ClusterID, c.Score, c.Title, c.URL, c.Size, c.Main,
			c.SourcesJSON, c.ItemsJSON, c.Alerted)
		if err != nil {
			return fmt.Errorf("insert cluster %s/%s: %w", run.ID, c.ClusterID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns a run with its clusters.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return s.withClusters(ctx, &run)
}

// ListRuns returns runs newest first, without clusters.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		json.Unmarshal([]byte(runs[i].StatsJSON), &runs[i].Stats)
	}
	return runs, nil
}

// LatestRun returns the most recent run with its clusters.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return s.withClusters(ctx, &run)
}

func (s *SQLiteStore) withClusters(ctx context.Context, run *Run) (*Run, error) {
	json.Unmarshal([]byte(run.StatsJSON), &run.Stats)
	clusters, err := s.ListClusters(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Clusters = clusters
	return run, nil
}

// ListClusters returns a run's clusters in rank order.
func (s *SQLiteStore) ListClusters(ctx context.Context, runID string) ([]ClusterRecord, error) {
	var clusters []ClusterRecord
	err := s.db.SelectContext(ctx, &clusters,
		"SELECT * FROM clusters WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, fmt.Errorf("list clusters %s: %w", runID, err)
	}
	for i := range clusters {
		json.Unmarshal([]byte(clusters[i].SourcesJSON), &clusters[i].Sources)
		json.Unmarshal([]byte(clusters[i].ItemsJSON), &clusters[i].Items)
	}
	return clusters, nil
}

// MarkAlerted flags a cluster as alerted.
func (s *SQLiteStore) MarkAlerted(ctx context.Context, runID, clusterID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE clusters SET alerted = 1 WHERE run_id = ? AND cluster_id = ?", runID, clusterID)
	if err != nil {
		return fmt.Errorf("mark alerted %s/%s: %w", runID, clusterID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark alerted %s/%s: %w", runID, clusterID, ErrNotFound)
	}
	return nil
}
