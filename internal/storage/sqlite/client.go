package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/storage/models"
	"github.com/hallucination-lab/backend/pkg/logger"
)

var (
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrRAGContextNotFound = errors.New("rag context not found")
)

// Options holds the defaults applied when callers leave fields empty.
type Options struct {
	ExportDir          string
	DefaultModel       string
	DefaultTemperature float32
	DefaultMaxTokens   int
}

// Client is the experiment store. It is not safe for concurrent writers;
// the pool is pinned to one connection.
type Client struct {
	db   *sql.DB
	opts Options
}

func NewClient(dbPath string, opts Options) (*Client, error) {
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if opts.ExportDir == "" {
		opts.ExportDir = filepath.Join("data", "exports")
	}

	logger.Info("SQLite experiment store initialized", zap.String("path", dbPath))

	return &Client{db: db, opts: opts}, nil
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) CreateExperiment(name string, strategy models.Strategy, description string, opts models.ExperimentOptions) (int64, error) {
	if !strategy.Valid() {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidStrategy, strategy)
	}
	if strings.TrimSpace(name) == "" {
		return 0, errors.New("experiment name is required")
	}

	modelName := opts.ModelName
	if modelName == "" {
		modelName = c.opts.DefaultModel
	}
	temperature := c.opts.DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.opts.DefaultMaxTokens
	}

	query := `
		INSERT INTO experiments (name, description, mitigation_strategy, created_at,
			model_name, temperature, max_tokens, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.Exec(
		query,
		name,
		description,
		string(strategy),
		time.Now().UnixMilli(),
		modelName,
		temperature,
		maxTokens,
		opts.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert experiment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read experiment id: %w", err)
	}

	logger.Info("Experiment created",
		zap.Int64("experiment_id", id),
		zap.String("name", name),
		zap.String("strategy", string(strategy)),
	)

	return id, nil
}

func (c *Client) GetExperiment(id int64) (*models.Experiment, error) {
	query := `
		SELECT experiment_id, name, description, mitigation_strategy, created_at,
			model_name, temperature, max_tokens, notes
		FROM experiments WHERE experiment_id = ?
	`

	var e models.Experiment
	var strategy string
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(
		&e.ID,
		&e.Name,
		&e.Description,
		&strategy,
		&createdAt,
		&e.ModelName,
		&e.Temperature,
		&e.MaxTokens,
		&e.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrExperimentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}

	e.Strategy = models.Strategy(strategy)
	e.CreatedAt = time.UnixMilli(createdAt)

	return &e, nil
}
