// internal/storage/database/database.go
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"stagehand/internal/types"
	"stagehand/internal/types/options"
	"stagehand/pkg/utils"
)

// Database gère la persistance de l'historique des runs
type Database struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewDatabase initialise une nouvelle instance de base de données
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	// Créer le répertoire si nécessaire
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Créer le schéma
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{
		db:     db,
		logger: logger,
	}, nil
}

// Close ferme la connexion à la base de données
func (d *Database) Close() error {
	return d.db.Close()
}

// initSchema initialise le schéma de la base de données
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS scenario_runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            scene TEXT NOT NULL,
            image TEXT,
            container_id TEXT,
            status TEXT NOT NULL,
            message TEXT,
            started_at TEXT NOT NULL,
            finished_at TEXT
        );
        CREATE INDEX IF NOT EXISTS idx_run_scene ON scenario_runs(scene);
        CREATE INDEX IF NOT EXISTS idx_run_started_at ON scenario_runs(started_at);
        CREATE INDEX IF NOT EXISTS idx_run_status ON scenario_runs(status);
    `)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveRun enregistre un run dans la base de données
func (d *Database) SaveRun(record *types.RunRecord) error {
	result, err := d.db.Exec(`
        INSERT INTO scenario_runs (
            scene, image, container_id, status, message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Scene,
		record.Image,
		record.ContainerID,
		record.Status,
		record.Message,
		record.StartedAt.UTC().Format(time.RFC3339),
		record.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	record.ID = id

	d.logger.Debugf("Saved run %d for scene %s", id, record.Scene)
	return nil
}

// GetHistory récupère l'historique des runs
func (d *Database) GetHistory(opts options.HistoryOptions) ([]types.RunRecord, error) {
	var conditions []string
	var args []interface{}

	query := `SELECT id, scene, image, container_id, status, message,
              started_at, finished_at
              FROM scenario_runs`

	// Appliquer les filtres
	if len(opts.Scenes) > 0 {
		placeholders := make([]string, len(opts.Scenes))
		for i, scene := range opts.Scenes {
			placeholders[i] = "?"
			args = append(args, scene)
		}
		conditions = append(conditions,
			fmt.Sprintf("scene IN (%s)", strings.Join(placeholders, ",")))
	}

	if !opts.Since.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, opts.Since.UTC().Format(time.RFC3339))
	}

	if !opts.Before.IsZero() {
		conditions = append(conditions, "started_at <= ?")
		args = append(args, opts.Before.UTC().Format(time.RFC3339))
	}

	if opts.Search != "" {
		conditions = append(conditions, "(message LIKE ? OR status LIKE ?)")
		searchTerm := "%" + opts.Search + "%"
		args = append(args, searchTerm, searchTerm)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// Tri
	query += " ORDER BY " + func() string {
		if opts.SortBy == "scene" {
			return "scene, started_at DESC"
		}
		return "started_at DESC"
	}()

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []types.RunRecord
	for rows.Next() {
		var entry types.RunRecord
		var image, containerID, message sql.NullString
		var startedAt, finishedAt string

		err := rows.Scan(
			&entry.ID,
			&entry.Scene,
			&image,
			&containerID,
			&entry.Status,
			&message,
			&startedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entry.Image = image.String
		entry.ContainerID = containerID.String
		entry.Message = message.String

		if entry.StartedAt, err = utils.ParseTime(startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		if finishedAt != "" {
			if entry.FinishedAt, err = utils.ParseTime(finishedAt); err != nil {
				return nil, fmt.Errorf("failed to parse finished_at: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	// Post-processing
	if opts.Last {
		seen := make(map[string]bool)
		var filtered []types.RunRecord
		for _, entry := range entries {
			if !seen[entry.Scene] {
				filtered = append(filtered, entry)
				seen[entry.Scene] = true
			}
		}
		entries = filtered
	}

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	return entries, nil
}

// PruneRuns supprime les entrées d'historique selon les critères
func (d *Database) PruneRuns(opts options.PruneOptions) (int64, error) {
	var conditions []string
	var args []interface{}

	if !opts.All {
		if !opts.Before.IsZero() {
			conditions = append(conditions, "started_at < ?")
			args = append(args, opts.Before.UTC().Format(time.RFC3339))
		}
		if opts.OlderThan > 0 {
			conditions = append(conditions, "started_at < ?")
			args = append(args, time.Now().Add(-opts.OlderThan).UTC().Format(time.RFC3339))
		}
		if len(conditions) == 0 {
			return 0, fmt.Errorf("no prune criteria given (use --all, --before or --older-than)")
		}
	}

	query := "DELETE FROM scenario_runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	if opts.DryRun {
		countQuery := strings.Replace(query, "DELETE", "SELECT COUNT(*)", 1)
		var count int64
		if err := d.db.QueryRow(countQuery, args...).Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to count prunable entries: %w", err)
		}
		return count, nil
	}

	result, err := d.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}

	return result.RowsAffected()
}
