// Package sqlite provides a SQLite-based catalog.Store implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pirserve/internal/catalog"
)

const timeFormat = time.RFC3339

// Store is a SQLite-based catalog.Store implementation.
type Store struct {
	db   *sql.DB
	path string
}

var _ catalog.Store = (*Store)(nil)

// NewStore opens a SQLite database at path and runs migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Writers and readers coexist behind a single connection; SQLite's own
	// locking plus WAL handles concurrent ingest vs. catalog reads.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set foreign_keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init is a no-op beyond NewStore's migration run; it exists so callers that
// construct a Store without immediately using it can make the schema ready
// explicit, matching the catalog.Store contract.
func (s *Store) Init(ctx context.Context) error {
	return nil
}

// AddModule inserts a module row; SQLite's AUTOINCREMENT assigns the id, so
// two concurrent ingests can never race on a caller-computed MAX(id)+1.
func (s *Store) AddModule(ctx context.Context, title, topic string, tier int, chunkCount int, compressedSize int64, filename string) (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO modules (title, topic, tier, chunk_count, compressed_size, filename, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, title, topic, tier, chunkCount, compressedSize, filename, now)
	if err != nil {
		return 0, fmt.Errorf("insert module: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read module id: %w", err)
	}
	return id, nil
}

func (s *Store) ListModules(ctx context.Context, filter catalog.ModuleFilter) ([]catalog.Module, error) {
	query := `SELECT id, title, topic, tier, chunk_count, compressed_size, filename, created_at FROM modules WHERE 1=1`
	var args []any
	if filter.Topic != "" {
		query += " AND topic = ?"
		args = append(args, filter.Topic)
	}
	if filter.Tier != nil {
		query += " AND tier = ?"
		args = append(args, *filter.Tier)
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	var modules []catalog.Module
	for rows.Next() {
		var m catalog.Module
		if err := rows.Scan(&m.ID, &m.Title, &m.Topic, &m.Tier, &m.ChunkCount, &m.CompressedSize, &m.Filename, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate modules: %w", err)
	}
	return modules, nil
}

func (s *Store) GetModule(ctx context.Context, id int64) (catalog.Module, error) {
	var m catalog.Module
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, topic, tier, chunk_count, compressed_size, filename, created_at
		FROM modules WHERE id = ?
	`, id).Scan(&m.ID, &m.Title, &m.Topic, &m.Tier, &m.ChunkCount, &m.CompressedSize, &m.Filename, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Module{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Module{}, fmt.Errorf("get module: %w", err)
	}
	return m, nil
}

func (s *Store) DeleteModule(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM modules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete module: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) AddQuiz(ctx context.Context, moduleID int64, question string, options []string, correct int) (int64, error) {
	if err := catalog.ValidateQuiz(options, correct); err != nil {
		return 0, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM modules WHERE id = ?)`, moduleID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check module exists: %w", err)
	}
	if !exists {
		return 0, catalog.ErrNotFound
	}

	encoded, err := json.Marshal(options)
	if err != nil {
		return 0, fmt.Errorf("encode options: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quizzes (module_id, question, options, correct_index)
		VALUES (?, ?, ?, ?)
	`, moduleID, question, string(encoded), correct)
	if err != nil {
		return 0, fmt.Errorf("insert quiz: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read quiz id: %w", err)
	}
	return id, nil
}

func (s *Store) ListQuiz(ctx context.Context, moduleID int64) ([]catalog.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, module_id, question, options, correct_index
		FROM quizzes WHERE module_id = ? ORDER BY id ASC
	`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()

	var questions []catalog.Question
	for rows.Next() {
		var q catalog.Question
		var optionsJSON string
		if err := rows.Scan(&q.ID, &q.ModuleID, &q.Question, &optionsJSON, &q.CorrectIndex); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quizzes: %w", err)
	}
	return questions, nil
}

func (s *Store) DeleteQuiz(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete quiz: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return n > 0, nil
}
