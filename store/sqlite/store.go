// Package sqlite provides a SQLite-backed Store. The full turn history is
// serialized as a JSON column; compare-and-swap is a conditional UPDATE on
// the version column, so conflicting writers observe zero affected rows.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/martinemde/orchestra"
)

//go:embed schema.sql
var schemaSQL string

// Store persists executions in a SQLite database.
type Store struct {
	db *sql.DB
}

var _ orchestra.Store = (*Store)(nil)

// Open creates (or opens) the database at dbPath and ensures the schema.
// Use ":memory:" for an ephemeral store.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	// busy_timeout first so the remaining pragmas wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, exec orchestra.Execution, turns orchestra.Conversation) error {
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions
			(id, task, status, iteration_count, max_iterations, deadline,
			 output, error, created_at, updated_at, version, turns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		string(exec.ID), exec.Task, string(exec.Status), exec.IterationCount,
		exec.MaxIterations, exec.Deadline, exec.Output, exec.Error,
		exec.CreatedAt, exec.UpdatedAt, string(turnsJSON),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %q", orchestra.ErrExecutionExists, exec.ID)
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id orchestra.ExecutionID) (orchestra.Execution, orchestra.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task, status, iteration_count, max_iterations, deadline,
		       output, error, created_at, updated_at, version, turns
		FROM executions WHERE id = ?`, string(id))

	var exec orchestra.Execution
	var execID, status, turnsJSON string
	err := row.Scan(
		&execID, &exec.Task, &status, &exec.IterationCount, &exec.MaxIterations,
		&exec.Deadline, &exec.Output, &exec.Error, &exec.CreatedAt,
		&exec.UpdatedAt, &exec.Version, &turnsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return orchestra.Execution{}, nil, fmt.Errorf("%w: %q", orchestra.ErrExecutionNotFound, id)
	}
	if err != nil {
		return orchestra.Execution{}, nil, fmt.Errorf("load execution: %w", err)
	}
	exec.ID = orchestra.ExecutionID(execID)
	exec.Status = orchestra.Status(status)

	var turns orchestra.Conversation
	if err := json.Unmarshal([]byte(turnsJSON), &turns); err != nil {
		return orchestra.Execution{}, nil, fmt.Errorf("decode turns for %q: %w", id, err)
	}
	return exec, turns, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, id orchestra.ExecutionID, expectedVersion int64, exec orchestra.Execution, turns orchestra.Conversation) error {
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode turns: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET task = ?, status = ?, iteration_count = ?, max_iterations = ?,
		    deadline = ?, output = ?, error = ?, updated_at = ?,
		    version = ?, turns = ?
		WHERE id = ? AND version = ?`,
		exec.Task, string(exec.Status), exec.IterationCount, exec.MaxIterations,
		exec.Deadline, exec.Output, exec.Error, exec.UpdatedAt,
		expectedVersion+1, string(turnsJSON),
		string(id), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or the version moved underneath us.
		var current int64
		row := s.db.QueryRowContext(ctx, `SELECT version FROM executions WHERE id = ?`, string(id))
		if scanErr := row.Scan(&current); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return fmt.Errorf("%w: %q", orchestra.ErrExecutionNotFound, id)
			}
			return fmt.Errorf("check version: %w", scanErr)
		}
		return fmt.Errorf(
			"%w: execution %q at version %d, write expected %d",
			orchestra.ErrVersionConflict, id, current, expectedVersion,
		)
	}
	return nil
}
