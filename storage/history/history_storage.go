// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package history

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/foundriesio/fw-autotest/storage"
)

// Record is one executed test case of a queue run.
type Record struct {
	RunId      string            `json:"run-id"`
	TestNumber int               `json:"test-number"`
	TestName   string            `json:"test-name"`
	Category   string            `json:"category"`
	Version    string            `json:"version,omitempty"`
	Pass       int               `json:"pass"`
	Fail       int               `json:"fail"`
	Status     string            `json:"status"`
	ExitCode   int               `json:"exit-code"`
	LogPath    string            `json:"log-path,omitempty"`
	Started    storage.Timestamp `json:"started"`
	Completed  storage.Timestamp `json:"completed"`
}

type Storage struct {
	db *storage.DbHandle

	stmtRecordAdd     stmtRecordAdd
	stmtRecordList    stmtRecordList
	stmtRecordListRun stmtRecordListRun
}

func NewStorage(db *storage.DbHandle) (*Storage, error) {
	handle := Storage{db: db}
	if err := db.InitStmt(
		&handle.stmtRecordAdd,
		&handle.stmtRecordList,
		&handle.stmtRecordListRun,
	); err != nil {
		return nil, err
	}
	return &handle, nil
}

func (s Storage) Add(r Record) error {
	if err := s.stmtRecordAdd.run(r); err != nil {
		if storage.IsDbError(err, storage.ErrDbConstraintUnique) {
			return fmt.Errorf("test %d already recorded for run %s: %w", r.TestNumber, r.RunId, err)
		}
		return fmt.Errorf("unable to add history record: %w", err)
	}
	return nil
}

// List returns the latest records, newest first.
func (s Storage) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.stmtRecordList.run(limit)
}

// ListRun returns the records of one queue run in execution order.
func (s Storage) ListRun(runId string) ([]Record, error) {
	return s.stmtRecordListRun.run(runId)
}

const recordColumns = `run_id, test_number, test_name, category, version, pass, fail, status, exit_code, log_path, started, completed`

type stmtRecordAdd storage.DbStmt

func (s *stmtRecordAdd) Init(db storage.DbHandle) (err error) {
	s.Stmt, err = db.Prepare("recordAdd", `
		INSERT INTO runs (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	return
}

func (s *stmtRecordAdd) run(r Record) error {
	if r.Completed == 0 {
		r.Completed = storage.Now()
	}
	_, err := s.Stmt.Exec(
		r.RunId,
		r.TestNumber,
		r.TestName,
		r.Category,
		r.Version,
		r.Pass,
		r.Fail,
		r.Status,
		r.ExitCode,
		r.LogPath,
		r.Started,
		r.Completed,
	)
	return err
}

type stmtRecordList storage.DbStmt

func (s *stmtRecordList) Init(db storage.DbHandle) (err error) {
	s.Stmt, err = db.Prepare("recordList", `
		SELECT `+recordColumns+`
		FROM runs
		ORDER BY id DESC
		LIMIT ?`,
	)
	return
}

func (s *stmtRecordList) run(limit int) ([]Record, error) {
	rows, err := s.Stmt.Query(limit)
	if err != nil {
		return nil, err
	}
	return scanRecords("stmtRecordList", rows)
}

type stmtRecordListRun storage.DbStmt

func (s *stmtRecordListRun) Init(db storage.DbHandle) (err error) {
	s.Stmt, err = db.Prepare("recordListRun", `
		SELECT `+recordColumns+`
		FROM runs
		WHERE run_id = ?
		ORDER BY id ASC`,
	)
	return
}

func (s *stmtRecordListRun) run(runId string) ([]Record, error) {
	rows, err := s.Stmt.Query(runId)
	if err != nil {
		return nil, err
	}
	return scanRecords("stmtRecordListRun", rows)
}

func scanRecords(name string, rows *sql.Rows) ([]Record, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error(name+": failed to close rows", "error", err)
		}
	}()
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.RunId,
			&r.TestNumber,
			&r.TestName,
			&r.Category,
			&r.Version,
			&r.Pass,
			&r.Fail,
			&r.Status,
			&r.ExitCode,
			&r.LogPath,
			&r.Started,
			&r.Completed,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
