// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

//go:build !nodb

package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var ErrDbConstraintUnique = sqlite3.ErrConstraintUnique

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	test_number INTEGER NOT NULL,
	test_name   TEXT NOT NULL,
	category    TEXT NOT NULL,
	version     TEXT NOT NULL,
	pass        INTEGER NOT NULL,
	fail        INTEGER NOT NULL,
	status      TEXT NOT NULL,
	exit_code   INTEGER NOT NULL,
	log_path    TEXT NOT NULL,
	started     INTEGER NOT NULL,
	completed   INTEGER NOT NULL,
	UNIQUE (run_id, test_number)
);
CREATE INDEX IF NOT EXISTS runs_by_run_id ON runs (run_id);
`

func IsDbError(err error, code any) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch c := code.(type) {
	case sqlite3.ErrNoExtended:
		return sqliteErr.ExtendedCode == c
	case sqlite3.ErrNo:
		return sqliteErr.Code == c
	}
	return false
}

type DbHandle struct {
	db *sql.DB
}

func NewDb(dbfile string) (*DbHandle, error) {
	db, err := sql.Open("sqlite3", dbfile+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database %s: %w", dbfile, err)
	}
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize database schema: %w", err)
	}
	return &DbHandle{db: db}, nil
}

func (d DbHandle) Close() error {
	return d.db.Close()
}

func (d DbHandle) Prepare(name, query string) (stmt *sql.Stmt, err error) {
	if stmt, err = d.db.Prepare(query); err != nil {
		err = fmt.Errorf("unable to prepare statement %s: %w", name, err)
	}
	return
}

func (d DbHandle) InitStmt(stmt ...DbStmtInit) error {
	for _, s := range stmt {
		if err := s.Init(d); err != nil {
			return err
		}
	}
	return nil
}

type DbStmt struct {
	Stmt *sql.Stmt
}

type DbStmtInit interface {
	Init(db DbHandle) error
}
