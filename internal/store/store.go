// Package store 将产线配置持久化到 SQLite。
//
// 产线拥有其下所有记录，删除产线通过外键级联删除工作站、缓冲区、运输路径、
// 工艺路线与价值流配置；删除工艺路线级联删除步骤与连线。
// 导入等多实体写入通过 WithTx 在单个事务中完成。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"plant-config/internal/apperr"
)

// DBTX *sql.DB 与 *sql.Tx 的公共子集
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries 针对某个连接或事务的全部读写操作
type Queries struct {
	db DBTX
}

// Store 持有数据库连接，直接调用 Queries 的方法时每条语句单独提交
type Store struct {
	*Queries
	db *sql.DB
}

// Open 打开 SQLite 数据库并开启外键约束。
// 连接池限制为一个连接，写操作因此串行执行，内存库也不会因为换连接而丢失。
func Open(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库 %s 失败: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// New 初始化表结构并返回 Store
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{Queries: &Queries{db: db}, db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("开启外键约束失败: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化表结构失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx 在单个事务中执行 fn，fn 返回错误时整体回滚
func (s *Store) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	if err := fn(&Queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("回滚失败: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// writeErr 将约束冲突映射为带错误码的错误
func writeErr(err error, format string, args ...any) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch constraintCode(se) {
		case apperr.CodeConflict:
			return apperr.Wrap(apperr.CodeConflict, err, format+" 已存在", args...)
		case apperr.CodeReference:
			return apperr.Wrap(apperr.CodeReference, err, format+" 引用的上级记录不存在", args...)
		case apperr.CodeField:
			return apperr.Wrap(apperr.CodeField, err, format+" 字段取值非法", args...)
		}
	}
	return fmt.Errorf("写入"+format+"失败: %w", append(args, err)...)
}

func constraintCode(se *sqlite.Error) apperr.Code {
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return apperr.CodeConflict
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return apperr.CodeReference
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return apperr.CodeField
	}
	if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return ""
	}
	// 未开启扩展错误码时只能从消息判断
	msg := se.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY"):
		return apperr.CodeReference
	case strings.Contains(msg, "CHECK"):
		return apperr.CodeField
	}
	return apperr.CodeConflict
}

// notFound 在未影响任何行时返回 NOT_FOUND
func notFound(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.CodeNotFound, format+" 不存在", args...)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS production_lines (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS workstations (
	id                 TEXT PRIMARY KEY,
	production_line_id TEXT NOT NULL REFERENCES production_lines(id) ON DELETE CASCADE,
	name               TEXT NOT NULL,
	type               TEXT NOT NULL,
	capacity           INTEGER NOT NULL DEFAULT 1 CHECK (capacity > 0),
	processing_time    TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'idle',
	input_buffer_id    TEXT,
	output_buffer_id   TEXT,
	position           TEXT,
	properties         TEXT
);
CREATE INDEX IF NOT EXISTS idx_workstations_line ON workstations(production_line_id);

CREATE TABLE IF NOT EXISTS buffers (
	id                 TEXT PRIMARY KEY,
	production_line_id TEXT NOT NULL REFERENCES production_lines(id) ON DELETE CASCADE,
	name               TEXT NOT NULL,
	capacity           INTEGER NOT NULL CHECK (capacity > 0),
	current_level      INTEGER NOT NULL DEFAULT 0 CHECK (current_level >= 0 AND current_level <= capacity),
	location           TEXT,
	position           TEXT,
	properties         TEXT
);
CREATE INDEX IF NOT EXISTS idx_buffers_line ON buffers(production_line_id);

CREATE TABLE IF NOT EXISTS transport_paths (
	id                 TEXT PRIMARY KEY,
	production_line_id TEXT NOT NULL REFERENCES production_lines(id) ON DELETE CASCADE,
	from_location      TEXT NOT NULL,
	to_location        TEXT NOT NULL,
	transport_time     REAL NOT NULL,
	capacity           INTEGER,
	properties         TEXT
);
CREATE INDEX IF NOT EXISTS idx_paths_line ON transport_paths(production_line_id);

CREATE TABLE IF NOT EXISTS routines (
	id                 TEXT PRIMARY KEY,
	production_line_id TEXT NOT NULL REFERENCES production_lines(id) ON DELETE CASCADE,
	name               TEXT NOT NULL,
	material_type      TEXT NOT NULL,
	start_location     TEXT,
	end_location       TEXT,
	description        TEXT
);
CREATE INDEX IF NOT EXISTS idx_routines_line ON routines(production_line_id);

CREATE TABLE IF NOT EXISTS routine_steps (
	id              TEXT PRIMARY KEY,
	routine_id      TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
	step_id         INTEGER NOT NULL,
	workstation_id  TEXT,
	operation       TEXT NOT NULL,
	processing_time REAL,
	value_added     INTEGER NOT NULL DEFAULT 0,
	value_amount    REAL,
	conditions      TEXT,
	parallel        INTEGER NOT NULL DEFAULT 0,
	branches        TEXT,
	merge_condition TEXT,
	next_step       TEXT,
	position        TEXT,
	UNIQUE (routine_id, step_id)
);

CREATE TABLE IF NOT EXISTS routine_step_links (
	id           TEXT PRIMARY KEY,
	routine_id   TEXT NOT NULL REFERENCES routines(id) ON DELETE CASCADE,
	from_step_id TEXT NOT NULL REFERENCES routine_steps(id) ON DELETE CASCADE,
	to_step_id   TEXT NOT NULL REFERENCES routine_steps(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_links_routine ON routine_step_links(routine_id);

CREATE TABLE IF NOT EXISTS value_stream_configs (
	id                 TEXT PRIMARY KEY,
	production_line_id TEXT NOT NULL REFERENCES production_lines(id) ON DELETE CASCADE,
	name               TEXT NOT NULL,
	value_points       TEXT NOT NULL,
	cost_points        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS operation_types (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS workstation_types (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS material_types (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);
`
