package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alexr72/wpcv/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	ts              TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	agent           TEXT NOT NULL,
	user_name       TEXT NOT NULL DEFAULT '',
	prompt          TEXT NOT NULL,
	response        TEXT NOT NULL,
	revision        TEXT NOT NULL DEFAULT '',
	patch_path      TEXT NOT NULL DEFAULT '',
	patch_error     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS exchanges_conversation ON exchanges(conversation_id);
`

type SQLiteJournal struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Append(ctx context.Context, record Record) (Record, error) {
	record = prepare(record)

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, ts, conversation_id, agent, user_name, prompt, response, revision, patch_path, patch_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		string(record.ConversationID),
		record.Agent,
		record.User,
		record.Prompt,
		record.Response,
		record.Revision,
		record.PatchPath,
		record.PatchError,
	)
	if err != nil {
		return record, fmt.Errorf("insert journal record: %w", err)
	}

	return record, nil
}

func (j *SQLiteJournal) Records(ctx context.Context, filter Filter) ([]Record, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id, ts, conversation_id, agent, user_name, prompt, response, revision, patch_path, patch_error FROM exchanges`)

	var where []string
	var args []any
	if filter.ConversationID != "" {
		where = append(where, "conversation_id = ?")
		args = append(args, string(filter.ConversationID))
	}
	if filter.Agent != "" {
		where = append(where, "agent = ?")
		args = append(args, filter.Agent)
	}
	if len(where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(where, " AND "))
	}
	query.WriteString(" ORDER BY seq DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record         Record
			ts             string
			conversationID string
		)
		if err := rows.Scan(&record.ID, &ts, &conversationID, &record.Agent, &record.User,
			&record.Prompt, &record.Response, &record.Revision, &record.PatchPath, &record.PatchError); err != nil {
			return nil, fmt.Errorf("scan journal record: %w", err)
		}

		record.ConversationID = core.ConversationID(conversationID)
		record.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		records = append(records, record)
	}

	return records, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
