package connector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/checkmarxDev/chatbot-worker/pkg/message"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_turns (
		session_id TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		metadata   TEXT,
		PRIMARY KEY (session_id, user_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_requests (
		session_id TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		request_id TEXT NOT NULL,
		answer     TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (session_id, user_id, request_id)
	)`,
}

// SQLConnector keeps turns in a table ordered by a per-session sequence.
// Every append runs in one transaction together with its request id.
type SQLConnector struct {
	db     *sql.DB
	driver string
}

func OpenSQLConnector(driver, dsn string) (*SQLConnector, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	return &SQLConnector{db: db, driver: driver}, nil
}

func (c *SQLConnector) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (c *SQLConnector) Close() error {
	return c.db.Close()
}

// rebind rewrites ? placeholders for drivers that number them.
func (c *SQLConnector) rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *SQLConnector) History(ctx context.Context, key message.Key) ([]message.Turn, error) {
	rows, err := c.db.QueryContext(ctx,
		c.rebind(`SELECT role, content, metadata FROM chat_turns WHERE session_id = ? AND user_id = ? ORDER BY seq`),
		key.SessionID, key.UserID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var turns []message.Turn
	for rows.Next() {
		var t message.Turn
		var meta sql.NullString
		if err := rows.Scan(&t.Role, &t.Content, &meta); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &t.Metadata); err != nil {
				return nil, fmt.Errorf("turn metadata: %w", err)
			}
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (c *SQLConnector) Append(ctx context.Context, key message.Key, requestID string, entries []message.Entry) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if lock := c.sessionLock(); lock != "" {
		if _, err := tx.ExecContext(ctx, lock, key.SessionID+"/"+key.UserID); err != nil {
			return err
		}
	}

	if requestID != "" {
		res, err := tx.ExecContext(ctx,
			c.rebind(`INSERT INTO chat_requests (session_id, user_id, request_id, answer) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`),
			key.SessionID, key.UserID, requestID, answerOf(entries))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return tx.Rollback()
		}
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		c.rebind(`SELECT COALESCE(MAX(seq), 0) FROM chat_turns WHERE session_id = ? AND user_id = ?`),
		key.SessionID, key.UserID).Scan(&seq); err != nil {
		return err
	}

	for _, t := range foldEntries(entries) {
		seq++
		var meta sql.NullString
		if t.Metadata != nil {
			b, err := json.Marshal(t.Metadata)
			if err != nil {
				return err
			}
			meta = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			c.rebind(`INSERT INTO chat_turns (session_id, user_id, seq, role, content, metadata) VALUES (?, ?, ?, ?, ?, ?)`),
			key.SessionID, key.UserID, seq, t.Role, t.Content, meta); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// sessionLock serializes appends to one session for the rest of the
// transaction. SQLite needs none: the connector holds a single connection.
func (c *SQLConnector) sessionLock() string {
	if c.driver != DriverPostgres {
		return ""
	}
	return `SELECT pg_advisory_xact_lock(hashtext($1))`
}

func (c *SQLConnector) Recorded(ctx context.Context, key message.Key, requestID string) (string, bool, error) {
	var answer string
	err := c.db.QueryRowContext(ctx,
		c.rebind(`SELECT answer FROM chat_requests WHERE session_id = ? AND user_id = ? AND request_id = ?`),
		key.SessionID, key.UserID, requestID).Scan(&answer)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return answer, true, nil
}
