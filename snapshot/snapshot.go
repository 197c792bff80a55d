// Package snapshot persists the last synchronized conversation store in SQLite
// so a restarted client starts from its last-known-good view.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mitchellh/go-homedir"

	"github.com/shopdesk/inbox"
)

// DB is a SQLite-backed snapshot of an inbox.Store.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the snapshot database at dsn. A leading "~"
// is expanded; ":memory:" opens a private in-memory database.
func Open(dsn string) (*DB, error) {
	inMemory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if !inMemory {
		expanded, err := homedir.Expand(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to expand snapshot path: %w", err)
		}
		dsn = expanded
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	// Each connection to :memory: is a separate database.
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	s := &DB{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate snapshot: %w", err)
	}
	return s, nil
}

// Close releases the database.
func (s *DB) Close() error {
	return s.db.Close()
}

func (s *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			scope TEXT NOT NULL,
			id TEXT NOT NULL,
			counterpart TEXT NOT NULL,
			subject_ref TEXT NOT NULL DEFAULT '',
			subject_label TEXT NOT NULL DEFAULT '',
			message_count INTEGER NOT NULL DEFAULT 0,
			saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (scope, id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			scope TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			sender TEXT NOT NULL,
			text TEXT NOT NULL,
			ts INTEGER NOT NULL,
			client_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (scope, conversation_id, seq)
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Save replaces the stored snapshot with convs in a single transaction.
func (s *DB) Save(ctx context.Context, convs []inbox.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return err
	}

	convStmt, err := tx.PrepareContext(ctx, `INSERT INTO conversations
		(scope, id, counterpart, subject_ref, subject_label, message_count, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer convStmt.Close()
	msgStmt, err := tx.PrepareContext(ctx, `INSERT INTO messages
		(scope, conversation_id, seq, sender, text, ts, client_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer msgStmt.Close()

	now := time.Now().UTC()
	for _, c := range convs {
		if c.Subject == nil {
			continue
		}
		if _, err := convStmt.ExecContext(ctx, string(c.Scope()), c.ID, c.Counterpart,
			c.Subject.Ref(), c.Subject.Label(), c.MessageCount, now); err != nil {
			return fmt.Errorf("failed to save conversation %s: %w", c.ID, err)
		}
		for i, m := range c.Messages {
			if _, err := msgStmt.ExecContext(ctx, string(c.Scope()), c.ID, i,
				string(m.Sender), m.Text, m.Timestamp.Unix(), m.ClientID); err != nil {
				return fmt.Errorf("failed to save message of %s: %w", c.ID, err)
			}
		}
	}
	return tx.Commit()
}

// Load reads the stored snapshot. An empty database yields no conversations.
func (s *DB) Load(ctx context.Context) ([]inbox.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT scope, id, counterpart, subject_ref, subject_label, message_count
		FROM conversations ORDER BY scope, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	var convs []inbox.Conversation
	for rows.Next() {
		var scope, id, counterpart, ref, label string
		var count int
		if err := rows.Scan(&scope, &id, &counterpart, &ref, &label, &count); err != nil {
			rows.Close()
			return nil, err
		}
		var subject inbox.Subject = inbox.StoreSubject{}
		if inbox.Scope(scope) == inbox.ScopeProduct {
			subject = inbox.ProductSubject{ProductRef: ref, ProductName: label}
		}
		c := inbox.NewConversation(counterpart, subject)
		c.ID = id
		c.MessageCount = count
		convs = append(convs, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, c := range convs {
		msgs, err := s.loadMessages(ctx, c.Scope(), c.ID)
		if err != nil {
			return nil, err
		}
		convs[i] = inbox.Reconcile(c, msgs)
	}
	return convs, nil
}

func (s *DB) loadMessages(ctx context.Context, scope inbox.Scope, id string) ([]inbox.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sender, text, ts, client_id FROM messages
		WHERE scope = ? AND conversation_id = ? ORDER BY seq`, string(scope), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []inbox.Message
	for rows.Next() {
		var sender, text, clientID string
		var ts int64
		if err := rows.Scan(&sender, &text, &ts, &clientID); err != nil {
			return nil, err
		}
		m := inbox.NewMessage(inbox.Sender(sender), text, time.Unix(ts, 0).UTC())
		m.ClientID = clientID
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
