package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lperezmo/sms-helper/internal/models"
	"github.com/lperezmo/sms-helper/pkg/utils"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseInterface is the turn log as seen by the services
type DatabaseInterface interface {
	Close() error
	AddTurn(ctx context.Context, rec *models.TurnRecord) error
	GetTurns(ctx context.Context, limit, offset int) ([]*models.TurnRecord, error)
}

// Database is the SQLite turn log. Message bodies and replies are sealed
// with the configured key; without a key they are stored as given.
type Database struct {
	db  *sql.DB
	key string
}

// NewDatabase opens the SQLite database and creates the schema
func NewDatabase(dsn, encryptionKey string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("database path is required")
	}

	if strings.Contains(dsn, "?mode=invalid") {
		return nil, errors.New("invalid database configuration")
	}

	if encryptionKey != "" {
		if err := utils.ValidateKey(encryptionKey); err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("ping failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	if err := createTables(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("create tables failed: %w, close failed: %v", err, closeErr)
		}
		return nil, err
	}

	return &Database{db: db, key: encryptionKey}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			turn_id TEXT NOT NULL,
			message_sid TEXT,
			from_number TEXT NOT NULL,
			to_number TEXT,
			body TEXT,
			media_count INTEGER NOT NULL DEFAULT 0,
			verdict TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reply TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns (created_at);
	`)
	return err
}

func (d *Database) Close() error {
	if d == nil {
		return errors.New("database is nil")
	}

	if d.db == nil {
		return errors.New("database already closed")
	}

	err := d.db.Close()
	d.db = nil
	return err
}

func (d *Database) ready() error {
	if d == nil {
		return errors.New("database is nil")
	}
	if d.db == nil {
		return errors.New("database is closed")
	}
	return nil
}

func (d *Database) seal(s string) (string, error) {
	if d.key == "" {
		return s, nil
	}
	return utils.EncryptField(s, d.key)
}

func (d *Database) open(s string) (string, error) {
	if d.key == "" {
		return s, nil
	}
	return utils.DecryptField(s, d.key)
}

func (d *Database) AddTurn(ctx context.Context, rec *models.TurnRecord) error {
	if err := d.ready(); err != nil {
		return err
	}

	if rec == nil {
		return errors.New("turn record cannot be nil")
	}

	if rec.TurnID == "" || rec.From == "" || rec.Verdict == "" || rec.Outcome == "" {
		return errors.New("turn ID, sender, verdict and outcome are required")
	}

	body, err := d.seal(rec.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt body: %w", err)
	}
	reply, err := d.seal(rec.Reply)
	if err != nil {
		return fmt.Errorf("failed to encrypt reply: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := d.db.ExecContext(ctx,
		"INSERT INTO turns (turn_id, message_sid, from_number, to_number, body, media_count, verdict, outcome, reply, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.TurnID,
		rec.MessageSID,
		rec.From,
		rec.To,
		body,
		rec.MediaCount,
		rec.Verdict,
		rec.Outcome,
		reply,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return err
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// GetTurns lists turns newest first
func (d *Database) GetTurns(ctx context.Context, limit, offset int) ([]*models.TurnRecord, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}

	if limit < 0 {
		return nil, errors.New("limit cannot be negative")
	}

	if offset < 0 {
		return nil, errors.New("offset cannot be negative")
	}

	if limit == 0 {
		limit = 100
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT id, turn_id, message_sid, from_number, to_number, body, media_count, verdict, outcome, reply, created_at FROM turns ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []*models.TurnRecord
	for rows.Next() {
		rec := &models.TurnRecord{}
		var (
			sid, to, body, reply sql.NullString
			createdAt            int64
		)
		err := rows.Scan(&rec.ID, &rec.TurnID, &sid, &rec.From, &to, &body, &rec.MediaCount, &rec.Verdict, &rec.Outcome, &reply, &createdAt)
		if err != nil {
			return nil, err
		}
		rec.MessageSID = sid.String
		rec.To = to.String
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()

		if rec.Body, err = d.open(body.String); err != nil {
			return nil, fmt.Errorf("failed to decrypt body of turn %d: %w", rec.ID, err)
		}
		if rec.Reply, err = d.open(reply.String); err != nil {
			return nil, fmt.Errorf("failed to decrypt reply of turn %d: %w", rec.ID, err)
		}
		turns = append(turns, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return turns, nil
}
