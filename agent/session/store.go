package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite"

	contractx "github.com/MazarSayed/stock-platform/agent/contract"
)

// Message is one persisted chat line as shown to clients.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Agent     string    `json:"agent,omitempty"`
	CreatedAt time.Time `json:"-"`
}

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	SessionID string    `bun:"session_id,pk"`
	ThreadID  string    `bun:"thread_id,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SessionID string    `bun:"session_id,notnull"`
	Role      string    `bun:"role,notnull"`
	Content   string    `bun:"content,notnull"`
	Agent     string    `bun:"agent,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// Store keeps the session to thread mapping and the visible chat log.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

// Open picks the dialect from the DSN: postgres:// and postgresql:// go
// through pgdriver, anything else is a modernc sqlite DSN.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: database dsn is required", contractx.ErrValidation)
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		return New(bun.NewDB(sqldb, pgdialect.New())), nil
	}

	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps sqlite free of SQLITE_BUSY and makes :memory: a single database.
	sqldb.SetMaxOpenConns(1)
	return New(bun.NewDB(sqldb, sqlitedialect.New())), nil
}

func New(db *bun.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite dir %s: %w", dir, err)
	}
	return nil
}

// Migrate creates tables and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*sessionRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*messageRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*messageRow)(nil)).
		Index("messages_session_id_idx").
		Column("session_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetThreadID returns contract.ErrSessionNotFound for an unknown session.
func (s *Store) GetThreadID(ctx context.Context, sessionID string) (string, error) {
	var row sessionRow
	err := s.db.NewSelect().
		Model(&row).
		Column("thread_id").
		Where("session_id = ?", sessionID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", contractx.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get thread id: %w", err)
	}
	return row.ThreadID, nil
}

// CreateSession inserts the mapping. It reports false when the session
// already exists, leaving the stored thread id untouched.
func (s *Store) CreateSession(ctx context.Context, sessionID string, threadID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(threadID) == "" {
		return false, fmt.Errorf("%w: session id and thread id are required", contractx.ErrValidation)
	}

	now := s.now()
	row := &sessionRow{SessionID: sessionID, ThreadID: threadID, CreatedAt: now, UpdatedAt: now}
	res, err := s.db.NewInsert().Model(row).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("create session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create session: %w", err)
	}
	if n > 0 {
		log.Debug().Str("session_id", sessionID).Str("thread_id", threadID).Msg("session created")
	}
	return n > 0, nil
}

func (s *Store) Touch(ctx context.Context, sessionID string) error {
	_, err := s.db.NewUpdate().
		Model((*sessionRow)(nil)).
		Set("updated_at = ?", s.now()).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.db.NewSelect().
		Model((*sessionRow)(nil)).
		Where("session_id = ?", sessionID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return ok, nil
}

func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg Message) error {
	if _, err := s.db.NewInsert().Model(s.toRow(sessionID, msg)).Exec(ctx); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// AppendTurn writes all messages of one turn in a single transaction.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rows := make([]*messageRow, 0, len(msgs))
		for _, m := range msgs {
			rows = append(rows, s.toRow(sessionID, m))
		}
		// Row by row keeps ids in call order on every dialect.
		for _, row := range rows {
			if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
				return fmt.Errorf("append turn: %w", err)
			}
		}
		if _, err := tx.NewUpdate().
			Model((*sessionRow)(nil)).
			Set("updated_at = ?", s.now()).
			Where("session_id = ?", sessionID).
			Exec(ctx); err != nil {
			return fmt.Errorf("append turn: touch session: %w", err)
		}
		return nil
	})
}

// ListMessages returns the session's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var rows []messageRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, Message{Role: r.Role, Content: r.Content, Agent: r.Agent, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *Store) toRow(sessionID string, msg Message) *messageRow {
	created := msg.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	return &messageRow{
		SessionID: sessionID,
		Role:      msg.Role,
		Content:   msg.Content,
		Agent:     msg.Agent,
		CreatedAt: created,
	}
}
