// UniHelp Messaging - Real-Time Chat and Push Notification Delivery
// Copyright 2026 UniHelp
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/omarsaab96/unihelp-sub002

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/omarsaab96/unihelp-sub002/internal/config"
	"github.com/omarsaab96/unihelp-sub002/internal/logging"
	"github.com/omarsaab96/unihelp-sub002/internal/models"
)

// PostgresStore implements Store on top of PostgreSQL via lib/pq.
type PostgresStore struct {
	db *sql.DB
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS conversations (
	id                  UUID PRIMARY KEY,
	pair_key            TEXT NOT NULL,
	participants        TEXT[] NOT NULL,
	active_participants TEXT[] NOT NULL,
	visible_to          TEXT[] NOT NULL,
	last_message_text   TEXT,
	last_message_sender TEXT,
	last_message_at     TIMESTAMPTZ,
	opened_at           JSONB NOT NULL DEFAULT '{}',
	deleted_at          JSONB NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_pair_key ON conversations (pair_key);
CREATE INDEX IF NOT EXISTS idx_conversations_visible_to ON conversations USING GIN (visible_to);

CREATE TABLE IF NOT EXISTS messages (
	id          UUID PRIMARY KEY,
	chat_id     UUID NOT NULL REFERENCES conversations(id),
	sender_id   TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL DEFAULT 'text',
	attachments JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages (chat_id, created_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
	id            UUID PRIMARY KEY,
	user_id       TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL DEFAULT '',
	data          JSONB NOT NULL DEFAULT '{}',
	read          BOOLEAN NOT NULL DEFAULT FALSE,
	read_at       TIMESTAMPTZ,
	tickets       JSONB NOT NULL DEFAULT '[]',
	gateway_error TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT ''
);
`

// NewPostgresStore opens the database, verifies connectivity, and
// bootstraps the schema.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	logging.Info().Msg("Postgres store initialized")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// Ping reports database health for readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	prepareMessage(msg)
	if err := validateMessage(msg); err != nil {
		return err
	}

	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, receiver_id, body, kind, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID, msg.ChatID, msg.SenderID, msg.ReceiverID, msg.Text, string(msg.Kind), attachments, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID uuid.UUID, before time.Time, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if before.IsZero() {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, chat_id, sender_id, receiver_id, body, kind, attachments, created_at
			FROM messages WHERE chat_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2`, chatID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, chat_id, sender_id, receiver_id, body, kind, attachments, created_at
			FROM messages WHERE chat_id = $1 AND created_at < $2
			ORDER BY created_at DESC, id DESC LIMIT $3`, chatID, before, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Message, 0, limit)
	for rows.Next() {
		var (
			m           models.Message
			kind        string
			attachments []byte
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.ReceiverID, &m.Text, &kind, &attachments, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Kind = models.MessageKind(kind)
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
				return nil, fmt.Errorf("unmarshal attachments: %w", err)
			}
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindOrCreateConversation(ctx context.Context, a, b string) (*models.Conversation, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: both participant ids are required", ErrValidation)
	}

	key := pairKey(a, b)
	now := time.Now().UTC()

	// The unique index on pair_key makes concurrent first-message races
	// converge on a single row: the losing insert is a no-op and the
	// trailing select returns the winner.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, pair_key, participants, active_participants, visible_to, created_at, updated_at)
		VALUES ($1, $2, $3, $3, $3, $4, $4)
		ON CONFLICT (pair_key) DO NOTHING`,
		uuid.New(), key, pq.Array([]string{a, b}), now)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	conv, err := s.scanConversation(s.db.QueryRowContext(ctx,
		conversationSelect+` WHERE pair_key = $1`, key))
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return conv, nil
}

const conversationSelect = `
	SELECT id, participants, active_participants, visible_to,
	       last_message_text, last_message_sender, last_message_at,
	       opened_at, deleted_at, created_at, updated_at
	FROM conversations`

func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv, err := s.scanConversation(s.db.QueryRowContext(ctx,
		conversationSelect+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		conv          models.Conversation
		lastText      sql.NullString
		lastSender    sql.NullString
		lastAt        sql.NullTime
		openedAtJSON  []byte
		deletedAtJSON []byte
	)
	err := row.Scan(&conv.ID,
		pq.Array(&conv.Participants), pq.Array(&conv.ActiveParticipants), pq.Array(&conv.VisibleTo),
		&lastText, &lastSender, &lastAt,
		&openedAtJSON, &deletedAtJSON, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastAt.Valid {
		conv.LastMessage = &models.LastMessage{
			Text:     lastText.String,
			SenderID: lastSender.String,
			SentAt:   lastAt.Time,
		}
	}
	conv.OpenedAt = map[string]time.Time{}
	conv.DeletedAt = map[string]time.Time{}
	if len(openedAtJSON) > 0 {
		if err := json.Unmarshal(openedAtJSON, &conv.OpenedAt); err != nil {
			return nil, fmt.Errorf("unmarshal opened_at: %w", err)
		}
	}
	if len(deletedAtJSON) > 0 {
		if err := json.Unmarshal(deletedAtJSON, &conv.DeletedAt); err != nil {
			return nil, fmt.Errorf("unmarshal deleted_at: %w", err)
		}
	}
	return &conv, nil
}

func (s *PostgresStore) ListConversationsForUser(ctx context.Context, userID string) ([]*models.ConversationSummary, error) {
	// Inbox ordering joins the message log for the true newest message
	// instead of trusting the cached last_message_* columns, which are
	// written outside the append transaction and can lag.
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.participants, c.active_participants, c.visible_to,
		       c.last_message_text, c.last_message_sender, c.last_message_at,
		       c.opened_at, c.deleted_at, c.created_at, c.updated_at,
		       m.body, m.sender_id, m.created_at
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT body, sender_id, created_at
			FROM messages WHERE chat_id = c.id
			ORDER BY created_at DESC, id DESC LIMIT 1
		) m ON TRUE
		WHERE $1 = ANY(c.visible_to)
		ORDER BY COALESCE(m.created_at, c.created_at) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ConversationSummary, 0)
	for rows.Next() {
		var (
			conv          models.Conversation
			lastText      sql.NullString
			lastSender    sql.NullString
			lastAt        sql.NullTime
			openedAtJSON  []byte
			deletedAtJSON []byte
			msgBody       sql.NullString
			msgSender     sql.NullString
			msgAt         sql.NullTime
		)
		err := rows.Scan(&conv.ID,
			pq.Array(&conv.Participants), pq.Array(&conv.ActiveParticipants), pq.Array(&conv.VisibleTo),
			&lastText, &lastSender, &lastAt,
			&openedAtJSON, &deletedAtJSON, &conv.CreatedAt, &conv.UpdatedAt,
			&msgBody, &msgSender, &msgAt)
		if err != nil {
			return nil, fmt.Errorf("scan conversation summary: %w", err)
		}
		if lastAt.Valid {
			conv.LastMessage = &models.LastMessage{
				Text:     lastText.String,
				SenderID: lastSender.String,
				SentAt:   lastAt.Time,
			}
		}
		conv.OpenedAt = map[string]time.Time{}
		conv.DeletedAt = map[string]time.Time{}
		if len(openedAtJSON) > 0 {
			if err := json.Unmarshal(openedAtJSON, &conv.OpenedAt); err != nil {
				return nil, fmt.Errorf("unmarshal opened_at: %w", err)
			}
		}
		if len(deletedAtJSON) > 0 {
			if err := json.Unmarshal(deletedAtJSON, &conv.DeletedAt); err != nil {
				return nil, fmt.Errorf("unmarshal deleted_at: %w", err)
			}
		}

		sum := &models.ConversationSummary{Conversation: conv}
		sum.LastMessageAt = conv.CreatedAt
		if msgAt.Valid {
			sum.LastMessageText = msgBody.String
			sum.LastMessageSenderID = msgSender.String
			sum.LastMessageAt = msgAt.Time
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkOpened(ctx context.Context, chatID uuid.UUID, userID string, t time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET opened_at = opened_at || jsonb_build_object($2::text, to_jsonb($3::timestamptz)),
		    visible_to = CASE WHEN $2 = ANY(visible_to) THEN visible_to ELSE array_append(visible_to, $2) END,
		    updated_at = NOW()
		WHERE id = $1`, chatID, userID, t.UTC())
	if err != nil {
		return fmt.Errorf("mark opened: %w", err)
	}
	return requireRow(res, chatID)
}

func (s *PostgresStore) MarkDeletedForUser(ctx context.Context, chatID uuid.UUID, userID string, t time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET deleted_at = deleted_at || jsonb_build_object($2::text, to_jsonb($3::timestamptz)),
		    visible_to = array_remove(visible_to, $2),
		    updated_at = NOW()
		WHERE id = $1`, chatID, userID, t.UTC())
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return requireRow(res, chatID)
}

func (s *PostgresStore) TouchLastMessage(ctx context.Context, chatID uuid.UUID, msg *models.Message) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_text = $2, last_message_sender = $3, last_message_at = $4, updated_at = NOW()
		WHERE id = $1`, chatID, msg.Text, msg.SenderID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch last message: %w", err)
	}
	return requireRow(res, chatID)
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("%w: notification user id is required", ErrValidation)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}
	tickets, err := json.Marshal(n.Tickets)
	if err != nil {
		return fmt.Errorf("marshal tickets: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, body, data, read, tickets, gateway_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, n.Title, n.Body, data, n.Read, tickets, n.GatewayError, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]*models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, body, data, read, read_at, tickets, gateway_error, created_at
		FROM notifications
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Notification, 0)
	for rows.Next() {
		var (
			n       models.Notification
			data    []byte
			tickets []byte
			readAt  sql.NullTime
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &data, &n.Read, &readAt, &tickets, &n.GatewayError, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("unmarshal notification data: %w", err)
			}
		}
		if len(tickets) > 0 {
			if err := json.Unmarshal(tickets, &n.Tickets); err != nil {
				return nil, fmt.Errorf("unmarshal tickets: %w", err)
			}
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id uuid.UUID, t time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, t.UTC())
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireRow(res, id)
}

func (s *PostgresStore) SoftDeleteNotification(ctx context.Context, id uuid.UUID, t time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL`, id, t.UTC())
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireRow(res, id)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.FirstName, &u.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name`,
		u.ID, u.FirstName, u.LastName)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, id interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%v: %w", id, ErrNotFound)
	}
	return nil
}
