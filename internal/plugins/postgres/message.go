package postgres

import (
	"context"
	"database/sql"

	"github.com/changhyu/cargoro-sub000/internal/core/domain"
)

/*
	-- Chat messages
	CREATE TABLE chat_messages (
		id          UUID PRIMARY KEY,
		room_id     TEXT NOT NULL,
		sender_id   TEXT NOT NULL,
		content     TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX chat_messages_room_idx ON chat_messages (room_id, created_at DESC);
*/

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageStore = (*MessageRepo)(nil)

func (r *MessageRepo) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if msg.RoomID == "" {
		return domain.ErrInvalidRoomID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO chat_messages (
			id, room_id, sender_id, content, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`,
		msg.ID,
		msg.RoomID,
		msg.SenderID,
		msg.Content,
		msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) RecentMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidRoomID
	}
	if limit <= 0 {
		limit = 50
	}
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, room_id, sender_id, content, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID,
			&m.RoomID,
			&m.SenderID,
			&m.Content,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
