package postgres

import (
	"context"
	"database/sql"

	"github.com/changhyu/cargoro-sub000/internal/core/domain"
)

/*
	-- Directed admin pushes, kept for audit
	CREATE TABLE notifications (
		id          UUID PRIMARY KEY,
		client_id   TEXT NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
*/

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

var _ domain.NotificationStore = (*NotificationRepo)(nil)

func (r *NotificationRepo) SaveNotification(ctx context.Context, n *domain.Notification) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO notifications (
			id, client_id, payload, created_at
		) VALUES ($1, $2, $3, $4)
	`,
		n.ID,
		n.ClientID,
		[]byte(n.Payload),
		n.CreatedAt,
	)
	return err
}
