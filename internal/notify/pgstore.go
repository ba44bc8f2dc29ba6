package notify

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements UserDirectory and Sink on the users/roles tables.
type PgStore struct{ DB *pgxpool.Pool }

func NewPgStore(db *pgxpool.Pool) *PgStore { return &PgStore{DB: db} }

func (s *PgStore) UsersWithPermission(ctx context.Context, tenant, permission string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT u.id
		FROM users u
		JOIN role_permissions rp ON rp.role = u.role AND rp.tenant_id = u.tenant_id
		WHERE u.tenant_id=$1 AND u.active AND rp.permission=$2`,
		tenant, permission)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PgStore) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO notifications(id, tenant_id, user_id, title, body, severity, priority, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		n.ID, n.TenantID, n.UserID, n.Title, n.Body, string(n.Severity), n.Priority, n.CreatedAt)
	return err
}
