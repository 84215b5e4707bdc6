package store

import "context"

type AuditStore struct {
	db DB
}

type auditRow struct {
	ID        string  `db:"id"`
	Actor     *string `db:"actor"`
	Action    string  `db:"action"`
	Message   string  `db:"message"`
	CreatedAt any     `db:"created_at"`
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Log(ctx context.Context, tx Execer, action, message, actor string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, action, message)
		VALUES (gen_random_uuid()::text, $1, $2, $3)
	`, actor, action, message)
	return err
}

func (s *AuditStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor, action, message, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	logs := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, map[string]any{
			"id":         row.ID,
			"actor":      derefStringPtr(row.Actor),
			"action":     row.Action,
			"message":    row.Message,
			"created_at": row.CreatedAt,
		})
	}
	return logs, nil
}
