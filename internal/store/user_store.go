package store

import (
	"context"

	"marketplace/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, id, username, email, passwordHash string) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, banned, balance)
		VALUES ($1, $2, $3, $4, 'user', FALSE, 0)
	`
	_, err := tx.ExecContext(ctx, query, id, username, email, passwordHash)
	return err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, role, banned, balance, created_at
		FROM users
		WHERE id = $1
	`, userID)
	return row, err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, role, banned, balance, created_at
		FROM users
		WHERE email = $1
	`, email)
	return row, err
}

// GetForUpdate locks the user row for the duration of the enclosing
// transaction. Settlement locks buyer and seller this way.
func (s *UserStore) GetForUpdate(ctx context.Context, tx Getter, userID string) (models.User, error) {
	var row models.User
	err := tx.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, role, banned, balance, created_at
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID)
	return row, err
}

func (s *UserStore) UpdateBalance(ctx context.Context, tx Execer, userID string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, userID)
	return err
}

func (s *UserStore) SetBanned(ctx context.Context, tx Execer, userID string, banned bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET banned = $1, updated_at = NOW()
		WHERE id = $2
	`, banned, userID)
	return err
}

func (s *UserStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var role string
	if err := s.db.GetContext(ctx, &role, `SELECT role FROM users WHERE id = $1`, userID); err != nil {
		return false, err
	}
	return role == models.RoleAdmin, nil
}

func (s *UserStore) IsBanned(ctx context.Context, userID string) (bool, error) {
	var banned bool
	if err := s.db.GetContext(ctx, &banned, `SELECT banned FROM users WHERE id = $1`, userID); err != nil {
		return false, err
	}
	return banned, nil
}

// Delete removes the user row; owned listings and their photo rows go
// with it via ON DELETE CASCADE.
func (s *UserStore) Delete(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	return err
}

type UserSummary struct {
	ID           string `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	Role         string `db:"role"`
	Banned       bool   `db:"banned"`
	ListingCount int    `db:"listing_count"`
}

func (s *UserStore) List(ctx context.Context, search string, limit, offset int) ([]UserSummary, error) {
	var rows []UserSummary
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.id, u.username, u.email, u.role, u.banned,
		       COUNT(l.id) AS listing_count
		FROM users u
		LEFT JOIN listings l ON l.user_id = u.id
		WHERE ($1 = '' OR u.username ILIKE '%' || $1 || '%' OR u.email ILIKE '%' || $1 || '%')
		GROUP BY u.id, u.username, u.email, u.role, u.banned
		ORDER BY u.created_at DESC
		LIMIT $2 OFFSET $3
	`, search, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
