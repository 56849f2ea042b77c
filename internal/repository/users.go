package repository

import (
	"context"
	"database/sql"
	"errors"

	"busticket/internal/database"
	"busticket/internal/models"
)

const userColumns = `user_id, email, password_hash, full_name, registered_at, is_active`

// UserRepository только читает пользователей: их заводит внешний сервис
type UserRepository struct {
	q database.Querier
}

func NewUserRepository(q database.Querier) *UserRepository {
	return &UserRepository{q: q}
}

// GetByID возвращает nil, nil для неизвестного пользователя
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
}

// GetByEmail сравнивает email без учета регистра
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&user.UserID, &user.Email, &user.PasswordHash,
		&user.FullName, &user.RegisteredAt, &user.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
