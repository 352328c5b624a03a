package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/shipdesk/internal/domain/model"
	"github.com/bigkaa/shipdesk/internal/domain/rbac"
)

// UserRepository — хранилище учётных записей.
type UserRepository interface {
	// Create сохраняет пользователя. Дубликат username или email — ErrConflict.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя по UUID.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByUsername ищет пользователя по логину без учёта регистра.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// List возвращает всех пользователей в порядке регистрации.
	List(ctx context.Context) ([]*model.User, error)
	// UpdatePassword записывает новый хэш пароля.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// UpdateStatus включает или отключает учётную запись.
	UpdateStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error)
}

const userColumns = `id::text, username, email, password_hash, first_name, last_name,
	roles, status, created_at, updated_at`

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{rbac.RoleUser}
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, roles, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.Roles, string(u.Status),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь %s уже зарегистрирован", ErrConflict, u.Username)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = $1`,
		strings.ToLower(strings.TrimSpace(username)))
}

func (r *userRepo) getOne(ctx context.Context, query string, arg string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	result := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("ошибка смены пароля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) UpdateStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `UPDATE users SET status = $2, updated_at = now() WHERE id = $1 RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, id, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка смены статуса пользователя: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	var status string
	if err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Roles, &status, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Status = model.UserStatus(status)
	return u, nil
}
