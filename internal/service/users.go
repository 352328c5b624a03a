// users.go — учётные записи: вход администратора, регистрация,
// смена и сброс пароля, включение и отключение пользователя.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/shipdesk/internal/domain/intake"
	"github.com/bigkaa/shipdesk/internal/domain/model"
	"github.com/bigkaa/shipdesk/internal/domain/rbac"
	"github.com/bigkaa/shipdesk/internal/repository"
)

// BcryptCost — стоимость хэширования паролей.
const BcryptCost = 10

// Ограничения длины пароля (bcrypt учитывает только первые 72 байта).
const (
	minPasswordLen = 8
	maxPasswordLen = 72
)

// TokenIssuer — выпуск токена доступа для пользователя.
type TokenIssuer interface {
	Issue(u *model.User) (token string, expiresAt time.Time, err error)
}

// RoleCacheInvalidator — сброс закэшированных ролей пользователя.
type RoleCacheInvalidator interface {
	Invalidate(username string)
}

// AuthResult — пользователь и выпущенный для него токен.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// SignUpInput — данные регистрации.
type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// UserService — операции с учётными записями.
type UserService struct {
	repo   repository.UserRepository
	tokens TokenIssuer
	roles  RoleCacheInvalidator
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей. roles может быть nil.
func NewUserService(
	repo repository.UserRepository,
	tokens TokenIssuer,
	roles RoleCacheInvalidator,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		repo:   repo,
		tokens: tokens,
		roles:  roles,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// SeedAdmin создаёт администратора при старте, если пользователя с таким
// логином ещё нет. Существующая запись не изменяется.
func (s *UserService) SeedAdmin(ctx context.Context, email, password string) error {
	_, err := s.repo.GetByUsername(ctx, email)
	if err == nil {
		s.logger.Info("Администратор уже существует", slog.String("username", email))
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("поиск администратора: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return fmt.Errorf("хэширование пароля администратора: %w", err)
	}

	u := &model.User{
		Username:     email,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    "Admin",
		Roles:        []string{rbac.RoleUser, rbac.RoleAdmin},
		Status:       model.UserActive,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil
		}
		return fmt.Errorf("создание администратора: %w", err)
	}

	s.logger.Info("Создан администратор по умолчанию",
		slog.String("user_id", u.ID),
		slog.String("username", email),
	)
	return nil
}

// SignInAdmin проверяет логин и пароль и выпускает токен.
// Неизвестный логин, неверный пароль и отключённая запись дают ErrInvalidCredentials;
// пользователь без роли admin получает ErrForbidden.
func (s *UserService) SignInAdmin(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationError(&intake.ValidationError{Message: MsgCredentialsRequired})
	}

	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.logger.Info("Неверный пароль при входе", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}
	if u.Status != model.UserActive {
		s.logger.Info("Вход отключённого пользователя", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}
	if !slices.Contains(rbac.NormalizeRoles(u.Roles), rbac.RoleAdmin) {
		return nil, ErrForbidden
	}

	return s.issue(u)
}

// SignUp регистрирует пользователя с ролью user и выпускает токен.
// Логином становится email.
func (s *UserService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, validationError(&intake.ValidationError{Message: MsgSignUpRequired})
	}
	if !intake.ValidEmail(email) {
		return nil, validationError(&intake.ValidationError{Message: intake.MsgInvalidEmail})
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Username:     email,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Roles:        []string{rbac.RoleUser},
		Status:       model.UserActive,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return s.issue(u)
}

// ChangePassword меняет пароль пользователя после проверки текущего.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return validationError(&intake.ValidationError{Message: MsgPasswordsRequired})
	}

	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return mapUserRepoError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)) != nil {
		return ErrPasswordMismatch
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		return mapUserRepoError(err)
	}

	s.logger.Info("Пароль изменён", slog.String("user_id", u.ID))
	return nil
}

// ResetPassword задаёт пароль пользователя без проверки текущего (операция администратора).
func (s *UserService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	if strings.TrimSpace(userID) == "" {
		return validationError(&intake.ValidationError{Message: MsgUserIDMissing})
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return mapUserRepoError(err)
	}

	s.logger.Info("Пароль сброшен администратором", slog.String("user_id", userID))
	return nil
}

// ChangeStatus включает или отключает учётную запись.
// Закэшированные роли пользователя сбрасываются сразу.
func (s *UserService) ChangeStatus(ctx context.Context, userID, status string) (*model.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError(&intake.ValidationError{Message: MsgUserIDMissing})
	}
	st := model.UserStatus(status)
	if st != model.UserActive && st != model.UserDisabled {
		return nil, validationError(&intake.ValidationError{Message: MsgInvalidUserStatus})
	}

	u, err := s.repo.UpdateStatus(ctx, userID, st)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	if s.roles != nil {
		s.roles.Invalidate(u.Username)
	}

	s.logger.Info("Статус пользователя изменён",
		slog.String("user_id", u.ID),
		slog.String("status", string(u.Status)),
	)
	return u, nil
}

// List возвращает всех пользователей.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return users, nil
}

func (s *UserService) issue(u *model.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return &AuthResult{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

// hashPassword проверяет длину нового пароля и возвращает bcrypt-хэш.
func hashPassword(password string) (string, error) {
	switch {
	case len(password) < minPasswordLen:
		return "", validationError(&intake.ValidationError{Message: MsgPasswordTooShort})
	case len(password) > maxPasswordLen:
		return "", validationError(&intake.ValidationError{Message: MsgPasswordTooLong})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return string(hash), nil
}

func mapUserRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
