package model

import "time"

// UserStatus — состояние учётной записи.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserDisabled UserStatus = "disabled"
)

// User — учётная запись (username совпадает с email при регистрации).
type User struct {
	// ID — UUID записи
	ID string
	// Username — логин, по нему выполняется вход
	Username string
	Email    string
	// PasswordHash — bcrypt-хэш, наружу не отдаётся
	PasswordHash string
	FirstName    string
	LastName     string
	// Roles — набор ролей (см. пакет rbac)
	Roles     []string
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName возвращает «Имя Фамилия» либо username, если имя не задано.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}
