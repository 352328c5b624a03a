// errors.go — ошибки бизнес-логики сервисного слоя.
// Текст ошибок, отдаваемых клиенту, задаётся на английском и не содержит деталей.
package service

import "errors"

var (
	// ErrValidation — заявка или параметры не прошли проверку.
	// Конкретное сообщение передаётся через *intake.ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized — нет принципала или он не администратор.
	ErrUnauthorized = errors.New("Unauthorized")
	// ErrForbidden — пользователь аутентифицирован, но не имеет прав.
	ErrForbidden = errors.New("You do not have administrator permissions")
	// ErrNotFound — заявка не найдена.
	ErrNotFound = errors.New("Contact not found")
	// ErrUserNotFound — пользователь не найден.
	ErrUserNotFound = errors.New("User not found")
	// ErrInvalidStatus — статус вне перечисления.
	ErrInvalidStatus = errors.New("Invalid status value")
	// ErrInvalidNextAction — nextAction не null и не "quote".
	ErrInvalidNextAction = errors.New("Invalid nextAction value")
	// ErrUpstream — сбой хранилища или внешнего сервиса.
	ErrUpstream = errors.New("An error occurred")
	// ErrCaptcha — проверка reCAPTCHA не пройдена.
	ErrCaptcha = errors.New("Captcha error")
	// ErrConflict — пользователь уже зарегистрирован.
	ErrConflict = errors.New("User already registered")
	// ErrInvalidCredentials — неверный логин или пароль.
	ErrInvalidCredentials = errors.New("Invalid credentials")
	// ErrPasswordMismatch — текущий пароль не совпадает.
	ErrPasswordMismatch = errors.New("The current password does not match")
)

// UploadError — отказ в загрузке вложения с сообщением для клиента.
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string {
	return e.Message
}

// Сообщения загрузки вложений.
const (
	MsgNoFile           = "No file provided"
	MsgContactIDMissing = "Contact ID is required"
	MsgInvalidFileType  = "Invalid file type. Only Excel, PDF, and image files are allowed."
	MsgFileTooLarge     = "File size exceeds 10MB limit."
)

// Сообщения операций с пользователями.
const (
	MsgCredentialsRequired = "Username and password are required"
	MsgSignUpRequired      = "Email and password are required"
	MsgPasswordsRequired   = "Current and new password are required"
	MsgPasswordTooShort    = "Password must be at least 8 characters"
	MsgPasswordTooLong     = "Password must be at most 72 bytes"
	MsgUserIDMissing       = "User ID is required"
	MsgInvalidUserStatus   = "Invalid user status value"
)
