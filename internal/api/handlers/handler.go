// handler.go — обработчики HTTP API shipdesk.
// Разбирают запрос, делегируют в сервисный слой и переводят ошибки
// сервисов в ответы единого конверта.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"

	apierrors "github.com/bigkaa/shipdesk/internal/api/errors"
	"github.com/bigkaa/shipdesk/internal/domain/intake"
	"github.com/bigkaa/shipdesk/internal/domain/lifecycle"
	"github.com/bigkaa/shipdesk/internal/domain/model"
	"github.com/bigkaa/shipdesk/internal/service"
)

// maxFormBody — предел тела запроса формы заявки и JSON-запросов.
const maxFormBody = 1 << 20

// Contacts — операции над заявками.
type Contacts interface {
	Create(ctx context.Context, p intake.Payload) (*model.Contact, error)
	CreateLegacy(ctx context.Context, p intake.Payload) (*model.Contact, error)
	List(ctx context.Context) ([]*model.Contact, error)
	Get(ctx context.Context, id string) (*model.Contact, error)
	Update(ctx context.Context, id string, p intake.Payload) (*model.Contact, error)
	ChangeStatus(ctx context.Context, id string, change lifecycle.Change) (*model.Contact, error)
	Delete(ctx context.Context, id string) error
}

// Attachments — загрузка вложений.
type Attachments interface {
	Upload(ctx context.Context, contactID string, file *service.UploadFile) (*service.UploadResult, error)
}

// Users — операции с учётными записями.
type Users interface {
	SignInAdmin(ctx context.Context, username, password string) (*service.AuthResult, error)
	SignUp(ctx context.Context, in service.SignUpInput) (*service.AuthResult, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	ResetPassword(ctx context.Context, userID, newPassword string) error
	ChangeStatus(ctx context.Context, userID, status string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
}

// Files — чтение сохранённых вложений.
type Files interface {
	Open(rel string) (*os.File, os.FileInfo, error)
}

// APIHandler — обработчик API shipdesk.
type APIHandler struct {
	contacts    Contacts
	attachments Attachments
	users       Users
	files       Files
	logger      *slog.Logger
}

// NewAPIHandler создаёт обработчик API.
func NewAPIHandler(
	contacts Contacts,
	attachments Attachments,
	users Users,
	files Files,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		contacts:    contacts,
		attachments: attachments,
		users:       users,
		files:       files,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// errBadBody — тело запроса не разобрано.
var errBadBody = errors.New(apierrors.MsgInvalidBody)

// decodeJSON читает JSON-тело запроса в dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}

// decodePayload читает заявку из JSON или из полей HTML-формы.
func decodePayload(w http.ResponseWriter, r *http.Request) (intake.Payload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: %w", errBadBody, err)
		}
		return intake.PayloadFromForm(r.PostForm), nil
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseMultipartForm(maxFormBody); err != nil {
			return nil, fmt.Errorf("%w: %w", errBadBody, err)
		}
		return intake.PayloadFromForm(r.MultipartForm.Value), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var p intake.Payload
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return intake.Payload{}, nil
		}
		return nil, fmt.Errorf("%w: %w", errBadBody, err)
	}
	if p == nil {
		p = intake.Payload{}
	}
	return p, nil
}

// writeError переводит ошибку сервисного слоя в ответ.
// Внутренние подробности клиенту не передаются, только в лог.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *intake.ValidationError
	var upload *service.UploadError

	switch {
	case errors.Is(err, errBadBody):
		apierrors.ValidationError(w, apierrors.MsgInvalidBody)
	case errors.As(err, &upload):
		apierrors.ValidationError(w, upload.Message)
	case errors.As(err, &validation):
		apierrors.ValidationError(w, validation.Message)
	case errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidNextAction),
		errors.Is(err, service.ErrCaptcha),
		errors.Is(err, service.ErrPasswordMismatch):
		apierrors.ValidationError(w, rootMessage(err))
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.WriteError(w, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Unauthorized(w)
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, service.ErrForbidden.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, service.ErrNotFound.Error())
	case errors.Is(err, service.ErrUserNotFound):
		apierrors.NotFound(w, service.ErrUserNotFound.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, service.ErrConflict.Error())
	default:
		h.logError(r, err)
		apierrors.InternalError(w)
	}
}

// rootMessage возвращает текст сентинела клиентской ошибки.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		service.ErrInvalidStatus, service.ErrInvalidNextAction,
		service.ErrCaptcha, service.ErrPasswordMismatch,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return apierrors.MsgInternal
}

func (h *APIHandler) logError(r *http.Request, err error) {
	h.logger.Error("Ошибка обработки запроса",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}
