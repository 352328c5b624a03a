// contacts.go — сервис заявок: создание через проверку intake,
// административные операции и смена статуса.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/shipdesk/internal/domain/intake"
	"github.com/bigkaa/shipdesk/internal/domain/lifecycle"
	"github.com/bigkaa/shipdesk/internal/domain/model"
	"github.com/bigkaa/shipdesk/internal/repository"
)

// Формы заявки в метриках.
const (
	shapeService = "service"
	shapeGeneral = "general"
)

var contactsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sd_contacts_created_total",
	Help: "Количество сохранённых заявок по форме (service, general).",
}, []string{"shape"})

// CaptchaVerifier — проверка токена reCAPTCHA.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// ContactNotifier — уведомление о новой заявке.
type ContactNotifier interface {
	ContactReceived(ctx context.Context, c *model.Contact) error
}

// AttachmentRemover — удаление файлов вложений заявки.
type AttachmentRemover interface {
	RemoveContact(contactID string) error
}

// ContactService — операции над заявками.
type ContactService struct {
	repo     repository.ContactRepository
	captcha  CaptchaVerifier
	notifier ContactNotifier
	files    AttachmentRemover
	logger   *slog.Logger
}

// NewContactService создаёт сервис заявок.
// captcha, notifier и files могут быть nil: тогда legacy-создание отклоняется,
// уведомления не отправляются, файлы при удалении заявки остаются на диске.
func NewContactService(
	repo repository.ContactRepository,
	captcha CaptchaVerifier,
	notifier ContactNotifier,
	files AttachmentRemover,
	logger *slog.Logger,
) *ContactService {
	return &ContactService{
		repo:     repo,
		captcha:  captcha,
		notifier: notifier,
		files:    files,
		logger:   logger.With(slog.String("component", "contact_service")),
	}
}

// Create проверяет Payload и сохраняет заявку со статусом pending.
func (s *ContactService) Create(ctx context.Context, p intake.Payload) (*model.Contact, error) {
	sub, err := intake.Parse(p)
	if err != nil {
		return nil, validationError(err)
	}
	return s.create(ctx, sub)
}

// CreateLegacy — создание через старую форму обращения: перед проверкой
// полей требуется действительный токен reCAPTCHA (поле token).
func (s *ContactService) CreateLegacy(ctx context.Context, p intake.Payload) (*model.Contact, error) {
	sub, err := intake.Parse(p)
	if err != nil {
		return nil, validationError(err)
	}

	if s.captcha == nil {
		s.logger.Warn("Legacy-создание отклонено: reCAPTCHA не настроена")
		return nil, ErrCaptcha
	}
	ok, err := s.captcha.Verify(ctx, sub.Token)
	if err != nil {
		s.logger.Error("Ошибка проверки reCAPTCHA", slog.String("error", err.Error()))
		return nil, ErrCaptcha
	}
	if !ok {
		return nil, ErrCaptcha
	}

	return s.create(ctx, sub)
}

func (s *ContactService) create(ctx context.Context, sub *intake.Submission) (*model.Contact, error) {
	contact, err := sub.Validate()
	if err != nil {
		return nil, validationError(err)
	}

	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	shape := shapeGeneral
	if sub.IsServiceRequest() {
		shape = shapeService
	}
	contactsCreatedTotal.WithLabelValues(shape).Inc()

	s.logger.Info("Заявка создана",
		slog.String("contact_id", contact.ID),
		slog.String("shape", shape),
		slog.Int("items", len(contact.Items)),
	)

	s.notify(ctx, contact)
	return contact, nil
}

// notify отправляет уведомление; ошибка только логируется.
func (s *ContactService) notify(ctx context.Context, c *model.Contact) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ContactReceived(ctx, c); err != nil {
		s.logger.Warn("Не удалось отправить уведомление о заявке",
			slog.String("contact_id", c.ID),
			slog.String("error", err.Error()),
		)
	}
}

// List возвращает все заявки, новые первыми.
func (s *ContactService) List(ctx context.Context) ([]*model.Contact, error) {
	contacts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return contacts, nil
}

// Get возвращает заявку по ID.
func (s *ContactService) Get(ctx context.Context, id string) (*model.Contact, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return c, nil
}

// Update применяет частичное обновление. Если в Payload переданы
// status или nextAction, они проходят те же правила, что и ChangeStatus.
func (s *ContactService) Update(ctx context.Context, id string, p intake.Payload) (*model.Contact, error) {
	patch, err := intake.ParsePatch(p)
	if err != nil {
		return nil, validationError(err)
	}
	change, err := changeFromPayload(p)
	if err != nil {
		return nil, err
	}

	// Статус проверяется до записи полей, чтобы не применять обновление частично
	var current *model.Contact
	var next lifecycle.Result
	if !change.Empty() {
		current, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, mapRepoError(err)
		}
		next, err = lifecycle.Resolve(resultOf(current), change)
		if err != nil {
			return nil, lifecycleError(err)
		}
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if current != nil {
		updated, err = s.repo.UpdateStatus(ctx, id, next.Status, next.NextAction)
		if err != nil {
			return nil, mapRepoError(err)
		}
	}

	s.logger.Info("Заявка обновлена", slog.String("contact_id", id))
	return updated, nil
}

// ChangeStatus меняет статус и/или nextAction заявки.
// Статус completed всегда сбрасывает nextAction. Повторный вызов
// с теми же аргументами даёт тот же результат.
func (s *ContactService) ChangeStatus(ctx context.Context, id string, change lifecycle.Change) (*model.Contact, error) {
	if id == "" {
		return nil, validationError(&intake.ValidationError{Message: MsgContactIDMissing})
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}

	next, err := lifecycle.Resolve(resultOf(current), change)
	if err != nil {
		return nil, lifecycleError(err)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, next.Status, next.NextAction)
	if err != nil {
		return nil, mapRepoError(err)
	}

	s.logger.Info("Статус заявки изменён",
		slog.String("contact_id", id),
		slog.String("status", string(next.Status)),
		slog.Bool("next_action", next.NextAction != nil),
	)
	return updated, nil
}

// Delete удаляет заявку. Файлы вложений удаляются после записи; ошибка удаления файлов только логируется.
func (s *ContactService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError(err)
	}

	if s.files != nil {
		if err := s.files.RemoveContact(id); err != nil {
			s.logger.Warn("Не удалось удалить вложения заявки",
				slog.String("contact_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Заявка удалена", slog.String("contact_id", id))
	return nil
}

// changeFromPayload извлекает status/nextAction из Payload обновления.
// Пустые status и nextAction игнорируются: сбросить nextAction можно
// только через смену статуса.
func changeFromPayload(p intake.Payload) (lifecycle.Change, error) {
	var change lifecycle.Change

	if raw, ok := p["status"]; ok && raw != nil {
		st, isStr := raw.(string)
		if !isStr {
			return change, ErrInvalidStatus
		}
		if st != "" {
			change.Status = &st
		}
	}

	if raw, ok := p["nextAction"]; ok && raw != nil {
		v, isStr := raw.(string)
		if !isStr {
			return change, ErrInvalidNextAction
		}
		if strings.TrimSpace(v) != "" {
			change.NextAction = lifecycle.NextActionOf(&v)
		}
	}
	return change, nil
}

func resultOf(c *model.Contact) lifecycle.Result {
	return lifecycle.Result{Status: c.Status, NextAction: c.NextAction}
}

// validationError оборачивает *intake.ValidationError в ErrValidation,
// сохраняя сообщение для клиента.
func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func lifecycleError(err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidStatus):
		return ErrInvalidStatus
	case errors.Is(err, lifecycle.ErrInvalidNextAction):
		return ErrInvalidNextAction
	}
	return err
}

// mapRepoError переводит ошибки репозитория в ошибки сервиса.
func mapRepoError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
