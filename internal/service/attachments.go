// attachments.go — загрузка вложений и привязка их к заявке.
// Привязка выполняется по возможности: если заявку обновить не удалось,
// файл остаётся на диске, а загрузка считается успешной.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/shipdesk/internal/repository"
	"github.com/bigkaa/shipdesk/internal/storage"
)

// MaxUploadSize — максимальный размер вложения (10 MiB).
const MaxUploadSize = 10 << 20

var attachmentsUploadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sd_attachments_uploaded_total",
	Help: "Количество загрузок вложений по результату (linked, unlinked, rejected, failed).",
}, []string{"result"})

// AttachmentStore — хранилище файлов вложений.
type AttachmentStore interface {
	Save(contactID, originalName string, r io.Reader) (*storage.SaveResult, error)
	Delete(publicPath string) error
}

// UploadFile — загружаемый файл.
type UploadFile struct {
	// Name — исходное имя файла
	Name string
	// ContentType — заявленный клиентом MIME-тип
	ContentType string
	// Size — заявленный размер в байтах
	Size    int64
	Content io.Reader
}

// UploadResult — результат загрузки.
type UploadResult struct {
	FilePath string `json:"filePath"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

// AttachmentService — загрузка вложений заявок.
type AttachmentService struct {
	store  AttachmentStore
	repo   repository.ContactRepository
	logger *slog.Logger
}

// NewAttachmentService создаёт сервис вложений.
func NewAttachmentService(store AttachmentStore, repo repository.ContactRepository, logger *slog.Logger) *AttachmentService {
	return &AttachmentService{
		store:  store,
		repo:   repo,
		logger: logger.With(slog.String("component", "attachment_service")),
	}
}

// Upload проверяет файл, сохраняет его и добавляет путь в заявку.
func (s *AttachmentService) Upload(ctx context.Context, contactID string, file *UploadFile) (*UploadResult, error) {
	if file == nil || file.Content == nil {
		return nil, s.reject(MsgNoFile)
	}
	if contactID == "" {
		return nil, s.reject(MsgContactIDMissing)
	}
	if !storage.AllowedUploadType(file.ContentType) {
		return nil, s.reject(MsgInvalidFileType)
	}
	if file.Size > MaxUploadSize {
		return nil, s.reject(MsgFileTooLarge)
	}

	// Заявленный размер может не совпадать с фактическим
	res, err := s.store.Save(contactID, file.Name, io.LimitReader(file.Content, MaxUploadSize+1))
	if err != nil {
		attachmentsUploadedTotal.WithLabelValues("failed").Inc()
		s.logger.Error("Ошибка сохранения вложения",
			slog.String("contact_id", contactID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if res.Size > MaxUploadSize {
		if err := s.store.Delete(res.RelativePath); err != nil {
			s.logger.Warn("Не удалось удалить превышающий лимит файл",
				slog.String("path", res.RelativePath),
				slog.String("error", err.Error()),
			)
		}
		return nil, s.reject(MsgFileTooLarge)
	}

	result := "linked"
	if err := s.repo.AppendAttachment(ctx, contactID, res.RelativePath); err != nil {
		result = "unlinked"
		level := slog.LevelError
		if errors.Is(err, repository.ErrNotFound) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "Вложение сохранено, но не привязано к заявке",
			slog.String("contact_id", contactID),
			slog.String("path", res.RelativePath),
			slog.String("error", err.Error()),
		)
	}
	attachmentsUploadedTotal.WithLabelValues(result).Inc()

	s.logger.Info("Вложение загружено",
		slog.String("contact_id", contactID),
		slog.String("path", res.RelativePath),
		slog.Int64("size", res.Size),
	)

	return &UploadResult{
		FilePath: res.RelativePath,
		FileName: res.FileName,
		FileSize: res.Size,
		FileType: file.ContentType,
	}, nil
}

func (s *AttachmentService) reject(msg string) error {
	attachmentsUploadedTotal.WithLabelValues("rejected").Inc()
	return &UploadError{Message: msg}
}
