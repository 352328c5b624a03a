// uploads.go — загрузка вложений заявок и раздача сохранённых файлов.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/shipdesk/internal/api/errors"
	"github.com/bigkaa/shipdesk/internal/service"
	"github.com/bigkaa/shipdesk/internal/storage"
)

// Запас на поля формы и служебные заголовки multipart сверх размера файла.
const multipartOverhead = 1 << 20

// MsgFileNotFound — запрошенный файл вложения отсутствует.
const MsgFileNotFound = "File not found"

// uploadResponse — ответ загрузки: поля результата на верхнем уровне.
type uploadResponse struct {
	Success bool `json:"success"`
	*service.UploadResult
}

// UploadAttachment — POST /api/uploads.
// multipart/form-data: file — содержимое, contactId — ID заявки.
func (h *APIHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, &service.UploadError{Message: service.MsgFileTooLarge})
			return
		}
		h.writeError(w, r, &service.UploadError{Message: service.MsgNoFile})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	contactID := r.FormValue("contactId")

	var upload *service.UploadFile
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		upload = &service.UploadFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Content:     file,
		}
	case !errors.Is(err, http.ErrMissingFile):
		h.logger.Warn("Ошибка чтения файла из формы", slog.String("error", err.Error()))
	}

	res, err := h.attachments.Upload(r.Context(), contactID, upload)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.WriteBody(w, http.StatusOK, uploadResponse{Success: true, UploadResult: res})
}

// ServeUpload — GET /uploads/*.
// Тип содержимого определяется по расширению; файлы неизменяемы и кэшируются.
func (h *APIHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")

	f, info, err := h.files.Open(rel)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrInvalidPath) {
			h.logError(r, err)
		}
		apierrors.NotFound(w, MsgFileNotFound)
		return
	}
	defer f.Close()

	name := path.Base(rel)
	w.Header().Set("Content-Type", storage.ContentTypeByName(name))
	w.Header().Set("Content-Disposition", `inline; filename="`+url.PathEscape(name)+`"`)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))

	http.ServeContent(w, r, name, info.ModTime(), f)
}
