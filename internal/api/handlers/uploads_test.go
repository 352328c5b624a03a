package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/bigkaa/shipdesk/internal/service"
	"github.com/bigkaa/shipdesk/internal/storage"
)

// multipartBody собирает тело формы загрузки. content == nil — без файла.
func multipartBody(t *testing.T, contactID, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if contactID != "" {
		if err := mw.WriteField("contactId", contactID); err != nil {
			t.Fatal(err)
		}
	}
	if content != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadAttachment(t *testing.T) {
	var gotID string
	var gotFile service.UploadFile
	var gotContent string
	h := newTestHandler(testDeps{attachments: &mockAttachments{
		uploadFn: func(_ context.Context, contactID string, file *service.UploadFile) (*service.UploadResult, error) {
			gotID = contactID
			gotFile = *file
			b, _ := io.ReadAll(file.Content)
			gotContent = string(b)
			return &service.UploadResult{
				FilePath: "/uploads/contacts/c-1/1700000000000_invoice.pdf",
				FileName: "invoice.pdf",
				FileSize: 8,
				FileType: "application/pdf",
			}, nil
		},
	}})

	body, ct := multipartBody(t, "c-1", "invoice.pdf", "application/pdf", []byte("pdf-data"))
	r := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	r.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.UploadAttachment(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if gotID != "c-1" || gotFile.Name != "invoice.pdf" || gotFile.ContentType != "application/pdf" || gotFile.Size != 8 {
		t.Errorf("id = %q, file = %+v", gotID, gotFile)
	}
	if gotContent != "pdf-data" {
		t.Errorf("content = %q", gotContent)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"success":  true,
		"filePath": "/uploads/contacts/c-1/1700000000000_invoice.pdf",
		"fileName": "invoice.pdf",
		"fileSize": float64(8),
		"fileType": "application/pdf",
	}
	for key, v := range want {
		if resp[key] != v {
			t.Errorf("%s = %v, ожидали %v", key, resp[key], v)
		}
	}
	if _, ok := resp["data"]; ok {
		t.Error("результат загрузки не должен быть вложен в data")
	}
}

func TestUploadAttachment_NoFile(t *testing.T) {
	var gotNil bool
	h := newTestHandler(testDeps{attachments: &mockAttachments{
		uploadFn: func(_ context.Context, _ string, file *service.UploadFile) (*service.UploadResult, error) {
			gotNil = file == nil
			return nil, &service.UploadError{Message: service.MsgNoFile}
		},
	}})

	body, ct := multipartBody(t, "c-1", "", "", nil)
	r := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	r.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.UploadAttachment(rec, r)

	assertError(t, rec, http.StatusBadRequest, service.MsgNoFile)
	if !gotNil {
		t.Error("сервис должен получить nil вместо файла")
	}
}

func TestUploadAttachment_NotMultipart(t *testing.T) {
	called := false
	h := newTestHandler(testDeps{attachments: &mockAttachments{
		uploadFn: func(context.Context, string, *service.UploadFile) (*service.UploadResult, error) {
			called = true
			return nil, nil
		},
	}})

	rec := httptest.NewRecorder()
	h.UploadAttachment(rec, jsonRequest(http.MethodPost, "/api/uploads", `{"file":"x"}`))

	assertError(t, rec, http.StatusBadRequest, service.MsgNoFile)
	if called {
		t.Error("сервис вызван без multipart-формы")
	}
}

func TestUploadAttachment_TooLarge(t *testing.T) {
	h := newTestHandler(testDeps{})

	content := bytes.Repeat([]byte("a"), service.MaxUploadSize+multipartOverhead+1)
	body, ct := multipartBody(t, "c-1", "big.pdf", "application/pdf", content)
	r := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	r.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.UploadAttachment(rec, r)

	assertError(t, rec, http.StatusBadRequest, service.MsgFileTooLarge)
}

func TestUploadAttachment_StorageFailure(t *testing.T) {
	h := newTestHandler(testDeps{attachments: &mockAttachments{
		uploadFn: func(context.Context, string, *service.UploadFile) (*service.UploadResult, error) {
			return nil, fmt.Errorf("%w: %w", service.ErrUpstream, errors.New("disk full"))
		},
	}})

	body, ct := multipartBody(t, "c-1", "a.pdf", "application/pdf", []byte("x"))
	r := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	r.Header.Set("Content-Type", ct)

	rec := httptest.NewRecorder()
	h.UploadAttachment(rec, r)

	assertError(t, rec, http.StatusInternalServerError, "An error occurred")
}

func TestServeUpload(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "1700000000000_invoice.pdf")
	if err := os.WriteFile(full, []byte("pdf-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	var gotRel string
	h := newTestHandler(testDeps{files: &mockFiles{
		openFn: func(rel string) (*os.File, os.FileInfo, error) {
			gotRel = rel
			f, err := os.Open(full)
			if err != nil {
				return nil, nil, err
			}
			info, err := f.Stat()
			return f, info, err
		},
	}})

	rel := "contacts/c-1/1700000000000_invoice.pdf"
	r := withURLParams(httptest.NewRequest(http.MethodGet, "/uploads/"+rel, nil), map[string]string{"*": rel})
	rec := httptest.NewRecorder()
	h.ServeUpload(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if gotRel != rel {
		t.Errorf("rel = %q", gotRel)
	}
	if rec.Body.String() != "pdf-data" {
		t.Errorf("body = %q", rec.Body.String())
	}
	headers := map[string]string{
		"Content-Type":        "application/pdf",
		"Content-Length":      "8",
		"Content-Disposition": `inline; filename="1700000000000_invoice.pdf"`,
	}
	for key, want := range headers {
		if got := rec.Header().Get(key); got != want {
			t.Errorf("%s = %q, ожидали %q", key, got, want)
		}
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("Cache-Control не задан")
	}
}

func TestServeUpload_NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"нет файла", storage.ErrNotFound},
		{"выход за корень", storage.ErrInvalidPath},
		{"ошибка ФС", errors.New("permission denied")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(testDeps{files: &mockFiles{
				openFn: func(string) (*os.File, os.FileInfo, error) { return nil, nil, tt.err },
			}})

			r := withURLParams(httptest.NewRequest(http.MethodGet, "/uploads/x", nil), map[string]string{"*": "x"})
			rec := httptest.NewRecorder()
			h.ServeUpload(rec, r)

			assertError(t, rec, http.StatusNotFound, MsgFileNotFound)
		})
	}
}
