package service

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/bigkaa/shipdesk/internal/domain/model"
	"github.com/bigkaa/shipdesk/internal/repository"
	"github.com/bigkaa/shipdesk/internal/storage"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- mockContactRepo ---

type mockContactRepo struct {
	createFn           func(ctx context.Context, c *model.Contact) error
	listFn             func(ctx context.Context) ([]*model.Contact, error)
	getByIDFn          func(ctx context.Context, id string) (*model.Contact, error)
	updateFn           func(ctx context.Context, id string, patch *model.ContactPatch) (*model.Contact, error)
	updateStatusFn     func(ctx context.Context, id string, status model.Status, nextAction *string) (*model.Contact, error)
	appendAttachmentFn func(ctx context.Context, id, path string) error
	deleteFn           func(ctx context.Context, id string) error
}

func (m *mockContactRepo) Create(ctx context.Context, c *model.Contact) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	c.ID = "c-1"
	return nil
}

func (m *mockContactRepo) List(ctx context.Context) ([]*model.Contact, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Contact{}, nil
}

func (m *mockContactRepo) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockContactRepo) Update(ctx context.Context, id string, patch *model.ContactPatch) (*model.Contact, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return nil, repository.ErrNotFound
}

func (m *mockContactRepo) UpdateStatus(ctx context.Context, id string, status model.Status, nextAction *string) (*model.Contact, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status, nextAction)
	}
	return &model.Contact{ID: id, Status: status, NextAction: nextAction}, nil
}

func (m *mockContactRepo) AppendAttachment(ctx context.Context, id, path string) error {
	if m.appendAttachmentFn != nil {
		return m.appendAttachmentFn(ctx, id, path)
	}
	return nil
}

func (m *mockContactRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// --- mockUserRepo ---

type mockUserRepo struct {
	createFn         func(ctx context.Context, u *model.User) error
	getByIDFn        func(ctx context.Context, id string) (*model.User, error)
	getByUsernameFn  func(ctx context.Context, username string) (*model.User, error)
	listFn           func(ctx context.Context) ([]*model.User, error)
	updatePasswordFn func(ctx context.Context, id, passwordHash string) error
	updateStatusFn   func(ctx context.Context, id string, status model.UserStatus) (*model.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	u.ID = "u-1"
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.User{}, nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, passwordHash)
	}
	return nil
}

func (m *mockUserRepo) UpdateStatus(ctx context.Context, id string, status model.UserStatus) (*model.User, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil, repository.ErrNotFound
}

// --- mockStore ---

type mockStore struct {
	saveFn   func(contactID, originalName string, r io.Reader) (*storage.SaveResult, error)
	deleteFn func(publicPath string) error
	removed  []string
}

func (m *mockStore) Save(contactID, originalName string, r io.Reader) (*storage.SaveResult, error) {
	if m.saveFn != nil {
		return m.saveFn(contactID, originalName, r)
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, err
	}
	name := storage.SanitizeName(originalName)
	return &storage.SaveResult{
		RelativePath: storage.URLPrefix + "contacts/" + contactID + "/1700000000000_" + name,
		FileName:     name,
		Size:         n,
	}, nil
}

func (m *mockStore) Delete(publicPath string) error {
	m.removed = append(m.removed, publicPath)
	if m.deleteFn != nil {
		return m.deleteFn(publicPath)
	}
	return nil
}

func (m *mockStore) RemoveContact(contactID string) error {
	m.removed = append(m.removed, contactID)
	return nil
}

// --- mockCaptcha, mockNotifier, mockTokens, mockInvalidator ---

type mockCaptcha struct {
	verifyFn func(ctx context.Context, token string) (bool, error)
}

func (m *mockCaptcha) Verify(ctx context.Context, token string) (bool, error) {
	return m.verifyFn(ctx, token)
}

type mockNotifier struct {
	sent []*model.Contact
	err  error
}

func (m *mockNotifier) ContactReceived(_ context.Context, c *model.Contact) error {
	m.sent = append(m.sent, c)
	return m.err
}
