// Пакет storage — хранение вложений заявок на локальном диске.
// Файлы лежат в <root>/contacts/<contactID>/<unixMillis>_<имя>,
// наружу отдаются по относительному пути /uploads/contacts/<contactID>/<имя>.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// URLPrefix — префикс публичного пути к вложениям.
const URLPrefix = "/uploads/"

// ErrInvalidPath — путь выходит за пределы корня хранилища или некорректен.
var ErrInvalidPath = errors.New("некорректный путь к файлу")

// ErrNotFound — файл не найден.
var ErrNotFound = errors.New("файл не найден")

// LocalStorage — файлы вложений на локальной ФС.
type LocalStorage struct {
	// root — корневая директория (SD_UPLOADS_DIR)
	root string
	now  func() time.Time
}

// SaveResult — результат сохранения файла.
type SaveResult struct {
	// RelativePath — публичный путь, записываемый в заявку
	RelativePath string
	// FileName — очищенное исходное имя
	FileName string
	// Size — записано байт
	Size int64
}

// New создаёт хранилище, создавая корневую директорию при необходимости.
func New(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", root, err)
	}
	return &LocalStorage{root: root, now: time.Now}, nil
}

// Root возвращает корневую директорию хранилища.
func (s *LocalStorage) Root() string {
	return s.root
}

// Save записывает содержимое r в директорию заявки.
// Запись идёт во временный файл, затем fsync и rename; при ошибке временный файл удаляется.
func (s *LocalStorage) Save(contactID, originalName string, r io.Reader) (*SaveResult, error) {
	if !safeSegment(contactID) {
		return nil, ErrInvalidPath
	}

	dir := filepath.Join(s.root, "contacts", contactID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}

	name := SanitizeName(originalName)
	storedName := strconv.FormatInt(s.now().UnixMilli(), 10) + "_" + name
	fullPath := filepath.Join(dir, storedName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		RelativePath: URLPrefix + path.Join("contacts", contactID, storedName),
		FileName:     name,
		Size:         size,
	}, nil
}

// Open открывает файл по пути относительно корня (без префикса /uploads/).
// Пути с выходом за корень отклоняются. Вызывающий код закрывает файл.
func (s *LocalStorage) Open(rel string) (*os.File, os.FileInfo, error) {
	full, err := s.resolve(rel)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", rel, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка получения информации о файле %s: %w", rel, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

// Delete удаляет файл по публичному пути вида /uploads/contacts/<id>/<имя>.
// Отсутствие файла ошибкой не считается.
func (s *LocalStorage) Delete(publicPath string) error {
	full, err := s.resolve(strings.TrimPrefix(publicPath, URLPrefix))
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", publicPath, err)
	}
	return nil
}

// RemoveContact удаляет директорию вложений заявки целиком.
func (s *LocalStorage) RemoveContact(contactID string) error {
	if !safeSegment(contactID) {
		return ErrInvalidPath
	}
	if err := os.RemoveAll(filepath.Join(s.root, "contacts", contactID)); err != nil {
		return fmt.Errorf("ошибка удаления вложений заявки %s: %w", contactID, err)
	}
	return nil
}

// resolve переводит относительный путь в абсолютный внутри корня.
func (s *LocalStorage) resolve(rel string) (string, error) {
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// SanitizeName заменяет все символы кроме латиницы, цифр, точки и дефиса на '_'.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// safeSegment проверяет, что строка — одиночный безопасный сегмент пути.
func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && filepath.IsLocal(s)
}

// CheckReady проверяет, что корневая директория существует и доступна на запись.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *LocalStorage) CheckReady() (status string, message string) {
	info, err := os.Stat(s.root)
	if err != nil {
		return "fail", fmt.Sprintf("каталог вложений недоступен: %v", err)
	}
	if !info.IsDir() {
		return "fail", fmt.Sprintf("%s не является директорией", s.root)
	}

	probe, err := os.CreateTemp(s.root, ".ready-*")
	if err != nil {
		return "fail", fmt.Sprintf("каталог вложений недоступен на запись: %v", err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)

	return "ok", "каталог вложений доступен"
}
