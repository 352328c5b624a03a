package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

// pendingAttachment — маркер «файл ещё загружается», который форма
// кладёт в attachments до фактической загрузки.
const pendingAttachment = "pending"

// ContactRepository — хранилище заявок.
type ContactRepository interface {
	// Create сохраняет новую заявку, присваивает ID записи и позициям.
	Create(ctx context.Context, c *model.Contact) error
	// List возвращает все заявки, новые первыми.
	List(ctx context.Context) ([]*model.Contact, error)
	// GetByID возвращает заявку по ID.
	GetByID(ctx context.Context, id string) (*model.Contact, error)
	// Update применяет частичное обновление, незаданные поля не трогает.
	Update(ctx context.Context, id string, patch *model.ContactPatch) (*model.Contact, error)
	// UpdateStatus записывает статус и nextAction.
	UpdateStatus(ctx context.Context, id string, status model.Status, nextAction *string) (*model.Contact, error)
	// AppendAttachment добавляет путь к файлу в список вложений.
	AppendAttachment(ctx context.Context, id, path string) error
	// Delete удаляет заявку безвозвратно.
	Delete(ctx context.Context, id string) error
}

// contactColumns — колонки для SELECT/RETURNING.
// NULL в текстовых колонках читается как пустая строка.
const contactColumns = `id::text,
	COALESCE(full_name, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
	COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(message, ''), COALESCE(request, ''), COALESCE(comment, ''),
	COALESCE(subject, ''), COALESCE(procedures, ''), COALESCE(ip_address, ''), COALESCE(url, ''),
	send_information,
	COALESCE(company, ''), COALESCE(vessel, ''), arrival_date, departure_date,
	COALESCE(port, ''), COALESCE(vessel_category, ''), COALESCE(agent, ''),
	items, COALESCE(code, '{}'), COALESCE(description, '{}'), COALESCE(unit, '{}'), COALESCE(quantity, '{}'),
	attachments, status, next_action, created_at, updated_at`

// contactRepo — реализация ContactRepository.
type contactRepo struct {
	db DBTX
}

// NewContactRepository создаёт репозиторий заявок.
func NewContactRepository(db DBTX) ContactRepository {
	return &contactRepo{db: db}
}

func (r *contactRepo) Create(ctx context.Context, c *model.Contact) error {
	c.ID = uuid.NewString()
	for i := range c.Items {
		if c.Items[i].ID == "" {
			c.Items[i].ID = uuid.NewString()
		}
	}
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	if c.Attachments == nil {
		c.Attachments = []string{}
	}

	items, err := encodeItems(c.Items)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contacts (id, full_name, first_name, last_name, email, phone,
			message, request, comment, subject, procedures, ip_address, url, send_information,
			company, vessel, arrival_date, departure_date, port, vessel_category, agent,
			items, attachments, status, next_action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		c.ID, nullable(c.FullName), nullable(c.FirstName), nullable(c.LastName),
		nullable(c.Email), nullable(c.Phone),
		nullable(c.Message), nullable(c.Request), nullable(c.Comment),
		nullable(c.Subject), nullable(c.Procedures), nullable(c.IPAddress), nullable(c.URL),
		c.SendInformation,
		nullable(c.Company), nullable(c.Vessel), c.ArrivalDate, c.DepartureDate,
		nullable(c.Port), nullable(string(c.VesselCategory)), nullable(c.Agent),
		items, c.Attachments, string(c.Status), c.NextAction,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *contactRepo) List(ctx context.Context) ([]*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	result := []*model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *contactRepo) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`

	c, err := scanContact(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return c, nil
}

func (r *contactRepo) Update(ctx context.Context, id string, patch *model.ContactPatch) (*model.Contact, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	if patch == nil || patch.Empty() {
		return r.GetByID(ctx, id)
	}

	sets, args, err := buildContactSet(patch, 2)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`UPDATE contacts SET %s, updated_at = now()
		WHERE id = $1
		RETURNING %s`, strings.Join(sets, ", "), contactColumns)

	c, err := scanContact(r.db.QueryRow(ctx, query, append([]any{id}, args...)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления заявки: %w", err)
	}
	return c, nil
}

func (r *contactRepo) UpdateStatus(ctx context.Context, id string, status model.Status, nextAction *string) (*model.Contact, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `UPDATE contacts SET status = $2, next_action = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + contactColumns

	c, err := scanContact(r.db.QueryRow(ctx, query, id, string(status), nextAction))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления статуса заявки: %w", err)
	}
	return c, nil
}

// AppendAttachment читает текущий список и записывает его с новым путём.
// Чтение и запись не объединены в транзакцию: при параллельных загрузках
// в одну заявку одно из вложений может потеряться.
func (r *contactRepo) AppendAttachment(ctx context.Context, id, path string) error {
	if !validID(id) {
		return ErrNotFound
	}

	var current []string
	err := r.db.QueryRow(ctx, `SELECT attachments FROM contacts WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка чтения вложений заявки: %w", err)
	}

	next := slices.DeleteFunc(slices.Clone(current), func(s string) bool {
		return s == pendingAttachment
	})
	next = append(next, path)

	tag, err := r.db.Exec(ctx,
		`UPDATE contacts SET attachments = $2, updated_at = now() WHERE id = $1`, id, next)
	if err != nil {
		return fmt.Errorf("ошибка записи вложений заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *contactRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanContact читает строку contactColumns и приводит позиции
// к каноническому виду независимо от формата хранения.
func scanContact(row pgx.Row) (*model.Contact, error) {
	c := &model.Contact{}
	var (
		vesselCategory, status       string
		itemsJSON                    []byte
		code, description, unit, qty []string
		arrivalDate, departureDate   *time.Time
	)
	err := row.Scan(
		&c.ID,
		&c.FullName, &c.FirstName, &c.LastName,
		&c.Email, &c.Phone,
		&c.Message, &c.Request, &c.Comment,
		&c.Subject, &c.Procedures, &c.IPAddress, &c.URL,
		&c.SendInformation,
		&c.Company, &c.Vessel, &arrivalDate, &departureDate,
		&c.Port, &vesselCategory, &c.Agent,
		&itemsJSON, &code, &description, &unit, &qty,
		&c.Attachments, &status, &c.NextAction, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.VesselCategory = model.VesselCategory(vesselCategory)
	c.Status = model.Status(status)
	c.ArrivalDate = utc(arrivalDate)
	c.DepartureDate = utc(departureDate)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	c.Items, err = decodeItems(itemsJSON, code, description, unit, qty)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// decodeItems возвращает позиции из JSONB, а если его нет — из параллельных массивов.
func decodeItems(itemsJSON []byte, code, description, unit, qty []string) ([]model.LineItem, error) {
	if len(itemsJSON) > 0 && string(itemsJSON) != "null" {
		var items []model.LineItem
		if err := json.Unmarshal(itemsJSON, &items); err != nil {
			return nil, fmt.Errorf("некорректный JSON позиций: %w", err)
		}
		return items, nil
	}
	return model.ItemsFromColumns(code, description, unit, qty), nil
}

// encodeItems сериализует позиции в JSONB, пустой список хранится как NULL.
func encodeItems(items []model.LineItem) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации позиций: %w", err)
	}
	return b, nil
}

// buildContactSet строит SET-часть UPDATE из заданных полей патча.
func buildContactSet(p *model.ContactPatch, startArg int) ([]string, []any, error) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, startArg+len(args)))
		args = append(args, value)
	}

	strs := []struct {
		column string
		value  *string
	}{
		{"full_name", p.FullName}, {"first_name", p.FirstName}, {"last_name", p.LastName},
		{"email", p.Email}, {"phone", p.Phone},
		{"message", p.Message}, {"request", p.Request}, {"comment", p.Comment},
		{"subject", p.Subject}, {"procedures", p.Procedures},
		{"ip_address", p.IPAddress}, {"url", p.URL},
		{"company", p.Company}, {"vessel", p.Vessel}, {"port", p.Port}, {"agent", p.Agent},
	}
	for _, s := range strs {
		if s.value != nil {
			add(s.column, *s.value)
		}
	}

	if p.SendInformation != nil {
		add("send_information", *p.SendInformation)
	}
	if p.ArrivalDate != nil {
		add("arrival_date", *p.ArrivalDate)
	}
	if p.DepartureDate != nil {
		add("departure_date", *p.DepartureDate)
	}
	if p.VesselCategory != nil {
		add("vessel_category", string(*p.VesselCategory))
	}
	if p.Items != nil {
		for i := range p.Items {
			if p.Items[i].ID == "" {
				p.Items[i].ID = uuid.NewString()
			}
		}
		items, err := encodeItems(p.Items)
		if err != nil {
			return nil, nil, err
		}
		add("items", items)
		// После записи в каноническом виде устаревшие массивы не нужны
		sets = append(sets, "code = NULL", "description = NULL", "unit = NULL", "quantity = NULL")
	}
	if p.Attachments != nil {
		add("attachments", p.Attachments)
	}
	return sets, args, nil
}

// validID проверяет, что строка — UUID. Некорректный ID равносилен отсутствию записи.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

// nullable превращает пустую строку в NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
