// Пакет intake — проверка и нормализация заявок с публичных форм.
//
// Поддерживаются две формы заявки:
//   - заявка на обслуживание судна (задан fullName): реквизиты судна,
//     комментарий и либо вложения, либо хотя бы одна полная позиция;
//   - общее обращение (fullName пуст): достаточно message, request или comment.
//
// Пакет не выполняет ввода-вывода.
package intake

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

// MsgRequiredFields — сообщение при нарушении правил обязательных полей.
const MsgRequiredFields = "Please fill all required fields. You must either provide complete items (code, description, unit, quantity) or upload a file."

// Сообщения проверок формата.
const (
	MsgInvalidEmail          = "Invalid email address"
	MsgInvalidURL            = "Invalid URL"
	MsgInvalidVesselCategory = "Invalid vessel category"
	MsgInvalidItems          = "Invalid items"
)

// ValidationError — первая обнаруженная ошибка проверки.
// Message возвращается клиенту без изменений.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Payload — сырые данные формы (результат декодирования JSON или формы).
type Payload map[string]any

// Attachments — поле attachments в одном из двух допустимых видов.
// List != nil означает, что пришёл массив.
type Attachments struct {
	Single string
	List   []string
}

// Values возвращает вложения в виде массива.
func (a Attachments) Values() []string {
	if a.List != nil {
		return a.List
	}
	if notBlank(a.Single) {
		return []string{a.Single}
	}
	return nil
}

// Submission — типизированное представление Payload до проверки бизнес-правил.
type Submission struct {
	FullName, FirstName, LastName string
	Email, Phone                  string
	Message, Request, Comment     string
	Subject, Procedures           string
	IPAddress, URL                string
	SendInformation               *bool

	Company, Vessel            string
	ArrivalDate, DepartureDate string
	Port                       string
	VesselCategory             string
	Agent                      string

	Items       []model.LineItem
	Attachments Attachments

	// Token — токен reCAPTCHA (только для устаревшего пути создания)
	Token string
}

// Validate проверяет заявку и возвращает нормализованную запись.
// При ошибке возвращается *ValidationError с первой найденной проблемой.
func Validate(p Payload) (*model.Contact, error) {
	s, err := Parse(p)
	if err != nil {
		return nil, err
	}
	return s.Validate()
}

// Validate применяет проверки формата, затем правила обязательных полей,
// и строит нормализованную запись.
func (s *Submission) Validate() (*model.Contact, error) {
	if err := s.checkFormats(); err != nil {
		return nil, err
	}

	arrival, err := parseDateField("arrivalDate", s.ArrivalDate)
	if err != nil {
		return nil, err
	}
	departure, err := parseDateField("departureDate", s.DepartureDate)
	if err != nil {
		return nil, err
	}

	if !s.satisfiesRequired() {
		return nil, invalid(MsgRequiredFields)
	}

	return s.normalize(arrival, departure), nil
}

// IsServiceRequest — заявка на обслуживание судна (задан fullName).
func (s *Submission) IsServiceRequest() bool {
	return notBlank(s.FullName)
}

func (s *Submission) checkFormats() error {
	if s.Email != "" && !ValidEmail(s.Email) {
		return invalid(MsgInvalidEmail)
	}
	if s.URL != "" && !ValidURL(s.URL) {
		return invalid(MsgInvalidURL)
	}
	if s.VesselCategory != "" && !model.VesselCategory(s.VesselCategory).Valid() {
		return invalid(MsgInvalidVesselCategory)
	}
	return nil
}

// satisfiesRequired — правила обязательных полей для обеих форм заявки.
func (s *Submission) satisfiesRequired() bool {
	if !s.IsServiceRequest() {
		return notBlank(s.Message) || notBlank(s.Request) || notBlank(s.Comment)
	}

	// Без вложений нужна хотя бы одна полная позиция, и все позиции
	// должны быть заполнены целиком.
	if !HasAttachments(s.Attachments) {
		if !HasCompleteItem(s.Items) || !AllItemsConsistent(s.Items) {
			return false
		}
	}

	return notBlank(s.Company) &&
		notBlank(s.Vessel) &&
		s.ArrivalDate != "" &&
		s.DepartureDate != "" &&
		notBlank(s.Port) &&
		s.VesselCategory != "" &&
		notBlank(s.Comment)
}

func (s *Submission) normalize(arrival, departure *time.Time) *model.Contact {
	c := &model.Contact{
		FullName:        s.FullName,
		FirstName:       s.FirstName,
		LastName:        s.LastName,
		Email:           s.Email,
		Phone:           s.Phone,
		Message:         s.Message,
		Request:         s.Request,
		Comment:         s.Comment,
		Subject:         s.Subject,
		Procedures:      s.Procedures,
		IPAddress:       s.IPAddress,
		URL:             s.URL,
		SendInformation: s.SendInformation,
		Company:         s.Company,
		Vessel:          s.Vessel,
		ArrivalDate:     arrival,
		DepartureDate:   departure,
		Port:            s.Port,
		VesselCategory:  model.VesselCategory(s.VesselCategory),
		Agent:           s.Agent,
		Attachments:     s.Attachments.Values(),
		Status:          model.StatusPending,
	}

	// Полностью пустые строки позиций из формы не сохраняются,
	// идентификаторы позиций присваивает хранилище
	for _, it := range s.Items {
		if !it.Blank() {
			it.ID = ""
			c.Items = append(c.Items, it)
		}
	}

	return c
}

// dateLayouts — принимаемые форматы дат.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
	time.RFC1123Z,
	time.RFC1123,
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseDate разбирает дату в одном из допустимых форматов.
// Даты без часового пояса считаются UTC, дата через слэш читается как MM/DD/YYYY.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("неизвестный формат даты: %q", raw)
}

func parseDateField(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return nil, invalid("Invalid " + field)
	}
	return &t, nil
}

// ValidEmail проверяет адрес вида local@domain без отображаемого имени.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}

// ValidURL проверяет абсолютный URL со схемой и хостом.
func ValidURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
