// Пакет model — доменные модели shipdesk.
package model

import "time"

// Status — статус обработки заявки.
type Status string

// Допустимые статусы заявки. Переходы между ними не ограничены.
const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSpam      Status = "spam"
	StatusCompleted Status = "completed"
)

// Statuses — все статусы в порядке отображения.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusSpam, StatusCompleted}

// Valid проверяет, входит ли статус в перечисление.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSpam, StatusCompleted:
		return true
	}
	return false
}

// NextActionQuote — единственное допустимое значение nextAction.
const NextActionQuote = "quote"

// VesselCategory — категория судна в заявке на обслуживание.
type VesselCategory string

const (
	VesselFishing            VesselCategory = "Fishing"
	VesselCommercialMerchant VesselCategory = "Commercial Merchant"
	VesselCruise             VesselCategory = "Cruise"
	VesselMilitary           VesselCategory = "Military"
	VesselSpecial            VesselCategory = "Special"
)

// Valid проверяет, входит ли категория в перечисление.
func (c VesselCategory) Valid() bool {
	switch c {
	case VesselFishing, VesselCommercialMerchant, VesselCruise, VesselMilitary, VesselSpecial:
		return true
	}
	return false
}

// LineItem — позиция заявки (запчасть или услуга).
// Теги используются при хранении позиций в JSONB.
type LineItem struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Quantity    string `json:"quantity"`
}

// Contact — заявка с публичной формы.
// Пустая строка в опциональном поле означает «не задано».
type Contact struct {
	ID string

	// Данные отправителя
	FullName  string
	FirstName string
	LastName  string
	Email     string
	Phone     string

	// Свободный текст обращения (синонимы для обратной совместимости)
	Message string
	Request string
	Comment string

	Subject         string
	Procedures      string
	IPAddress       string
	URL             string
	SendInformation *bool

	// Заявка на обслуживание судна
	Company        string
	Vessel         string
	ArrivalDate    *time.Time
	DepartureDate  *time.Time
	Port           string
	VesselCategory VesselCategory
	Agent          string

	Items       []LineItem
	Attachments []string

	Status     Status
	NextAction *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContactPatch — частичное обновление заявки.
// nil означает «не менять»; пустые строки отбрасываются до построения патча.
type ContactPatch struct {
	FullName        *string
	FirstName       *string
	LastName        *string
	Email           *string
	Phone           *string
	Message         *string
	Request         *string
	Comment         *string
	Subject         *string
	Procedures      *string
	IPAddress       *string
	URL             *string
	SendInformation *bool
	Company         *string
	Vessel          *string
	ArrivalDate     *time.Time
	DepartureDate   *time.Time
	Port            *string
	VesselCategory  *VesselCategory
	Agent           *string
	Items           []LineItem
	Attachments     []string
}

// Empty сообщает, что патч не содержит ни одного изменения.
func (p *ContactPatch) Empty() bool {
	return p.FullName == nil && p.FirstName == nil && p.LastName == nil &&
		p.Email == nil && p.Phone == nil && p.Message == nil && p.Request == nil &&
		p.Comment == nil && p.Subject == nil && p.Procedures == nil && p.IPAddress == nil &&
		p.URL == nil && p.SendInformation == nil && p.Company == nil && p.Vessel == nil &&
		p.ArrivalDate == nil && p.DepartureDate == nil && p.Port == nil &&
		p.VesselCategory == nil && p.Agent == nil && p.Items == nil && p.Attachments == nil
}
