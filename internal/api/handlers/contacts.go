// contacts.go — обработчики заявок: публичное создание, административные
// операции и смена статуса.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/shipdesk/internal/api/errors"
	"github.com/bigkaa/shipdesk/internal/domain/lifecycle"
	"github.com/bigkaa/shipdesk/internal/domain/model"
)

// itemView — позиция заявки в ответе API.
type itemView struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	Quantity    string `json:"quantity"`
}

// contactView — заявка в ответе API. Даты в RFC 3339 (UTC),
// незаданные необязательные поля опускаются; nextAction всегда присутствует.
type contactView struct {
	ID string `json:"id"`

	FullName  string `json:"fullName,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`

	Message         string `json:"message,omitempty"`
	Request         string `json:"request,omitempty"`
	Comment         string `json:"comment,omitempty"`
	Subject         string `json:"Subject,omitempty"`
	Procedures      string `json:"Procedures,omitempty"`
	IPAddress       string `json:"ipAddress,omitempty"`
	URL             string `json:"url,omitempty"`
	SendInformation *bool  `json:"sendInformation,omitempty"`

	Company        string `json:"company,omitempty"`
	Vessel         string `json:"vessel,omitempty"`
	ArrivalDate    string `json:"arrivalDate,omitempty"`
	DepartureDate  string `json:"departureDate,omitempty"`
	Port           string `json:"port,omitempty"`
	VesselCategory string `json:"vesselCategory,omitempty"`
	Agent          string `json:"agent,omitempty"`

	Items       []itemView `json:"items,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`

	Status     string  `json:"status"`
	NextAction *string `json:"nextAction"`

	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// newContactView приводит запись к плоскому виду для клиента.
func newContactView(c *model.Contact) contactView {
	v := contactView{
		ID:              c.ID,
		FullName:        c.FullName,
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		Email:           c.Email,
		Phone:           c.Phone,
		Message:         c.Message,
		Request:         c.Request,
		Comment:         c.Comment,
		Subject:         c.Subject,
		Procedures:      c.Procedures,
		IPAddress:       c.IPAddress,
		URL:             c.URL,
		SendInformation: c.SendInformation,
		Company:         c.Company,
		Vessel:          c.Vessel,
		ArrivalDate:     formatTimePtr(c.ArrivalDate),
		DepartureDate:   formatTimePtr(c.DepartureDate),
		Port:            c.Port,
		VesselCategory:  string(c.VesselCategory),
		Agent:           c.Agent,
		Attachments:     c.Attachments,
		Status:          string(c.Status),
		NextAction:      c.NextAction,
		CreatedAt:       formatTime(c.CreatedAt),
		UpdatedAt:       formatTime(c.UpdatedAt),
	}
	for _, it := range c.Items {
		v.Items = append(v.Items, itemView(it))
	}
	return v
}

func newContactViews(contacts []*model.Contact) []contactView {
	views := make([]contactView, 0, len(contacts))
	for _, c := range contacts {
		views = append(views, newContactView(c))
	}
	return views
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// CreateContact — POST /api/contacts.
// Публичное создание заявки (JSON или поля формы).
func (h *APIHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.contacts.Create(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.Created(w, newContactView(c))
}

// CreateContactLegacy — POST /api/contacts/legacy.
// Старая форма обращения; требует токен reCAPTCHA в поле token.
func (h *APIHandler) CreateContactLegacy(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.contacts.CreateLegacy(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.Created(w, newContactView(c))
}

// ListContacts — GET /api/admin/contacts.
func (h *APIHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.contacts.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.OK(w, newContactViews(contacts))
}

// GetContact — GET /api/admin/contacts/{id}.
func (h *APIHandler) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.OK(w, newContactView(c))
}

// UpdateContact — PATCH /api/admin/contacts/{id}.
// Значения null и "" игнорируются.
func (h *APIHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	p, err := decodePayload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	c, err := h.contacts.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.OK(w, newContactView(c))
}

// ChangeContactStatus — PUT /api/admin/contacts/{id}/status.
// Тело: {"status": "...", "nextAction": "quote" | null}, оба поля необязательны.
func (h *APIHandler) ChangeContactStatus(w http.ResponseWriter, r *http.Request) {
	var change lifecycle.Change
	if err := decodeJSON(w, r, &change); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.changeStatus(w, r, chi.URLParam(r, "id"), change)
}

// legacyStatusRequest — тело POST /api/contacts/status-change.
type legacyStatusRequest struct {
	ID string `json:"id"`
	lifecycle.Change
}

// ChangeContactStatusLegacy — POST /api/contacts/status-change.
// Тело: {"id": "...", "status": "...", "nextAction": ...}.
func (h *APIHandler) ChangeContactStatusLegacy(w http.ResponseWriter, r *http.Request) {
	var req legacyStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.changeStatus(w, r, req.ID, req.Change)
}

func (h *APIHandler) changeStatus(w http.ResponseWriter, r *http.Request, id string, change lifecycle.Change) {
	c, err := h.contacts.ChangeStatus(r.Context(), id, change)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.OK(w, newContactView(c))
}

// DeleteContact — DELETE /api/admin/contacts/{id}.
func (h *APIHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	apierrors.OK(w, nil)
}
