package intake

import (
	"strings"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

// itemKeys — ключи, задающие позиции заявки.
var itemKeys = []string{"items", "code", "description", "unit", "quantity"}

// ParsePatch строит частичное обновление из Payload.
// Ключи со значением null или пустой строкой отбрасываются, поэтому
// очистить поле через обновление нельзя. Ключи status и nextAction
// здесь не обрабатываются.
func ParsePatch(p Payload) (*model.ContactPatch, error) {
	filtered := make(Payload, len(p))
	for k, v := range p {
		if provided(v) {
			filtered[k] = v
		}
	}

	s, err := Parse(filtered)
	if err != nil {
		return nil, err
	}
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

	patch := &model.ContactPatch{
		FullName:        optional(s.FullName),
		FirstName:       optional(s.FirstName),
		LastName:        optional(s.LastName),
		Email:           optional(s.Email),
		Phone:           optional(s.Phone),
		Message:         optional(s.Message),
		Request:         optional(s.Request),
		Comment:         optional(s.Comment),
		Subject:         optional(s.Subject),
		Procedures:      optional(s.Procedures),
		IPAddress:       optional(s.IPAddress),
		URL:             optional(s.URL),
		SendInformation: s.SendInformation,
		Company:         optional(s.Company),
		Vessel:          optional(s.Vessel),
		ArrivalDate:     arrival,
		DepartureDate:   departure,
		Port:            optional(s.Port),
		Agent:           optional(s.Agent),
	}
	if s.VesselCategory != "" {
		vc := model.VesselCategory(s.VesselCategory)
		patch.VesselCategory = &vc
	}

	for _, key := range itemKeys {
		if _, ok := filtered[key]; ok {
			patch.Items = []model.LineItem{}
			for _, it := range s.Items {
				if !it.Blank() {
					patch.Items = append(patch.Items, it)
				}
			}
			break
		}
	}

	if _, ok := filtered["attachments"]; ok {
		if values := s.Attachments.Values(); values != nil {
			patch.Attachments = values
		}
	}

	return patch, nil
}

// provided — значение задано: не null и не пустая строка.
func provided(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
