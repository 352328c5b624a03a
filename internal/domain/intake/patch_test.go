package intake

import (
	"errors"
	"testing"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

func TestParsePatch_DropsEmptyValues(t *testing.T) {
	patch, err := ParsePatch(Payload{
		"phone":   "+1 555",
		"email":   "",
		"company": nil,
		"vessel":  "   ",
		"status":  "approved",
	})
	if err != nil {
		t.Fatalf("ParsePatch() ошибка: %v", err)
	}
	if patch.Phone == nil || *patch.Phone != "+1 555" {
		t.Errorf("Phone = %v", patch.Phone)
	}
	if patch.Email != nil || patch.Company != nil || patch.Vessel != nil {
		t.Errorf("пустые значения попали в патч: %+v", patch)
	}
	if patch.Items != nil || patch.Attachments != nil {
		t.Errorf("Items/Attachments заданы без ключей: %+v", patch)
	}
}

func TestParsePatch_Empty(t *testing.T) {
	patch, err := ParsePatch(Payload{"email": "", "nextAction": nil})
	if err != nil {
		t.Fatalf("ParsePatch() ошибка: %v", err)
	}
	if !patch.Empty() {
		t.Errorf("патч не пуст: %+v", patch)
	}
}

func TestParsePatch_FormatChecks(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    string
	}{
		{"e-mail", Payload{"email": "not-an-email"}, MsgInvalidEmail},
		{"url", Payload{"url": "example"}, MsgInvalidURL},
		{"категория", Payload{"vesselCategory": "Yacht"}, MsgInvalidVesselCategory},
		{"дата", Payload{"arrivalDate": "tomorrow"}, "Invalid arrivalDate"},
		{"тип поля", Payload{"phone": true}, "Invalid phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePatch(tt.payload)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Message != tt.want {
				t.Errorf("ParsePatch() = %v, хотели %q", err, tt.want)
			}
		})
	}
}

func TestParsePatch_ItemsAndAttachments(t *testing.T) {
	patch, err := ParsePatch(Payload{
		"items": []any{
			map[string]any{"id": "i-1", "code": "A", "description": "Filter", "unit": "pcs", "quantity": 2.0},
			map[string]any{"code": "", "description": ""},
		},
		"attachments":     "/uploads/contacts/c1/1_a.pdf",
		"sendInformation": false,
		"vesselCategory":  "Cruise",
	})
	if err != nil {
		t.Fatalf("ParsePatch() ошибка: %v", err)
	}
	want := model.LineItem{ID: "i-1", Code: "A", Description: "Filter", Unit: "pcs", Quantity: "2"}
	if len(patch.Items) != 1 || patch.Items[0] != want {
		t.Errorf("Items = %+v, хотели [%+v]", patch.Items, want)
	}
	if len(patch.Attachments) != 1 {
		t.Errorf("Attachments = %v", patch.Attachments)
	}
	if patch.SendInformation == nil || *patch.SendInformation {
		t.Errorf("SendInformation = %v, хотели false", patch.SendInformation)
	}
	if patch.VesselCategory == nil || *patch.VesselCategory != model.VesselCruise {
		t.Errorf("VesselCategory = %v", patch.VesselCategory)
	}
}
