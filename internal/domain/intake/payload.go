package intake

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

// Поля формы с несколькими значениями (устаревшие параллельные массивы и вложения).
var multiValueKeys = map[string]bool{
	"code": true, "description": true, "unit": true, "quantity": true, "attachments": true,
}

// PayloadFromForm строит Payload из полей HTML-формы.
// Поля позиций и вложений с несколькими значениями становятся массивами,
// остальные берутся по первому значению.
func PayloadFromForm(values url.Values) Payload {
	p := make(Payload, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if multiValueKeys[key] && len(vals) > 1 {
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			p[key] = list
			continue
		}
		p[key] = vals[0]
	}
	return p
}

// Parse приводит Payload к типизированной Submission.
// Поле неверного типа даёт ошибку "Invalid <field>".
func Parse(p Payload) (*Submission, error) {
	s := &Submission{}

	strFields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"fullName"}, &s.FullName},
		{[]string{"firstName"}, &s.FirstName},
		{[]string{"lastName"}, &s.LastName},
		{[]string{"email"}, &s.Email},
		{[]string{"phone"}, &s.Phone},
		{[]string{"message"}, &s.Message},
		{[]string{"request"}, &s.Request},
		{[]string{"comment"}, &s.Comment},
		{[]string{"Subject", "subject"}, &s.Subject},
		{[]string{"Procedures", "procedures"}, &s.Procedures},
		{[]string{"ipAddress"}, &s.IPAddress},
		{[]string{"url"}, &s.URL},
		{[]string{"company"}, &s.Company},
		{[]string{"vessel"}, &s.Vessel},
		{[]string{"arrivalDate"}, &s.ArrivalDate},
		{[]string{"departureDate"}, &s.DepartureDate},
		{[]string{"port"}, &s.Port},
		{[]string{"vesselCategory"}, &s.VesselCategory},
		{[]string{"agent"}, &s.Agent},
		{[]string{"token"}, &s.Token},
	}
	for _, f := range strFields {
		for _, key := range f.keys {
			raw, ok := p[key]
			if !ok || raw == nil {
				continue
			}
			v, ok := scalarString(raw)
			if !ok {
				return nil, invalid("Invalid " + key)
			}
			*f.dst = v
			break
		}
	}

	if raw, ok := p["sendInformation"]; ok && raw != nil {
		b, ok := parseBool(raw)
		if !ok {
			return nil, invalid("Invalid sendInformation")
		}
		s.SendInformation = &b
	}

	items, err := parseItems(p)
	if err != nil {
		return nil, err
	}
	s.Items = items

	if raw, ok := p["attachments"]; ok && raw != nil {
		switch v := raw.(type) {
		case string:
			s.Attachments.Single = strings.TrimSpace(v)
		default:
			list, ok := stringList(raw)
			if !ok {
				return nil, invalid("Invalid attachments")
			}
			s.Attachments.List = list
		}
	}

	return s, nil
}

// parseItems читает позиции из items[] либо из устаревших параллельных массивов.
func parseItems(p Payload) ([]model.LineItem, error) {
	if raw, ok := p["items"]; ok && raw != nil {
		// В multipart-форме позиции приходят JSON-строкой
		if str, isStr := raw.(string); isStr {
			var decoded []any
			if strings.TrimSpace(str) == "" {
				return nil, nil
			}
			if err := json.Unmarshal([]byte(str), &decoded); err != nil {
				return nil, invalid(MsgInvalidItems)
			}
			raw = decoded
		}
		return itemsFromObjects(raw)
	}

	var cols [4][]string
	for i, key := range []string{"code", "description", "unit", "quantity"} {
		raw, ok := p[key]
		if !ok || raw == nil {
			continue
		}
		list, ok := stringList(raw)
		if !ok {
			return nil, invalid("Invalid " + key)
		}
		cols[i] = list
	}
	return model.ItemsFromColumns(cols[0], cols[1], cols[2], cols[3]), nil
}

func itemsFromObjects(raw any) ([]model.LineItem, error) {
	var objs []map[string]any
	switch v := raw.(type) {
	case []any:
		objs = make([]map[string]any, 0, len(v))
		for _, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				return nil, invalid(MsgInvalidItems)
			}
			objs = append(objs, obj)
		}
	case []map[string]any:
		objs = v
	default:
		return nil, invalid(MsgInvalidItems)
	}

	items := make([]model.LineItem, 0, len(objs))
	for _, obj := range objs {
		var it model.LineItem
		for key, dst := range map[string]*string{
			"id": &it.ID, "code": &it.Code, "description": &it.Description, "unit": &it.Unit, "quantity": &it.Quantity,
		} {
			raw, ok := obj[key]
			if !ok || raw == nil {
				continue
			}
			val, ok := scalarString(raw)
			if !ok {
				return nil, invalid(MsgInvalidItems)
			}
			*dst = val
		}
		items = append(items, it)
	}
	return items, nil
}

// scalarString приводит строку или число к строке без крайних пробелов.
func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// stringList принимает строку (массив из одного элемента) или массив строк.
func stringList(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case string:
		return []string{strings.TrimSpace(v)}, true
	case []string:
		out := make([]string, len(v))
		for i, s := range v {
			out[i] = strings.TrimSpace(s)
		}
		return out, true
	case []any:
		out := make([]string, 0, len(v))
		for _, el := range v {
			s, ok := scalarString(el)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func parseBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "1":
			return true, true
		case "false", "off", "0", "":
			return false, true
		}
	}
	return false, false
}
