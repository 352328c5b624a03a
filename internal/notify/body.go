package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

// bodyLine — строка письма «метка: значение».
type bodyLine struct {
	label string
	value string
}

// bodyLines собирает непустые поля заявки в порядке вывода.
func bodyLines(c *model.Contact) []bodyLine {
	lines := []bodyLine{
		{"Full Name", senderName(c)},
		{"Email", c.Email},
		{"Phone", c.Phone},
		{"Message", firstNonEmpty(c.Message, c.Request, c.Comment)},
		{"Company", c.Company},
		{"Vessel", c.Vessel},
		{"Port", c.Port},
		{"Vessel Category", string(c.VesselCategory)},
	}
	if c.ArrivalDate != nil {
		lines = append(lines, bodyLine{"Arrival Date", c.ArrivalDate.Format(time.DateOnly)})
	}
	if c.DepartureDate != nil {
		lines = append(lines, bodyLine{"Departure Date", c.DepartureDate.Format(time.DateOnly)})
	}
	if n := len(c.Items); n > 0 {
		lines = append(lines, bodyLine{"Items", fmt.Sprintf("%d", n)})
	}

	filled := lines[:0]
	for _, l := range lines {
		if l.value != "" {
			filled = append(filled, l)
		}
	}
	return filled
}

// ContactBody — templ-компонент тела письма о заявке.
// Значения полей экранируются.
func ContactBody(c *model.Contact) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, l := range bodyLines(c) {
			if _, err := io.WriteString(w, templ.EscapeString(l.label)+": "+templ.EscapeString(l.value)+"<br/>"); err != nil {
				return err
			}
		}
		return nil
	})
}

// Body рендерит ContactBody в строку.
func Body(ctx context.Context, c *model.Contact) (string, error) {
	var buf bytes.Buffer
	if err := ContactBody(c).Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
