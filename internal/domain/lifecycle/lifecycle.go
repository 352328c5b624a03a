// Пакет lifecycle — правила смены статуса заявки и флага nextAction.
//
// Переходы между статусами не ограничены. Единственное перекрёстное правило:
// статус completed всегда сбрасывает nextAction в null, что бы ни передал вызывающий.
package lifecycle

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

var (
	// ErrInvalidStatus — статус вне перечисления.
	ErrInvalidStatus = errors.New("Invalid status value")
	// ErrInvalidNextAction — nextAction не null и не "quote".
	ErrInvalidNextAction = errors.New("Invalid nextAction value")
)

// NextAction — опциональное поле с тремя состояниями:
// не передано (Set=false), явный null (Set=true, Value=nil), значение.
type NextAction struct {
	Set     bool
	Value   *string
	invalid bool
}

// NextActionOf возвращает переданное значение nextAction (nil — явный null).
func NextActionOf(v *string) NextAction {
	return NextAction{Set: true, Value: v}
}

// UnmarshalJSON различает отсутствие поля и явный null.
// Значение не-строкового типа запоминается как недопустимое.
func (n *NextAction) UnmarshalJSON(b []byte) error {
	n.Set = true
	n.Value = nil
	n.invalid = false
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		n.invalid = true
		return nil
	}
	n.Value = &s
	return nil
}

// Change — запрошенное изменение; оба поля независимо опциональны.
type Change struct {
	Status     *string    `json:"status"`
	NextAction NextAction `json:"nextAction"`
}

// Empty сообщает, что не передано ни одно из полей.
func (c Change) Empty() bool {
	return c.Status == nil && !c.NextAction.Set
}

// Result — итоговое состояние после применения изменения.
type Result struct {
	Status     model.Status
	NextAction *string
}

// ParseStatus проверяет значение статуса.
func ParseStatus(s string) (model.Status, error) {
	st := model.Status(s)
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// ParseNextAction проверяет значение nextAction. nil и пустая строка означают null.
func ParseNextAction(v *string) (*string, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	if *v != model.NextActionQuote {
		return nil, ErrInvalidNextAction
	}
	q := model.NextActionQuote
	return &q, nil
}

// Resolve вычисляет новое состояние заявки из текущего и запрошенного изменения.
// Поле, не переданное в change, сохраняет текущее значение.
// Повторное применение того же изменения даёт тот же результат.
func Resolve(current Result, change Change) (Result, error) {
	next := Result{Status: current.Status, NextAction: current.NextAction}

	if change.Status != nil {
		st, err := ParseStatus(*change.Status)
		if err != nil {
			return Result{}, err
		}
		next.Status = st
	}

	if next.Status == model.StatusCompleted {
		next.NextAction = nil
		return next, nil
	}

	if change.NextAction.Set {
		if change.NextAction.invalid {
			return Result{}, ErrInvalidNextAction
		}
		na, err := ParseNextAction(change.NextAction.Value)
		if err != nil {
			return Result{}, err
		}
		next.NextAction = na
	}

	return next, nil
}
