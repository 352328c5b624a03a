package lifecycle

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

func strPtr(s string) *string { return &s }

func pending() Result {
	return Result{Status: model.StatusPending}
}

func TestResolve(t *testing.T) {
	quote := strPtr("quote")

	tests := []struct {
		name       string
		current    Result
		change     Change
		wantStatus model.Status
		wantNext   *string
		wantErr    error
	}{
		{
			name:       "только статус",
			current:    pending(),
			change:     Change{Status: strPtr("approved")},
			wantStatus: model.StatusApproved,
		},
		{
			name:       "только nextAction",
			current:    Result{Status: model.StatusApproved},
			change:     Change{NextAction: NextActionOf(quote)},
			wantStatus: model.StatusApproved,
			wantNext:   quote,
		},
		{
			name:       "completed сбрасывает переданный quote",
			current:    pending(),
			change:     Change{Status: strPtr("completed"), NextAction: NextActionOf(quote)},
			wantStatus: model.StatusCompleted,
		},
		{
			name:       "completed сбрасывает сохранённый quote",
			current:    Result{Status: model.StatusApproved, NextAction: quote},
			change:     Change{Status: strPtr("completed")},
			wantStatus: model.StatusCompleted,
		},
		{
			name:       "quote для уже завершённой заявки игнорируется",
			current:    Result{Status: model.StatusCompleted},
			change:     Change{NextAction: NextActionOf(quote)},
			wantStatus: model.StatusCompleted,
		},
		{
			name:       "явный null очищает nextAction",
			current:    Result{Status: model.StatusApproved, NextAction: quote},
			change:     Change{NextAction: NextActionOf(nil)},
			wantStatus: model.StatusApproved,
		},
		{
			name:       "пустая строка эквивалентна null",
			current:    Result{Status: model.StatusApproved, NextAction: quote},
			change:     Change{NextAction: NextActionOf(strPtr(""))},
			wantStatus: model.StatusApproved,
		},
		{
			name:       "nextAction не передан — сохраняется",
			current:    Result{Status: model.StatusPending, NextAction: quote},
			change:     Change{Status: strPtr("rejected")},
			wantStatus: model.StatusRejected,
			wantNext:   quote,
		},
		{
			name:       "переход из completed обратно",
			current:    Result{Status: model.StatusCompleted},
			change:     Change{Status: strPtr("pending"), NextAction: NextActionOf(quote)},
			wantStatus: model.StatusPending,
			wantNext:   quote,
		},
		{
			name:    "неизвестный статус",
			current: pending(),
			change:  Change{Status: strPtr("archived")},
			wantErr: ErrInvalidStatus,
		},
		{
			name:    "неизвестный nextAction",
			current: pending(),
			change:  Change{NextAction: NextActionOf(strPtr("call"))},
			wantErr: ErrInvalidNextAction,
		},
		{
			name:       "неизвестный nextAction при completed",
			current:    pending(),
			change:     Change{Status: strPtr("completed"), NextAction: NextActionOf(strPtr("call"))},
			wantStatus: model.StatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.current, tt.change)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ошибка = %v, ожидалась %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %q, ожидался %q", got.Status, tt.wantStatus)
			}
			switch {
			case tt.wantNext == nil && got.NextAction != nil:
				t.Errorf("NextAction = %q, ожидался nil", *got.NextAction)
			case tt.wantNext != nil && (got.NextAction == nil || *got.NextAction != *tt.wantNext):
				t.Errorf("NextAction = %v, ожидался %q", got.NextAction, *tt.wantNext)
			}
		})
	}
}

// TestResolve_Idempotent — повторное применение изменения не меняет результат.
func TestResolve_Idempotent(t *testing.T) {
	changes := []Change{
		{Status: strPtr("approved"), NextAction: NextActionOf(strPtr("quote"))},
		{Status: strPtr("completed"), NextAction: NextActionOf(strPtr("quote"))},
		{Status: strPtr("spam")},
		{NextAction: NextActionOf(nil)},
	}

	for _, ch := range changes {
		first, err := Resolve(pending(), ch)
		if err != nil {
			t.Fatal(err)
		}
		second, err := Resolve(first, ch)
		if err != nil {
			t.Fatal(err)
		}
		if first.Status != second.Status || (first.NextAction == nil) != (second.NextAction == nil) {
			t.Errorf("результат изменился: %+v → %+v", first, second)
		}
	}
}

// TestResolve_CompletedNeverKeepsNextAction — для всех исходных состояний.
func TestResolve_CompletedNeverKeepsNextAction(t *testing.T) {
	for _, st := range model.Statuses {
		for _, na := range []*string{nil, strPtr("quote")} {
			cur := Result{Status: st, NextAction: na}
			for _, req := range []NextAction{{}, NextActionOf(nil), NextActionOf(strPtr("quote"))} {
				got, err := Resolve(cur, Change{Status: strPtr("completed"), NextAction: req})
				if err != nil {
					t.Fatal(err)
				}
				if got.NextAction != nil {
					t.Errorf("из %q: NextAction = %q, ожидался nil", st, *got.NextAction)
				}
			}
		}
	}
}

func TestChangeUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantSet bool
		wantNil bool
		wantErr error
	}{
		{"поле отсутствует", `{"status":"approved"}`, false, true, nil},
		{"явный null", `{"nextAction":null}`, true, true, nil},
		{"значение", `{"nextAction":"quote"}`, true, false, nil},
		{"не строка", `{"nextAction":5}`, true, true, ErrInvalidNextAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ch Change
			if err := json.Unmarshal([]byte(tt.body), &ch); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if ch.NextAction.Set != tt.wantSet {
				t.Errorf("Set = %v, ожидалось %v", ch.NextAction.Set, tt.wantSet)
			}
			if (ch.NextAction.Value == nil) != tt.wantNil {
				t.Errorf("Value = %v", ch.NextAction.Value)
			}
			_, err := Resolve(pending(), ch)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve() ошибка = %v, ожидалась %v", err, tt.wantErr)
			}
		})
	}
}

func TestChangeEmpty(t *testing.T) {
	if !(Change{}).Empty() {
		t.Error("пустое изменение должно быть Empty")
	}
	if (Change{NextAction: NextActionOf(nil)}).Empty() {
		t.Error("явный null — это изменение")
	}
}
