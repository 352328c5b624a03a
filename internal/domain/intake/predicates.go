package intake

import (
	"strings"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

// HasAttachments — вложения присутствуют: непустой массив либо непустая строка.
// Строка "pending" тоже считается вложением: файл будет загружен после создания заявки.
func HasAttachments(a Attachments) bool {
	if a.List != nil {
		return len(a.List) > 0
	}
	return notBlank(a.Single)
}

// IsComplete — позиция пригодна к обработке: description, unit и quantity заполнены.
// Код позиции не обязателен.
func IsComplete(it model.LineItem) bool {
	return notBlank(it.Description) && notBlank(it.Unit) && notBlank(it.Quantity)
}

// IsConsistent — позиция либо пуста, либо заполнена целиком.
// Если задан код или любое из полей description/unit/quantity,
// все три поля должны быть непустыми.
func IsConsistent(it model.LineItem) bool {
	touched := it.Code != "" || it.Description != "" || it.Unit != "" || it.Quantity != ""
	return !touched || IsComplete(it)
}

// HasCompleteItem — среди позиций есть хотя бы одна полная.
func HasCompleteItem(items []model.LineItem) bool {
	for _, it := range items {
		if IsComplete(it) {
			return true
		}
	}
	return false
}

// AllItemsConsistent — ни одна позиция не заполнена частично.
func AllItemsConsistent(items []model.LineItem) bool {
	for _, it := range items {
		if !IsConsistent(it) {
			return false
		}
	}
	return true
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
