package model

// ItemsFromColumns собирает канонические позиции из устаревшего формата
// параллельных массивов code[]/description[]/unit[]/quantity[].
// Длина результата равна длине самого длинного массива, недостающие
// значения становятся пустыми строками.
func ItemsFromColumns(code, description, unit, quantity []string) []LineItem {
	n := max(len(code), len(description), len(unit), len(quantity))
	if n == 0 {
		return nil
	}

	items := make([]LineItem, n)
	for i := range items {
		items[i] = LineItem{
			Code:        at(code, i),
			Description: at(description, i),
			Unit:        at(unit, i),
			Quantity:    at(quantity, i),
		}
	}
	return items
}

// ItemsToColumns раскладывает позиции в параллельные массивы.
func ItemsToColumns(items []LineItem) (code, description, unit, quantity []string) {
	if len(items) == 0 {
		return nil, nil, nil, nil
	}
	code = make([]string, len(items))
	description = make([]string, len(items))
	unit = make([]string, len(items))
	quantity = make([]string, len(items))
	for i, it := range items {
		code[i] = it.Code
		description[i] = it.Description
		unit[i] = it.Unit
		quantity[i] = it.Quantity
	}
	return code, description, unit, quantity
}

// Blank сообщает, что в позиции не заполнено ни одно поле.
func (it LineItem) Blank() bool {
	return it.Code == "" && it.Description == "" && it.Unit == "" && it.Quantity == ""
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}
