// Пакет rbac — проверка доступа к административным операциям.
// Все операции над заявками (список, просмотр, изменение, удаление, смена статуса)
// требуют принципала с ролью admin. Причина отказа наружу не раскрывается.
package rbac

import (
	"errors"
	"slices"
	"strings"
)

// Роли в порядке возрастания привилегий.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ErrUnauthorized — принципал отсутствует или не имеет нужной роли.
var ErrUnauthorized = errors.New("Unauthorized")

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleUser:  1,
	RoleAdmin: 2,
}

// Principal — аутентифицированный субъект запроса.
type Principal struct {
	// Subject — sub из токена (ID пользователя)
	Subject string
	// Username — логин (email)
	Username string
	// Name — отображаемое имя
	Name string
	// Roles — набор ролей
	Roles []string
}

// HasRole проверяет наличие роли у принципала.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

// Authorize пропускает только принципала с ролью admin.
func Authorize(p *Principal) error {
	if !p.HasRole(RoleAdmin) {
		return ErrUnauthorized
	}
	return nil
}

// Authenticated пропускает любого принципала, не отключённого (с хотя бы одной ролью).
func Authenticated(p *Principal) error {
	if p == nil || len(p.Roles) == 0 {
		return ErrUnauthorized
	}
	return nil
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст или роли неизвестны — возвращает пустую строку.
func HighestRole(roles []string) string {
	highest := ""
	for _, r := range roles {
		if roleWeight[r] > roleWeight[highest] {
			highest = r
		}
	}
	return highest
}

// NormalizeRoles приводит роли к нижнему регистру, убирает дубли и неизвестные значения.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if IsValidRole(r) && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// MapGroupsToRoles определяет роли по группам внешнего IdP.
// Участник любой из adminGroups получает admin, любой аутентифицированный — user.
func MapGroupsToRoles(groups, adminGroups []string) []string {
	adminSet := toSet(adminGroups)
	for _, g := range groups {
		if adminSet[g] {
			return []string{RoleUser, RoleAdmin}
		}
	}
	return []string{RoleUser}
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
