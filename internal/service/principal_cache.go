// principal_cache.go — кэш ролей локальных пользователей для JWT middleware.
// Обёртка над hashicorp/golang-lru/v2/expirable: роли читаются из таблицы
// users не чаще одного раза за TTL на пользователя.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/shipdesk/internal/domain/model"
	"github.com/bigkaa/shipdesk/internal/repository"
)

// Prometheus-метрики кэша.
var (
	principalCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sd_principal_cache_hits_total",
		Help: "Общее количество попаданий в кэш ролей пользователей.",
	})
	principalCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sd_principal_cache_misses_total",
		Help: "Общее количество промахов кэша ролей пользователей.",
	})
)

// PrincipalCache — роли пользователей по логину с автоматическим TTL.
// Неизвестный и отключённый пользователь кэшируются с пустым набором ролей.
type PrincipalCache struct {
	users  repository.UserRepository
	cache  *expirable.LRU[string, []string]
	logger *slog.Logger
}

// NewPrincipalCache создаёт кэш с указанным максимальным размером и TTL.
func NewPrincipalCache(users repository.UserRepository, maxSize int, ttl time.Duration, logger *slog.Logger) *PrincipalCache {
	return &PrincipalCache{
		users:  users,
		cache:  expirable.NewLRU[string, []string](maxSize, nil, ttl),
		logger: logger.With(slog.String("component", "principal_cache")),
	}
}

// ResolveRoles возвращает роли активного пользователя.
// Ошибка возвращается только при сбое хранилища и не кэшируется.
func (c *PrincipalCache) ResolveRoles(ctx context.Context, username string) ([]string, error) {
	key := cacheKey(username)
	if roles, ok := c.cache.Get(key); ok {
		principalCacheHitsTotal.Inc()
		return roles, nil
	}
	principalCacheMissesTotal.Inc()

	u, err := c.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.cache.Add(key, nil)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	var roles []string
	if u.Status == model.UserActive {
		roles = u.Roles
	}
	c.cache.Add(key, roles)

	c.logger.Debug("Роли пользователя загружены",
		slog.String("username", key),
		slog.Any("roles", roles),
	)
	return roles, nil
}

// Invalidate удаляет запись пользователя (после смены статуса или ролей).
func (c *PrincipalCache) Invalidate(username string) {
	c.cache.Remove(cacheKey(username))
}

// Len возвращает число записей в кэше.
func (c *PrincipalCache) Len() int {
	return c.cache.Len()
}

func cacheKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
