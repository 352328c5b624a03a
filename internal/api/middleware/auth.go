// auth.go — JWT middleware аутентификации и авторизации shipdesk.
// Принимает HS256 токены, выпущенные TokenIssuer, и (опционально) RS256
// токены внешнего IdP, ключи которого загружаются из JWKS.
// Любой отказ отдаётся клиенту как 401 "Unauthorized" без подробностей.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/shipdesk/internal/api/errors"
	"github.com/bigkaa/shipdesk/internal/domain/rbac"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyPrincipal — принципал запроса в контексте.
const ContextKeyPrincipal contextKey = "principal"

// PrincipalResolver — роли локального пользователя по логину.
// Отключённый или неизвестный пользователь получает пустой набор ролей.
type PrincipalResolver interface {
	ResolveRoles(ctx context.Context, username string) ([]string, error)
}

// tokenClaims — claims проверяемого токена (локального или внешнего).
type tokenClaims struct {
	jwt.RegisteredClaims
	Name              string   `json:"name,omitempty"`
	Username          string   `json:"username,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Groups            []string `json:"groups,omitempty"`
}

// JWTAuth — middleware проверки Bearer токенов.
type JWTAuth struct {
	jwks        keyfunc.Keyfunc
	methods     []string
	issuer      string
	resolver    PrincipalResolver
	adminGroups []string
	leeway      time.Duration
	logger      *slog.Logger
}

// JWTAuthOptions — параметры NewJWTAuth.
type JWTAuthOptions struct {
	// Issuer — выпускающий локальные токены
	Issuer *TokenIssuer
	// JWKSURL — JWKS внешнего IdP (пустой — принимаются только локальные токены)
	JWKSURL string
	// RefreshInterval — интервал обновления внешнего JWKS
	RefreshInterval time.Duration
	// HTTPClient — клиент для загрузки JWKS (nil — 30s таймаут)
	HTTPClient *http.Client
	// Resolver — роли локальных пользователей
	Resolver PrincipalResolver
	// AdminGroups — группы внешнего IdP, дающие роль admin
	AdminGroups []string
	// Leeway — допустимое отклонение часов
	Leeway time.Duration
}

// NewJWTAuth создаёт middleware. Симметричный ключ хранится в jwkset memory storage;
// при заданном JWKSURL внешний набор ключей подключается к той же storage.
func NewJWTAuth(ctx context.Context, opts JWTAuthOptions, logger *slog.Logger) (*JWTAuth, error) {
	local, err := opts.Issuer.KeyStorage(ctx)
	if err != nil {
		return nil, err
	}

	storage := local
	methods := []string{jwt.SigningMethodHS256.Alg()}

	if opts.JWKSURL != "" {
		httpClient := opts.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: 30 * time.Second}
		}

		// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
		remote, err := jwkset.NewStorageFromHTTP(opts.JWKSURL, jwkset.HTTPClientStorageOptions{
			Client:                    httpClient,
			Ctx:                       ctx,
			NoErrorReturnFirstHTTPReq: true,
			RefreshInterval:           opts.RefreshInterval,
			RefreshErrorHandler: func(_ context.Context, err error) {
				logger.Error("Ошибка обновления JWKS",
					slog.String("error", err.Error()),
					slog.String("url", opts.JWKSURL),
				)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("создание JWKS storage: %w", err)
		}

		storage, err = jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
			Given:    local,
			HTTPURLs: map[string]jwkset.Storage{opts.JWKSURL: remote},
		})
		if err != nil {
			return nil, fmt.Errorf("объединение JWKS storage: %w", err)
		}
		methods = append(methods, jwt.SigningMethodRS256.Alg())

		logger.Info("Подключён JWKS внешнего IdP", slog.String("url", opts.JWKSURL))
	}

	k, err := keyfunc.New(keyfunc.Options{
		Ctx:     ctx,
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:        k,
		methods:     methods,
		issuer:      opts.Issuer.Issuer(),
		resolver:    opts.Resolver,
		adminGroups: opts.AdminGroups,
		leeway:      opts.Leeway,
		logger:      logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт middleware с предоставленной keyfunc.
// Используется в тестах.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	methods []string,
	issuer string,
	resolver PrincipalResolver,
	adminGroups []string,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwks:        kf,
		methods:     methods,
		issuer:      issuer,
		resolver:    resolver,
		adminGroups: adminGroups,
		logger:      logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware проверяет Bearer токен и помещает принципала в контекст.
// Запрос без токена или с недействительным токеном получает 401.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := j.authenticate(r)
			if err != nil {
				j.logger.Debug("Аутентификация не пройдена",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (j *JWTAuth) authenticate(r *http.Request) (*rbac.Principal, error) {
	tokenString, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()),
		jwt.WithValidMethods(j.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("проверка токена: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("токен недействителен")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("в токене нет sub")
	}

	if token.Method.Alg() == jwt.SigningMethodHS256.Alg() {
		return j.localPrincipal(r.Context(), claims)
	}
	return j.externalPrincipal(claims), nil
}

// localPrincipal — токен shipdesk: роли берутся из таблицы пользователей.
func (j *JWTAuth) localPrincipal(ctx context.Context, claims *tokenClaims) (*rbac.Principal, error) {
	if j.issuer != "" && claims.Issuer != j.issuer {
		return nil, fmt.Errorf("неожиданный iss %q", claims.Issuer)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("в токене нет username")
	}

	var roles []string
	if j.resolver != nil {
		var err error
		roles, err = j.resolver.ResolveRoles(ctx, claims.Username)
		if err != nil {
			return nil, fmt.Errorf("получение ролей %s: %w", claims.Username, err)
		}
	}

	return &rbac.Principal{
		Subject:  claims.Subject,
		Username: claims.Username,
		Name:     claims.Name,
		Roles:    rbac.NormalizeRoles(roles),
	}, nil
}

// externalPrincipal — токен внешнего IdP: роли вычисляются по группам.
func (j *JWTAuth) externalPrincipal(claims *tokenClaims) *rbac.Principal {
	username := claims.PreferredUsername
	if username == "" {
		username = claims.Username
	}
	return &rbac.Principal{
		Subject:  claims.Subject,
		Username: username,
		Name:     claims.Name,
		Roles:    rbac.MapGroupsToRoles(claims.Groups, j.adminGroups),
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("нет заголовка Authorization")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("ожидается Bearer <token>")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("пустой Bearer token")
	}
	return token, nil
}

// --- Access Gate ---

// RequireAdmin пропускает только принципала с ролью admin.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireAdmin(next http.Handler) http.Handler {
	return require(rbac.Authorize)(next)
}

// RequireAuth пропускает любого принципала хотя бы с одной ролью.
// Отключённые пользователи ролей не имеют и получают 401.
func RequireAuth(next http.Handler) http.Handler {
	return require(rbac.Authenticated)(next)
}

func require(check func(*rbac.Principal) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := check(PrincipalFromContext(r.Context())); err != nil {
				apierrors.Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// PrincipalFromContext извлекает принципала из контекста запроса.
// Возвращает nil, если запрос не аутентифицирован.
func PrincipalFromContext(ctx context.Context) *rbac.Principal {
	p, _ := ctx.Value(ContextKeyPrincipal).(*rbac.Principal)
	return p
}

// WithPrincipal возвращает контекст с принципалом.
func WithPrincipal(ctx context.Context, p *rbac.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}
