// token.go — выпуск HS256 токенов для локальных пользователей.
// Симметричный ключ публикуется в jwkset memory storage, через которую
// JWTAuth проверяет подпись так же, как ключи внешнего JWKS.
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

// localClaims — claims токена, выпущенного shipdesk.
type localClaims struct {
	jwt.RegisteredClaims
	// Name — «Имя Фамилия» пользователя
	Name string `json:"name,omitempty"`
	// Username — логин (email)
	Username string `json:"username"`
}

// TokenIssuer выпускает токены, подписанные общим секретом.
type TokenIssuer struct {
	key    []byte
	kid    string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer создаёт выпускающего токены. kid выводится из секрета,
// поэтому смена секрета делает старые токены недействительными.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	sum := sha256.Sum256([]byte(secret))
	return &TokenIssuer{
		key:    []byte(secret),
		kid:    "sd-" + hex.EncodeToString(sum[:8]),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// KeyID возвращает kid выпускаемых токенов.
func (t *TokenIssuer) KeyID() string {
	return t.kid
}

// Issuer возвращает значение claim iss.
func (t *TokenIssuer) Issuer() string {
	return t.issuer
}

// Issue подписывает токен для пользователя: sub, name, username, iss, iat, exp.
func (t *TokenIssuer) Issue(u *model.User) (string, time.Time, error) {
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)

	claims := localClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Name:     u.DisplayName(),
		Username: u.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = t.kid

	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись токена: %w", err)
	}
	return signed, expiresAt, nil
}

// KeyStorage возвращает jwkset storage с симметричным ключом выпускающего.
func (t *TokenIssuer) KeyStorage(ctx context.Context) (jwkset.Storage, error) {
	jwk, err := jwkset.NewJWKFromKey(t.key, jwkset.JWKOptions{
		Marshal: jwkset.JWKMarshalOptions{Private: true},
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgHS256,
			KID: t.kid,
			USE: jwkset.UseSig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWK из секрета: %w", err)
	}

	storage := jwkset.NewMemoryStorage()
	if err := storage.KeyWrite(ctx, jwk); err != nil {
		return nil, fmt.Errorf("запись JWK в storage: %w", err)
	}
	return storage, nil
}
