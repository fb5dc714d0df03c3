// auth.go — определение организации и пользователя запроса.
// При настроенном JWKS организация берётся из claim проверенного JWT,
// пользователь — из sub. Без JWKS все запросы относятся к организации
// по умолчанию (StaticOrganization).
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

	apierrors "github.com/facundoinfinure/infinure/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyPrincipal — организация и пользователь запроса.
	ContextKeyPrincipal contextKey = "principal"
)

// Principal — от чьего имени выполняется запрос.
type Principal struct {
	// OrganizationID — организация (tenant).
	OrganizationID string
	// UserID — sub из JWT; пусто, если пользователь неизвестен.
	UserID string
}

// JWTAuth — middleware проверки JWT через JWKS.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	logger    *slog.Logger
	issuer    string
	orgClaim  string
	jwtLeeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS по URL.
// orgClaim — имя claim с ID организации (IS_JWT_ORG_CLAIM).
// jwksClientTimeout, jwksRefreshInterval — параметры загрузки ключей.
// jwtLeeway — допустимое отклонение времени (IS_JWT_LEEWAY).
func NewJWTAuth(
	jwksURL string,
	issuer string,
	orgClaim string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: jwksClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	auth := NewJWTAuthWithKeyfunc(k, issuer, orgClaim, logger)
	auth.jwtLeeway = jwtLeeway
	return auth, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer, orgClaim string, logger *slog.Logger) *JWTAuth {
	if orgClaim == "" {
		orgClaim = "organization_id"
	}
	return &JWTAuth{
		jwks:     kf,
		logger:   logger.With(slog.String("component", "jwt_auth")),
		issuer:   issuer,
		orgClaim: orgClaim,
	}
}

// Middleware возвращает HTTP middleware: проверяет Bearer token (RS256,
// обязательный exp, issuer если задан) и помещает Principal в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims := jwt.MapClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			orgID, _ := claims[j.orgClaim].(string)
			if strings.TrimSpace(orgID) == "" {
				apierrors.Unauthorized(w, fmt.Sprintf("Отсутствует claim %s в токене", j.orgClaim))
				return
			}

			ctx := WithPrincipal(r.Context(), &Principal{OrganizationID: orgID, UserID: subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StaticOrganization возвращает middleware, относящий каждый запрос
// к организации orgID без пользователя.
func StaticOrganization(orgID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithPrincipal(r.Context(), &Principal{OrganizationID: orgID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// --- Context helpers ---

// WithPrincipal помещает Principal в контекст.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// PrincipalFromContext извлекает Principal из контекста запроса.
// Возвращает nil, если он не найден.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ContextKeyPrincipal).(*Principal)
	return p
}

// OrganizationFromContext возвращает ID организации или пустую строку.
func OrganizationFromContext(ctx context.Context) string {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return ""
	}
	return p.OrganizationID
}

// UserFromContext возвращает ID пользователя или nil, если он неизвестен.
func UserFromContext(ctx context.Context) *string {
	p := PrincipalFromContext(ctx)
	if p == nil || p.UserID == "" {
		return nil
	}
	user := p.UserID
	return &user
}
