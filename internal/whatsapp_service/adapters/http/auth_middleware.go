package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/siddartha1192/bharat-crm-sub003/internal/whatsapp_service/domain"
)

type contextKey string

const (
	requesterContextKey contextKey = "requester"
	tenantContextKey    contextKey = "tenant_id"
)

// accessClaims are the CRM access token claims the query API needs. The user
// id rides in the registered subject.
type accessClaims struct {
	TenantID    string   `json:"tenant_id"`
	Role        string   `json:"role"`
	TeamUserIDs []string `json:"team_user_ids,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware extracts the tenant and requester identity from a bearer
// token for the query endpoints. The webhook path does not pass through here;
// its authentication is verified upstream.
type AuthMiddleware struct {
	secret []byte
	logger *slog.Logger
}

func NewAuthMiddleware(secret string, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
		logger: logger.With("component", "auth_middleware"),
	}
}

func (m *AuthMiddleware) RequireClaims(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenStr == "" {
			http.Error(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}

		claims := &accessClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			m.logger.WarnContext(ctx, "Rejected invalid access token", "error", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil {
			http.Error(w, "Invalid tenant claim", http.StatusUnauthorized)
			return
		}
		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			http.Error(w, "Invalid subject claim", http.StatusUnauthorized)
			return
		}

		requester := domain.Requester{
			UserID: userID,
			Role:   domain.Role(strings.ToUpper(claims.Role)),
		}
		for _, raw := range claims.TeamUserIDs {
			if id, err := uuid.Parse(raw); err == nil {
				requester.TeamUserIDs = append(requester.TeamUserIDs, id)
			}
		}

		ctx = context.WithValue(ctx, tenantContextKey, tenantID)
		ctx = context.WithValue(ctx, requesterContextKey, requester)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requesterFromContext(ctx context.Context) (domain.Requester, bool) {
	req, ok := ctx.Value(requesterContextKey).(domain.Requester)
	return req, ok
}

func tenantFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(tenantContextKey).(uuid.UUID)
	return id, ok
}
