package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Role — роль пользователя в сессии.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleShopOwner Role = "shop_owner"
)

// Заголовки, которые проставляет auth gateway перед сервисом.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-User-Role"
	HeaderShopID = "X-Shop-ID"
)

// Session: аутентифицированный пользователь запроса.
type Session struct {
	UserID string
	Role   Role
	// ShopID заполнен для владельца магазина.
	ShopID string
}

// SessionResolver извлекает сессию из запроса. Выдача сессий вне этого сервиса.
type SessionResolver interface {
	Resolve(r *http.Request) (Session, error)
}

// HeaderSessionResolver доверяет заголовкам auth gateway.
type HeaderSessionResolver struct{}

func (HeaderSessionResolver) Resolve(r *http.Request) (Session, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return Session{}, domain.ErrUnauthorized
	}

	role := Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole))))
	switch role {
	case "":
		role = RoleCustomer
	case RoleCustomer, RoleShopOwner:
	default:
		return Session{}, domain.ErrUnauthorized
	}

	return Session{
		UserID: userID,
		Role:   role,
		ShopID: strings.TrimSpace(r.Header.Get(HeaderShopID)),
	}, nil
}

type sessionKey struct{}

func withSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext возвращает сессию, положенную middleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// requireSession отклоняет запросы без сессии или с другой ролью.
func (s *Server) requireSession(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := s.sessions.Resolve(r)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if session.Role != role {
				s.writeError(w, r, domain.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
		})
	}
}
