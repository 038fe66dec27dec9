package grpcapi

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/transport/httpapi"
)

// Ключи metadata, которые auth gateway проставляет перед сервисом; те же, что HTTP-заголовки.
const (
	MetadataUserID = "x-user-id"
	MetadataRole   = "x-user-role"
	MetadataShopID = "x-shop-id"
)

// SessionResolver извлекает сессию из входящего контекста вызова.
type SessionResolver interface {
	Resolve(ctx context.Context) (httpapi.Session, error)
}

// MetadataSessionResolver доверяет metadata auth gateway.
type MetadataSessionResolver struct{}

func (MetadataSessionResolver) Resolve(ctx context.Context) (httpapi.Session, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	first := func(key string) string {
		if values := md.Get(key); len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
		return ""
	}

	userID := first(MetadataUserID)
	if userID == "" {
		return httpapi.Session{}, domain.ErrUnauthorized
	}

	role := httpapi.Role(strings.ToLower(first(MetadataRole)))
	switch role {
	case "":
		role = httpapi.RoleCustomer
	case httpapi.RoleCustomer, httpapi.RoleShopOwner:
	default:
		return httpapi.Session{}, domain.ErrUnauthorized
	}

	return httpapi.Session{UserID: userID, Role: role, ShopID: first(MetadataShopID)}, nil
}

type sessionKey struct{}

// SessionInterceptor резолвит сессию для методов OrderQueryService; health и reflection идут без неё.
func SessionInterceptor(resolver SessionResolver) grpc.UnaryServerInterceptor {
	if resolver == nil {
		resolver = MetadataSessionResolver{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}
		session, err := resolver.Resolve(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "session required")
		}
		return handler(context.WithValue(ctx, sessionKey{}, session), req)
	}
}

// requireRole берёт сессию из контекста. Без интерсептора сессии нет, и вызов отклоняется.
func requireRole(ctx context.Context, role httpapi.Role) (httpapi.Session, error) {
	session, ok := ctx.Value(sessionKey{}).(httpapi.Session)
	if !ok || session.UserID == "" {
		return httpapi.Session{}, status.Error(codes.Unauthenticated, "session required")
	}
	if session.Role != role {
		return httpapi.Session{}, status.Error(codes.PermissionDenied, "role is not allowed")
	}
	return session, nil
}

// OutgoingSession добавляет к исходящему вызову metadata сессии, как это делает auth gateway.
func OutgoingSession(ctx context.Context, session httpapi.Session) context.Context {
	pairs := []string{MetadataUserID, session.UserID, MetadataRole, string(session.Role)}
	if session.ShopID != "" {
		pairs = append(pairs, MetadataShopID, session.ShopID)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}
