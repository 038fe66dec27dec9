package grpcapi

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/transport/httpapi"
)

const (
	// ServiceName: полное имя gRPC-сервиса запросов.
	ServiceName = "marketplace.v1.OrderQueryService"

	MethodListCustomerOrders = "/" + ServiceName + "/ListCustomerOrders"
	MethodListShopOrders     = "/" + ServiceName + "/ListShopOrders"
)

// OrderQuery — чтение заказов, которое отдаёт gRPC.
type OrderQuery interface {
	ListCustomerOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error)
	ListShopOrders(ctx context.Context, shopID string, limit int) ([]domain.ShopOrderView, error)
	AuthorizeShopOwner(ctx context.Context, shopID, ownerID string) error
}

// OrderQueryServer: контракт сервиса. Сообщения передаются как google.protobuf.Struct.
type OrderQueryServer interface {
	ListCustomerOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListShopOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// QueryService реализует OrderQueryServer поверх сервиса запросов.
type QueryService struct {
	orders OrderQuery
	logger *log.Entry
}

// NewQueryService создаёт gRPC-адаптер.
func NewQueryService(orders OrderQuery, logger *log.Entry) *QueryService {
	if logger == nil {
		logger = log.WithField("component", "grpc-query")
	}
	return &QueryService{orders: orders, logger: logger}
}

// Register подключает сервис к gRPC-серверу.
func Register(s grpc.ServiceRegistrar, srv OrderQueryServer) {
	s.RegisterService(&OrderQueryServiceDesc, srv)
}

// ListCustomerOrders принимает {customer_id, limit}. customer_id необязателен,
// но если задан, должен совпадать с пользователем сессии.
func (s *QueryService) ListCustomerOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	session, err := requireRole(ctx, httpapi.RoleCustomer)
	if err != nil {
		return nil, err
	}
	customerID := stringField(req, "customer_id")
	switch {
	case customerID == "":
		customerID = session.UserID
	case customerID != session.UserID:
		return nil, status.Error(codes.PermissionDenied, "orders of another customer")
	}
	limit, err := limitField(req)
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.ListCustomerOrders(ctx, customerID, limit)
	if err != nil {
		return nil, s.toStatus(err, "list customer orders")
	}

	items := make([]any, 0, len(orders))
	for _, o := range orders {
		items = append(items, orderFields(o))
	}
	return newStruct(map[string]any{"orders": items})
}

// ListShopOrders принимает {shop_id, limit}; пользователь сессии должен владеть магазином.
// Без shop_id берётся магазин из сессии.
func (s *QueryService) ListShopOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	session, err := requireRole(ctx, httpapi.RoleShopOwner)
	if err != nil {
		return nil, err
	}
	shopID := stringField(req, "shop_id")
	if shopID == "" {
		shopID = session.ShopID
	}
	if shopID == "" {
		return nil, status.Error(codes.InvalidArgument, "shop_id is required")
	}
	if session.ShopID != "" && session.ShopID != shopID {
		return nil, status.Error(codes.PermissionDenied, "shop is not bound to the session")
	}
	limit, err := limitField(req)
	if err != nil {
		return nil, err
	}

	if err := s.orders.AuthorizeShopOwner(ctx, shopID, session.UserID); err != nil {
		return nil, s.toStatus(err, "authorize shop owner")
	}

	views, err := s.orders.ListShopOrders(ctx, shopID, limit)
	if err != nil {
		return nil, s.toStatus(err, "list shop orders")
	}

	items := make([]any, 0, len(views))
	for _, v := range views {
		items = append(items, shopOrderFields(v))
	}
	return newStruct(map[string]any{"shop_orders": items})
}

func (s *QueryService) toStatus(err error, op string) error {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrCustomerRequired),
		errors.Is(err, domain.ErrShopRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	s.logger.WithError(err).WithField("op", op).Error("grpc query failed")
	return status.Error(codes.Internal, "internal error")
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

func limitField(req *structpb.Struct) (int, error) {
	v, ok := req.GetFields()["limit"]
	if !ok {
		return 0, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || n.NumberValue < 0 || n.NumberValue != float64(int(n.NumberValue)) {
		return 0, status.Error(codes.InvalidArgument, "limit must be a non-negative integer")
	}
	return int(n.NumberValue), nil
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func orderFields(o domain.Order) map[string]any {
	return map[string]any{
		"id":                 o.ID,
		"customer_id":        o.CustomerID,
		"status":             string(o.Status),
		"currency":           o.Currency,
		"subtotal_minor":     o.SubtotalMinor,
		"tax_minor":          o.TaxMinor,
		"handling_fee_minor": o.HandlingFeeMinor,
		"amount_minor":       o.AmountMinor,
		"payment_id":         o.PaymentID,
		"created_at":         o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func shopOrderFields(v domain.ShopOrderView) map[string]any {
	items := make([]any, 0, len(v.Items))
	for _, item := range v.Items {
		items = append(items, map[string]any{
			"product_id":  item.ProductID,
			"name":        item.Name,
			"qty":         int64(item.Qty),
			"price_minor": item.PriceMinor,
		})
	}
	return map[string]any{
		"id":             v.ID,
		"order_id":       v.OrderID,
		"shop_id":        v.ShopID,
		"status":         string(v.Status),
		"subtotal_minor": v.SubtotalMinor,
		"customer_name":  v.CustomerName,
		"customer_email": v.CustomerEmail,
		"items":          items,
		"created_at":     v.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

var _ OrderQueryServer = (*QueryService)(nil)
