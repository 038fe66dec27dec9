package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// OrderQueryServiceDesc описывает сервис для grpc.Server без сгенерированного кода.
var OrderQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListCustomerOrders", Handler: listCustomerOrdersHandler},
		{MethodName: "ListShopOrders", Handler: listShopOrdersHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketplace/v1/order_query.proto",
}

func listCustomerOrdersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderQueryServer).ListCustomerOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListCustomerOrders}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderQueryServer).ListCustomerOrders(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listShopOrdersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderQueryServer).ListShopOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodListShopOrders}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderQueryServer).ListShopOrders(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// OrderQueryClient — клиент сервиса запросов.
type OrderQueryClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderQueryClient(cc grpc.ClientConnInterface) *OrderQueryClient {
	return &OrderQueryClient{cc: cc}
}

func (c *OrderQueryClient) ListCustomerOrders(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodListCustomerOrders, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderQueryClient) ListShopOrders(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodListShopOrders, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
