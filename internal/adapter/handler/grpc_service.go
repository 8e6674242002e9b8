package handler

import (
	"context"

	"google.golang.org/grpc"
)

const CheckoutServiceName = "bevstore.v1.CheckoutService"

type AddItemRequest struct {
	SessionID  string `json:"session_id"`
	Kind       string `json:"kind"`
	BeverageID int64  `json:"beverage_id"`
	Quantity   int    `json:"quantity"`
}

type RemoveItemRequest struct {
	SessionID string `json:"session_id"`
	LineID    int    `json:"line_id"`
}

type GetCartRequest struct {
	SessionID string `json:"session_id"`
}

type CartResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Cart    *CartView `json:"cart,omitempty"`
}

type PlaceOrderRequest struct {
	SessionID         string `json:"session_id"`
	CustomerID        int64  `json:"customer_id"`
	DeliveryAddressID int64  `json:"delivery_address_id"`
	BillingAddressID  int64  `json:"billing_address_id"`
}

type GetOrderRequest struct {
	OrderNumber string `json:"order_number"`
}

type OrderResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Order   *OrderView `json:"order,omitempty"`
}

// CheckoutServer is the server API for the checkout service.
type CheckoutServer interface {
	AddItem(ctx context.Context, req *AddItemRequest) (*CartResponse, error)
	RemoveItem(ctx context.Context, req *RemoveItemRequest) (*CartResponse, error)
	GetCart(ctx context.Context, req *GetCartRequest) (*CartResponse, error)
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error)
}

func RegisterCheckoutServer(s grpc.ServiceRegistrar, srv CheckoutServer) {
	s.RegisterService(&checkoutServiceDesc, srv)
}

var checkoutServiceDesc = grpc.ServiceDesc{
	ServiceName: CheckoutServiceName,
	HandlerType: (*CheckoutServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AddItem", Handler: unaryHandler("AddItem", CheckoutServer.AddItem)},
		{MethodName: "RemoveItem", Handler: unaryHandler("RemoveItem", CheckoutServer.RemoveItem)},
		{MethodName: "GetCart", Handler: unaryHandler("GetCart", CheckoutServer.GetCart)},
		{MethodName: "PlaceOrder", Handler: unaryHandler("PlaceOrder", CheckoutServer.PlaceOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler("GetOrder", CheckoutServer.GetOrder)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bevstore/v1/checkout",
}

func unaryHandler[Req, Resp any](method string, call func(CheckoutServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + CheckoutServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CheckoutServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CheckoutServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CheckoutClient calls the checkout service with the JSON codec.
type CheckoutClient struct {
	cc grpc.ClientConnInterface
}

func NewCheckoutClient(cc grpc.ClientConnInterface) *CheckoutClient {
	return &CheckoutClient{cc: cc}
}

func (c *CheckoutClient) AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	out := new(CartResponse)
	if err := c.invoke(ctx, "AddItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CheckoutClient) RemoveItem(ctx context.Context, in *RemoveItemRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	out := new(CartResponse)
	if err := c.invoke(ctx, "RemoveItem", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CheckoutClient) GetCart(ctx context.Context, in *GetCartRequest, opts ...grpc.CallOption) (*CartResponse, error) {
	out := new(CartResponse)
	if err := c.invoke(ctx, "GetCart", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CheckoutClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.invoke(ctx, "PlaceOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CheckoutClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	if err := c.invoke(ctx, "GetOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CheckoutClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+CheckoutServiceName+"/"+method, in, out, opts...)
}
