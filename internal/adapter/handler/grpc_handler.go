package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/core/service"
	"github.com/rl1809/beverage-store/internal/pkg/logging"
)

type GRPCHandler struct {
	carts  *service.CartService
	orders *service.OrderService
	logger *zap.Logger
}

var _ CheckoutServer = (*GRPCHandler)(nil)

func NewGRPCHandler(carts *service.CartService, orders *service.OrderService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{carts: carts, orders: orders, logger: logger}
}

func (h *GRPCHandler) AddItem(ctx context.Context, req *AddItemRequest) (*CartResponse, error) {
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	kind, err := domain.ParseBeverageKind(req.Kind)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}

	ctx = h.withSession(ctx, req.SessionID)
	var view CartView
	err = h.carts.WithCart(ctx, req.SessionID, func(cart *domain.Cart) error {
		if _, err := h.carts.AddItem(ctx, cart, kind, req.BeverageID, req.Quantity); err != nil {
			return err
		}
		view = cartView(cart)
		return nil
	})
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &CartResponse{Success: true, Message: "item added", Cart: &view}, nil
}

func (h *GRPCHandler) RemoveItem(ctx context.Context, req *RemoveItemRequest) (*CartResponse, error) {
	if req.SessionID == "" || req.LineID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "session_id and line_id are required")
	}

	ctx = h.withSession(ctx, req.SessionID)
	var view CartView
	err := h.carts.WithCart(ctx, req.SessionID, func(cart *domain.Cart) error {
		if err := h.carts.RemoveItem(cart, req.LineID); err != nil {
			return err
		}
		view = cartView(cart)
		return nil
	})
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	return &CartResponse{Success: true, Message: "item removed", Cart: &view}, nil
}

func (h *GRPCHandler) GetCart(ctx context.Context, req *GetCartRequest) (*CartResponse, error) {
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	cart, err := h.carts.Cart(ctx, req.SessionID)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	view := cartView(cart)
	return &CartResponse{Success: true, Message: "ok", Cart: &view}, nil
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderResponse, error) {
	if req.SessionID == "" || req.CustomerID <= 0 || req.DeliveryAddressID <= 0 || req.BillingAddressID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}

	ctx = h.withSession(ctx, req.SessionID)
	order, err := h.carts.Checkout(ctx, req.SessionID, func(cart *domain.Cart) (*domain.Order, error) {
		return h.orders.CreateOrder(ctx, cart, req.CustomerID, req.DeliveryAddressID, req.BillingAddressID)
	})
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	view := orderView(order)
	return &OrderResponse{Success: true, Message: "order placed successfully", Order: &view}, nil
}

func (h *GRPCHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	if req.OrderNumber == "" {
		return nil, status.Error(codes.InvalidArgument, "order_number is required")
	}
	order, err := h.orders.GetOrder(ctx, req.OrderNumber)
	if err != nil {
		return nil, h.toStatus(ctx, err)
	}
	view := orderView(order)
	return &OrderResponse{Success: true, Message: "ok", Order: &view}, nil
}

func (h *GRPCHandler) withSession(ctx context.Context, sessionID string) context.Context {
	return logging.ContextWithLogger(ctx, h.logger.With(zap.String("session_id", sessionID)))
}

func (h *GRPCHandler) toStatus(ctx context.Context, err error) error {
	_, code, message := errorStatus(err)
	if code == codes.Internal {
		logging.FromContext(ctx).Error("rpc_failed", zap.Error(err))
		return status.Error(code, message)
	}
	return status.Error(code, message+": "+err.Error())
}
