package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/core/service"
	"github.com/rl1809/beverage-store/internal/pkg/logging"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "bevstore_session"

	sessionKey      = "session_id"
	defaultPageSize = 20
	maxPageSize     = 100
)

type HTTPHandler struct {
	carts     *service.CartService
	catalog   *service.CatalogService
	orders    *service.OrderService
	addresses *service.AddressService
	logger    *zap.Logger
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type addItemRequest struct {
	Kind       string `json:"kind" binding:"required"`
	BeverageID int64  `json:"beverage_id" binding:"required"`
	Quantity   int    `json:"quantity"`
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

// beverageRequest carries both bottle and crate fields; the ones of the
// other kind are ignored.
type beverageRequest struct {
	Name          string          `json:"name" binding:"required"`
	PicURL        string          `json:"pic_url" binding:"required"`
	Price         decimal.Decimal `json:"price"`
	InStock       int             `json:"in_stock"`
	Volume        decimal.Decimal `json:"volume"`
	VolumePercent decimal.Decimal `json:"volume_percent"`
	Supplier      string          `json:"supplier"`
	NoOfBottles   int             `json:"no_of_bottles"`
	BottleID      int64           `json:"bottle_id"`
}

func (r beverageRequest) beverage(kind domain.BeverageKind, id int64) domain.Beverage {
	b := domain.Beverage{ID: id, Kind: kind, Name: r.Name, PicURL: r.PicURL, Price: r.Price, InStock: r.InStock}
	if kind == domain.KindBottle {
		b.Volume, b.VolumePercent, b.Supplier = r.Volume, r.VolumePercent, r.Supplier
	} else {
		b.NoOfBottles, b.BottleID = r.NoOfBottles, r.BottleID
	}
	return b
}

type addressRequest struct {
	Name        string `json:"name" binding:"required"`
	Street      string `json:"street" binding:"required"`
	HouseNumber string `json:"house_number" binding:"required"`
	PostalCode  string `json:"postal_code" binding:"required"`
}

func (r addressRequest) address() domain.Address {
	return domain.Address{Name: r.Name, Street: r.Street, HouseNumber: r.HouseNumber, PostalCode: r.PostalCode}
}

type placeOrderRequest struct {
	CustomerID        int64 `json:"customer_id" binding:"required"`
	DeliveryAddressID int64 `json:"delivery_address_id" binding:"required"`
	BillingAddressID  int64 `json:"billing_address_id" binding:"required"`
}

func NewHTTPHandler(carts *service.CartService, catalog *service.CatalogService, orders *service.OrderService, addresses *service.AddressService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{carts: carts, catalog: catalog, orders: orders, addresses: addresses, logger: logger}
}

// Register mounts the storefront routes on r.
func (h *HTTPHandler) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api", h.session)
	api.GET("/beverages/:kind", h.ListBeverages)
	api.POST("/beverages/:kind", h.AddBeverage)
	api.GET("/beverages/:kind/:id", h.GetBeverage)
	api.PUT("/beverages/:kind/:id", h.UpdateBeverage)
	api.POST("/beverages/:kind/:id/stock", h.Restock)

	api.GET("/cart", h.GetCart)
	api.POST("/cart/items", h.AddItem)
	api.DELETE("/cart/items/:id", h.RemoveItem)

	api.POST("/orders", h.PlaceOrder)
	api.GET("/orders/:number", h.GetOrder)
	api.POST("/orders/:number/invoice", h.ResendInvoice)
	api.GET("/customers/:id/orders", h.ListOrders)
	api.GET("/customers/:id/addresses", h.ListAddresses)
	api.POST("/customers/:id/addresses", h.AddAddress)
	api.PUT("/addresses/:id", h.UpdateAddress)

	api.DELETE("/session", h.EndSession)
}

// session resolves the caller's session id from the header or the cookie and
// issues a new cookie for first-time visitors.
func (h *HTTPHandler) session(c *gin.Context) {
	sid := c.GetHeader(SessionHeader)
	if sid == "" {
		sid, _ = c.Cookie(SessionCookie)
	}
	if sid == "" {
		sid = uuid.NewString()
		c.SetCookie(SessionCookie, sid, 0, "/", "", false, true)
	}
	c.Set(sessionKey, sid)

	ctx := logging.ContextWithLogger(c.Request.Context(), h.logger.With(zap.String("session_id", sid)))
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListBeverages(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}
	page, size, ok := h.pageParams(c)
	if !ok {
		return
	}

	cart, err := h.carts.Cart(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	listings, err := h.catalog.ListWithAllowedStock(c.Request.Context(), kind, page, size, cart)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "ok", listingViews(listings))
}

func (h *HTTPHandler) GetBeverage(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	b, err := h.catalog.Beverage(c.Request.Context(), kind, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "ok", beverageView(*b))
}

func (h *HTTPHandler) AddBeverage(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}
	var req beverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	b, err := h.catalog.AddBeverage(c.Request.Context(), req.beverage(kind, 0))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "beverage added", beverageView(*b))
}

func (h *HTTPHandler) UpdateBeverage(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req beverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	b, err := h.catalog.UpdateBeverage(c.Request.Context(), req.beverage(kind, id))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "beverage updated", beverageView(*b))
}

func (h *HTTPHandler) Restock(c *gin.Context) {
	kind, ok := h.kindParam(c)
	if !ok {
		return
	}
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	if err := h.catalog.Restock(c.Request.Context(), kind, id, req.Quantity); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "stock updated", nil)
}

func (h *HTTPHandler) GetCart(c *gin.Context) {
	cart, err := h.carts.Cart(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "ok", cartView(cart))
}

func (h *HTTPHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	kind, err := domain.ParseBeverageKind(req.Kind)
	if err != nil {
		h.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	var view CartView
	err = h.carts.WithCart(ctx, c.GetString(sessionKey), func(cart *domain.Cart) error {
		if _, err := h.carts.AddItem(ctx, cart, kind, req.BeverageID, req.Quantity); err != nil {
			return err
		}
		view = cartView(cart)
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "item added", view)
}

func (h *HTTPHandler) RemoveItem(c *gin.Context) {
	lineID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		h.badRequest(c, "invalid cart line id")
		return
	}

	var view CartView
	err = h.carts.WithCart(c.Request.Context(), c.GetString(sessionKey), func(cart *domain.Cart) error {
		if err := h.carts.RemoveItem(cart, lineID); err != nil {
			return err
		}
		view = cartView(cart)
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "item removed", view)
}

func (h *HTTPHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "missing required fields")
		return
	}

	ctx := c.Request.Context()
	order, err := h.carts.Checkout(ctx, c.GetString(sessionKey), func(cart *domain.Cart) (*domain.Order, error) {
		return h.orders.CreateOrder(ctx, cart, req.CustomerID, req.DeliveryAddressID, req.BillingAddressID)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "order placed successfully", orderView(order))
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "ok", orderView(order))
}

func (h *HTTPHandler) ResendInvoice(c *gin.Context) {
	invoice, queued, err := h.orders.ResendInvoice(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !queued {
		c.JSON(http.StatusServiceUnavailable, apiResponse{Success: false, Message: "invoice queue is full", Data: invoice})
		return
	}
	h.ok(c, http.StatusAccepted, "invoice queued", invoice)
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	customerID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	page, size, ok := h.pageParams(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), customerID, page, size)
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, orderView(&orders[i]))
	}
	h.ok(c, http.StatusOK, "ok", views)
}

func (h *HTTPHandler) ListAddresses(c *gin.Context) {
	customerID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	addresses, err := h.addresses.Addresses(c.Request.Context(), customerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "ok", addressViews(addresses))
}

func (h *HTTPHandler) AddAddress(c *gin.Context) {
	customerID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "missing required fields")
		return
	}

	a, err := h.addresses.AddAddress(c.Request.Context(), customerID, req.address())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "address added", addressView(*a))
}

func (h *HTTPHandler) UpdateAddress(c *gin.Context) {
	id, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "missing required fields")
		return
	}

	a, err := h.addresses.UpdateAddress(c.Request.Context(), id, req.address())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, "address updated", addressView(*a))
}

func (h *HTTPHandler) EndSession(c *gin.Context) {
	if err := h.carts.DropSession(c.Request.Context(), c.GetString(sessionKey)); err != nil {
		h.fail(c, err)
		return
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	h.ok(c, http.StatusOK, "session ended", nil)
}

func (h *HTTPHandler) kindParam(c *gin.Context) (domain.BeverageKind, bool) {
	kind, err := domain.ParseBeverageKind(c.Param("kind"))
	if err != nil {
		h.badRequest(c, "unknown beverage kind")
		return "", false
	}
	return kind, true
}

func (h *HTTPHandler) idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) pageParams(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		h.badRequest(c, "invalid page")
		return 0, 0, false
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 || size > maxPageSize {
		h.badRequest(c, "invalid size")
		return 0, 0, false
	}
	return page, size, true
}

func (h *HTTPHandler) ok(c *gin.Context, status int, message string, data any) {
	c.JSON(status, apiResponse{Success: true, Message: message, Data: data})
}

func (h *HTTPHandler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, apiResponse{Success: false, Message: message})
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	status, _, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request_failed",
			zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		message = message + ": " + err.Error()
	}
	c.JSON(status, apiResponse{Success: false, Message: message})
}
