// Cart HTTP handlers.
//
// This file exposes REST endpoints for the session cart:
//   - GET    /cart               (cart + summary, weak ETag support)
//   - POST   /cart/items         (add, honors Idempotency-Key)
//   - PATCH  /cart/items/{id}    (set quantity, 0 removes)
//   - DELETE /cart/items/{id}    (remove, no-op when absent)
//   - DELETE /cart               (clear)
//   - GET    /cart/validation    (out-of-stock report)
//   - GET    /cart/events        (Server-Sent Events of converged carts)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/talesofaneria/storefront/internal/analytics"
	"github.com/talesofaneria/storefront/internal/cart"
	"github.com/talesofaneria/storefront/internal/domain"
	"github.com/talesofaneria/storefront/internal/http/middleware"
	"github.com/talesofaneria/storefront/internal/services"
)

//
// Service contracts (context-aware)
//

// CartService defines the per-session cart operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use.
type CartService interface {
	Get(ctx context.Context, session string) domain.Cart
	Add(ctx context.Context, session string, item domain.NewCartItem) (domain.Cart, error)
	Remove(ctx context.Context, session, itemID string) domain.Cart
	UpdateQuantity(ctx context.Context, session, itemID string, quantity int) (domain.Cart, error)
	Clear(ctx context.Context, session string) domain.Cart
	Validate(ctx context.Context, session string) domain.CartValidation
	Watch(ctx context.Context, session string) (<-chan domain.Cart, func())
	Tracker(ctx context.Context, session string) *analytics.Tracker
}

// IdempotencyClaimer records that (session, key) has been used. It returns
// claimed=false when the key was already recorded and not yet expired.
type IdempotencyClaimer func(ctx context.Context, session, key string, status int) (claimed bool, err error)

//
// Handler wiring
//

// Handlers groups the storefront HTTP endpoints. It depends on abstract
// service interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	cartSvc    CartService
	catalogSvc CatalogService
	claim      IdempotencyClaimer

	// Heartbeat is the interval of keep-alive events on /cart/events.
	Heartbeat time.Duration
	// MaxQuantity is the largest quantity accepted per request.
	MaxQuantity int
}

// New constructs a Handlers instance bound to the given services. claim may
// be nil, in which case Idempotency-Key only protects against replays the
// middleware already detected.
func New(cartSvc CartService, catalogSvc CatalogService, claim IdempotencyClaimer) *Handlers {
	return &Handlers{
		cartSvc:     cartSvc,
		catalogSvc:  catalogSvc,
		claim:       claim,
		Heartbeat:   25 * time.Second,
		MaxQuantity: services.DefaultMaxQuantity,
	}
}

//
// DTOs
//

// CartResponse wraps a cart and its derived summary.
type CartResponse struct {
	Cart    domain.Cart        `json:"cart"`
	Summary domain.CartSummary `json:"summary"`
}

// AddItemRequest is the JSON payload for adding a cart line.
type AddItemRequest struct {
	ProductID         string  `json:"productId" binding:"required" example:"1234567890"`
	VariantID         string  `json:"variantId" binding:"required" example:"red-m"`
	ProductName       string  `json:"productName" example:"Aneria World Map"`
	VariantName       string  `json:"variantName" example:"Red / M"`
	Price             float64 `json:"price" binding:"gte=0" example:"25"`
	Quantity          int     `json:"quantity" binding:"required,gte=1" example:"1"`
	ImageURL          string  `json:"imageUrl"`
	InStock           bool    `json:"inStock" example:"true"`
	AvailableQuantity *int    `json:"availableQuantity,omitempty"`
}

// UpdateQuantityRequest is the JSON payload for setting a line's quantity.
type UpdateQuantityRequest struct {
	// Quantity 0 or less removes the line.
	Quantity *int `json:"quantity" binding:"required" example:"2"`
}

//
// Helpers
//

func newCartResponse(c domain.Cart) CartResponse {
	return CartResponse{Cart: c, Summary: cart.Summarize(c)}
}

// cartETag derives a weak validator from the cart's last write and totals.
func cartETag(session string, r CartResponse) string {
	return fmt.Sprintf(`W/"cart:%s:%d:%d:%d:%.2f"`,
		session, r.Cart.UpdatedAt, r.Summary.ItemCount, r.Summary.TotalItems, r.Summary.Subtotal)
}

func (h *Handlers) failCart(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidItem):
		fail(c, http.StatusBadRequest, ErrCodeInvalidItem, err.Error())
	case errors.Is(err, services.ErrInvalidQuantity):
		fail(c, http.StatusBadRequest, ErrCodeInvalidQuantity, fmt.Sprintf("quantity must not exceed %d", h.MaxQuantity))
	default:
		failInternal(c, err)
	}
}

//
// Handlers
//

// GetCart godoc
// @ID          getCart
// @Summary     Get the session cart
// @Description Returns the cart and its summary. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Cart
// @Produce     json
//
// @Param       X-Session-ID   header  string  false "Session ID (issued and echoed when absent)"  example(sess-123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.CartResponse
// @Header      200  {string} ETag  "Weak ETag for current cart"
// @Success     304  {string} string "Not Modified"
// @Router      /cart [get]
func (h *Handlers) GetCart(c *gin.Context) {
	sid := middleware.SessionFrom(c)
	resp := newCartResponse(h.cartSvc.Get(c.Request.Context(), sid))

	if notModified(c, cartETag(sid, resp)) {
		return
	}
	ok(c, http.StatusOK, resp)
}

// AddItem godoc
// @ID          addCartItem
// @Summary     Add an item to the cart
// @Description Merges the line into the cart (same product and variant add up). Replays with a used Idempotency-Key return the current cart without adding.
// @Tags        Cart
// @Accept      json
// @Produce     json
//
// @Param       X-Session-ID     header  string  false "Session ID (issued and echoed when absent)"
// @Param       Idempotency-Key  header  string  false "Key for safe retries"
// @Param       body             body    handlers.AddItemRequest  true  "Cart line"
//
// @Success     201  {object} handlers.CartResponse
// @Success     200  {object} handlers.CartResponse "Replay: current cart"
// @Failure     400  {object} handlers.ErrorResponse
// @Router      /cart/items [post]
func (h *Handlers) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "productId, variantId and a positive quantity are required")
		return
	}
	if req.Quantity > h.MaxQuantity {
		fail(c, http.StatusBadRequest, ErrCodeInvalidQuantity, fmt.Sprintf("quantity must be between 1 and %d", h.MaxQuantity))
		return
	}

	ctx := c.Request.Context()
	sid := middleware.SessionFrom(c)

	if middleware.IsReplay(c) {
		ok(c, http.StatusOK, newCartResponse(h.cartSvc.Get(ctx, sid)))
		return
	}
	if key, has := middleware.GetIdempotencyKey(c); has && h.claim != nil {
		claimed, err := h.claim(ctx, sid, key, http.StatusCreated)
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency claim failed")
		} else if !claimed {
			middleware.MarkReplay(c)
			ok(c, http.StatusOK, newCartResponse(h.cartSvc.Get(ctx, sid)))
			return
		}
	}

	out, err := h.cartSvc.Add(ctx, sid, domain.NewCartItem{
		ProductID:         req.ProductID,
		VariantID:         req.VariantID,
		ProductName:       req.ProductName,
		VariantName:       req.VariantName,
		Price:             req.Price,
		Quantity:          req.Quantity,
		ImageURL:          req.ImageURL,
		InStock:           req.InStock,
		AvailableQuantity: req.AvailableQuantity,
	})
	if err != nil {
		h.failCart(c, err)
		return
	}
	ok(c, http.StatusCreated, newCartResponse(out))
}

// UpdateItem godoc
// @ID          updateCartItem
// @Summary     Set the quantity of a cart line
// @Description Quantity 0 or less removes the line. Unknown ids leave the cart unchanged.
// @Tags        Cart
// @Accept      json
// @Produce     json
//
// @Param       X-Session-ID  header  string  false "Session ID (issued and echoed when absent)"
// @Param       id            path    string  true  "Cart item ID"
// @Param       body          body    handlers.UpdateQuantityRequest  true  "New quantity"
//
// @Success     200  {object} handlers.CartResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Router      /cart/items/{id} [patch]
func (h *Handlers) UpdateItem(c *gin.Context) {
	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "quantity required")
		return
	}
	q := *req.Quantity
	if q > h.MaxQuantity {
		fail(c, http.StatusBadRequest, ErrCodeInvalidQuantity, fmt.Sprintf("quantity must be at most %d", h.MaxQuantity))
		return
	}

	out, err := h.cartSvc.UpdateQuantity(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"), q)
	if err != nil {
		h.failCart(c, err)
		return
	}
	ok(c, http.StatusOK, newCartResponse(out))
}

// RemoveItem godoc
// @ID          removeCartItem
// @Summary     Remove a cart line
// @Description Removing an unknown id is a no-op.
// @Tags        Cart
// @Produce     json
// @Param       X-Session-ID  header  string  false "Session ID (issued and echoed when absent)"
// @Param       id            path    string  true  "Cart item ID"
// @Success     200  {object} handlers.CartResponse
// @Router      /cart/items/{id} [delete]
func (h *Handlers) RemoveItem(c *gin.Context) {
	out := h.cartSvc.Remove(c.Request.Context(), middleware.SessionFrom(c), c.Param("id"))
	ok(c, http.StatusOK, newCartResponse(out))
}

// ClearCart godoc
// @ID          clearCart
// @Summary     Clear the cart
// @Tags        Cart
// @Param       X-Session-ID  header  string  false "Session ID (issued and echoed when absent)"
// @Success     204  {string} string "No Content"
// @Router      /cart [delete]
func (h *Handlers) ClearCart(c *gin.Context) {
	h.cartSvc.Clear(c.Request.Context(), middleware.SessionFrom(c))
	noContent(c)
}

// ValidateCart godoc
// @ID          validateCart
// @Summary     Report out-of-stock lines
// @Tags        Cart
// @Produce     json
// @Param       X-Session-ID  header  string  false "Session ID (issued and echoed when absent)"
// @Success     200  {object} domain.CartValidation
// @Router      /cart/validation [get]
func (h *Handlers) ValidateCart(c *gin.Context) {
	ok(c, http.StatusOK, h.cartSvc.Validate(c.Request.Context(), middleware.SessionFrom(c)))
}

// CartEvents godoc
// @ID          cartEvents
// @Summary     Stream cart changes
// @Description Server-Sent Events. Sends the current cart as a "cart" event, then one "cart" event per change made from any context, and "ping" keep-alives.
// @Tags        Cart
// @Produce     text/event-stream
// @Param       X-Session-ID  header  string  false "Session ID (issued and echoed when absent)"
// @Success     200  {string} string "event stream"
// @Router      /cart/events [get]
func (h *Handlers) CartEvents(c *gin.Context) {
	ctx := c.Request.Context()
	sid := middleware.SessionFrom(c)

	ch, cancel := h.cartSvc.Watch(ctx, sid)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("cart", newCartResponse(h.cartSvc.Get(ctx, sid)))
	c.Writer.Flush()

	every := h.Heartbeat
	if every <= 0 {
		every = 25 * time.Second
	}
	hb := time.NewTicker(every)
	defer hb.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case next, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("cart", newCartResponse(next))
			return true
		case t := <-hb.C:
			c.SSEvent("ping", t.UTC().Format(time.RFC3339))
			return true
		}
	})
}
