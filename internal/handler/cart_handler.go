package handler

import (
	"net/http"

	"cart-service/internal/middleware"
	"cart-service/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// /api/v1/cartのHTTP
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

type AddCartItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	// 省略時は1
	Quantity *int64 `json:"quantity" validate:"omitempty,gte=1,lte=9999"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity" validate:"required,gte=1,lte=9999"`
}

// /api/v1/cart, /api/v1/cart/items を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	g := e.Group("/api/v1/cart")
	g.Use(auth)

	g.GET("", h.getCart)
	g.DELETE("", h.clearCart)
	g.POST("/items", h.addItem)
	g.PATCH("/items/:item_id", h.patchItem)
	g.DELETE("/items/:item_id", h.deleteItem)
}

func getUserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	return middleware.UserIDFromContext(c)
}

func (h *CartHandler) getCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", ErrorType: "unauthorized"})
	}

	out, err := h.uc.GetCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", ErrorType: "unauthorized"})
	}

	var req AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	qty := int64(1)
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	out, err := h.uc.AddItem(c.Request().Context(), userID, usecase.AddItemInput{
		ProductID: req.ProductID,
		Quantity:  qty,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *CartHandler) patchItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", ErrorType: "unauthorized"})
	}

	itemID, err := uuid.Parse(c.Param("item_id"))
	if err != nil {
		return badRequest(c, "invalid item_id")
	}

	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.UpdateQuantity(c.Request().Context(), userID, itemID, usecase.UpdateQuantityInput{
		Quantity: req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", ErrorType: "unauthorized"})
	}

	itemID, err := uuid.Parse(c.Param("item_id"))
	if err != nil {
		return badRequest(c, "invalid item_id")
	}

	if err := h.uc.RemoveItem(c.Request().Context(), userID, itemID); err != nil {
		return writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// 空でも204
func (h *CartHandler) clearCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", ErrorType: "unauthorized"})
	}

	if _, err := h.uc.ClearCart(c.Request().Context(), userID); err != nil {
		return writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
