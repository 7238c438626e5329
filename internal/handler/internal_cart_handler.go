package handler

import (
	"net/http"

	"cart-service/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// 注文サービス向けの内部API
type InternalCartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewInternalCartHandler(uc *usecase.CartUsecase) *InternalCartHandler {
	return &InternalCartHandler{uc: uc}
}

type ClearCartResponse struct {
	DeletedRows int64 `json:"deleted_rows"`
}

func (h *InternalCartHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:user_id", h.listItems)
	g.DELETE("/:user_id", h.clearCart)
}

func (h *InternalCartHandler) listItems(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return badRequest(c, "invalid user_id")
	}

	out, err := h.uc.ListItems(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// 注文確定後に呼ばれる。空でも200。
func (h *InternalCartHandler) clearCart(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return badRequest(c, "invalid user_id")
	}

	deleted, err := h.uc.ClearCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, ClearCartResponse{DeletedRows: deleted})
}
