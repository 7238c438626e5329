package handler

import (
	"net/http"
	"strconv"

	"cart-service/internal/domain/model"
	"cart-service/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 商品サービスからの通知（webhook）
type SyncHandler struct {
	uc *usecase.SyncUsecase
}

// DI
func NewSyncHandler(uc *usecase.SyncUsecase) *SyncHandler {
	return &SyncHandler{uc: uc}
}

type ProductUpdatedRequest struct {
	Title    string  `json:"title" validate:"required"`
	Price    *int64  `json:"price" validate:"required,gte=0,lte=1000000000"`
	ImageURL *string `json:"image_url"`
	Version  int64   `json:"version" validate:"gte=0"`
}

type StockRequest struct {
	Version int64 `json:"version" validate:"gte=0"`
}

type AffectedRowsResponse struct {
	AffectedRows int64 `json:"affected_rows"`
}

func (h *SyncHandler) RegisterRoutes(g *echo.Group) {
	p := g.Group("/products/:product_id")

	p.POST("/updated", h.updated)
	p.POST("/out-of-stock", h.outOfStock)
	p.POST("/back-in-stock", h.backInStock)
	p.POST("/deleted", h.deleted)
	p.GET("/events", h.events)
}

func productIDParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("product_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *SyncHandler) updated(c echo.Context) error {
	productID, ok := productIDParam(c)
	if !ok {
		return badRequest(c, "invalid product_id")
	}

	var req ProductUpdatedRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	n := usecase.Notification{ProductID: productID, Version: req.Version, Source: model.SyncSourceWebhook}
	rows, err := h.uc.ApplyPriceUpdate(c.Request().Context(), n, usecase.ProductUpdate{
		Title:    req.Title,
		Price:    *req.Price,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, AffectedRowsResponse{AffectedRows: rows})
}

func (h *SyncHandler) outOfStock(c echo.Context) error {
	return h.stock(c, true)
}

func (h *SyncHandler) backInStock(c echo.Context) error {
	return h.stock(c, false)
}

func (h *SyncHandler) stock(c echo.Context, outOfStock bool) error {
	productID, ok := productIDParam(c)
	if !ok {
		return badRequest(c, "invalid product_id")
	}

	//bodyは省略可
	var req StockRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
		if err := c.Validate(&req); err != nil {
			return badRequest(c, err.Error())
		}
	}

	n := usecase.Notification{ProductID: productID, Version: req.Version, Source: model.SyncSourceWebhook}
	rows, err := h.uc.ApplyOutOfStock(c.Request().Context(), n, outOfStock)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, AffectedRowsResponse{AffectedRows: rows})
}

func (h *SyncHandler) deleted(c echo.Context) error {
	productID, ok := productIDParam(c)
	if !ok {
		return badRequest(c, "invalid product_id")
	}

	n := usecase.Notification{ProductID: productID, Source: model.SyncSourceWebhook}
	rows, err := h.uc.ApplyDeleted(c.Request().Context(), n)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, AffectedRowsResponse{AffectedRows: rows})
}

// 直近の同期イベント（新しい順）
func (h *SyncHandler) events(c echo.Context) error {
	productID, ok := productIDParam(c)
	if !ok {
		return badRequest(c, "invalid product_id")
	}

	q := usecase.EventQuery{Kind: model.SyncEventKind(c.QueryParam("kind"))}

	// limit（default 50）
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "invalid limit")
		}
		q.Limit = l
	}

	// offset（default 0）
	if v := c.QueryParam("offset"); v != "" {
		o, err := strconv.Atoi(v)
		if err != nil {
			return badRequest(c, "invalid offset")
		}
		q.Offset = o
	}

	out, err := h.uc.ListEvents(c.Request().Context(), productID, q)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
