package transport

import (
	"fmt"
	"net/http"
	"strconv"

	"onetee-be/internal/auth"
	"onetee-be/internal/catalog"
	"onetee-be/internal/order"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ShopHandler struct {
	catalog catalog.Service
	orders  order.Service
}

func NewShopHandler(catalogSvc catalog.Service, orders order.Service) *ShopHandler {
	return &ShopHandler{catalog: catalogSvc, orders: orders}
}

func (h *ShopHandler) ListProducts(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), catalog.ProductQuery{
		Gender:         catalog.Gender(c.Query("gender")),
		TagSlug:        c.Query("tag"),
		CollectionSlug: c.Query("collection"),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *ShopHandler) SearchProducts(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}

	products, err := h.catalog.SearchProducts(c.Request.Context(), c.Query("q"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *ShopHandler) GetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ShopHandler) ListTags(c *gin.Context) {
	tags, err := h.catalog.ListTags(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (h *ShopHandler) ListCollections(c *gin.Context) {
	collections, err := h.catalog.ListCollections(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

type createOrderRequest struct {
	Items []order.CartEntry `json:"items" binding:"dive"`
}

// CreateOrder accepts guests; the order is owned by the caller when signed in.
func (h *ShopHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	var owner *uuid.UUID
	if id, ok := auth.IdentityFrom(c.Request.Context()); ok {
		owner = &id.UserID
	}

	o, err := h.orders.CreateOrder(c.Request.Context(), owner, req.Items)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *ShopHandler) ListOrders(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), identity(c), order.ListFilter{
		Status: order.Status(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *ShopHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(c.Request.Context(), identity(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *ShopHandler) StartCheckout(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	res, err := h.orders.StartCheckout(c.Request.Context(), identity(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: %q", errInvalidID, c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

// paging reads limit and offset; clamping is left to the services.
func paging(c *gin.Context) (limit, offset int, ok bool) {
	parse := func(key string) (int, bool) {
		raw := c.Query(key)
		if raw == "" {
			return 0, true
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":  "validation failed",
				"fields": map[string]string{key: key + " must be an integer"},
			})
			return 0, false
		}
		return n, true
	}

	if limit, ok = parse("limit"); !ok {
		return 0, 0, false
	}
	if offset, ok = parse("offset"); !ok {
		return 0, 0, false
	}
	return limit, offset, true
}
