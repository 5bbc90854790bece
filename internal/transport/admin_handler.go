package transport

import (
	"net/http"

	"onetee-be/internal/catalog"
	"onetee-be/internal/order"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves /admin; requireAdmin guards the whole group.
type AdminHandler struct {
	catalog catalog.Service
	orders  order.Service
}

func NewAdminHandler(catalogSvc catalog.Service, orders order.Service) *AdminHandler {
	return &AdminHandler{catalog: catalogSvc, orders: orders}
}

func (h *AdminHandler) CreateProduct(c *gin.Context) {
	var input catalog.NewProductInput
	if !bindJSON(c, &input) {
		return
	}

	p, err := h.catalog.CreateProduct(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *AdminHandler) DeleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *AdminHandler) CreateTag(c *gin.Context) {
	var req nameRequest
	if !bindJSON(c, &req) {
		return
	}

	tag, err := h.catalog.CreateTag(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (h *AdminHandler) CreateCollection(c *gin.Context) {
	var input catalog.NewCollectionInput
	if !bindJSON(c, &input) {
		return
	}

	col, err := h.catalog.CreateCollection(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

func (h *AdminHandler) UpdateTag(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req nameRequest
	if !bindJSON(c, &req) {
		return
	}

	tag, err := h.catalog.UpdateTag(c.Request.Context(), id, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func (h *AdminHandler) DeleteTag(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.catalog.DeleteTag(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) UpdateCollection(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input catalog.UpdateCollectionInput
	if !bindJSON(c, &input) {
		return
	}

	col, err := h.catalog.UpdateCollection(c.Request.Context(), id, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

func (h *AdminHandler) DeleteCollection(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.catalog.DeleteCollection(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assignTagsRequest struct {
	Tags []string `json:"tags" binding:"required"`
}

func (h *AdminHandler) AssignTags(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req assignTagsRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.catalog.AssignTags(c.Request.Context(), id, req.Tags); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type assignCollectionsRequest struct {
	Collections []string `json:"collections" binding:"required"`
}

func (h *AdminHandler) AssignCollections(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req assignCollectionsRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.catalog.AssignCollections(c.Request.Context(), id, req.Collections); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type presignRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

func (h *AdminHandler) PresignImage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req presignRequest
	if !bindJSON(c, &req) {
		return
	}

	upload, err := h.catalog.PresignImageUpload(c.Request.Context(), id, req.Filename, req.ContentType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, upload)
}

type stockRequest struct {
	StockQty *int `json:"stock_qty" binding:"required"`
}

func (h *AdminHandler) SetVariantStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req stockRequest
	if !bindJSON(c, &req) {
		return
	}

	productID, err := h.catalog.SetVariantStock(c.Request.Context(), id, *req.StockQty)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"variant_id": id,
		"product_id": productID,
		"stock_qty":  *req.StockQty,
	})
}

type statusRequest struct {
	Status order.Status `json:"status" binding:"required"`
}

func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), identity(c), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
