package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/api/middleware"
	"agrolink/api/internal/apperr"
	"agrolink/api/internal/services"
)

// ProductHandler handles /products requests.
type ProductHandler struct {
	productService services.IProductService
}

func NewProductHandler(productService services.IProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

type imageUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type imageConfirmRequest struct {
	Key string `json:"key"`
}

// ListProducts handles GET /products
// Query: category, farmer, search, limit, page, mine=true (owner sees unavailable).
func (h *ProductHandler) ListProducts(c *gin.Context) {
	filter := services.ProductFilter{
		Category: strings.TrimSpace(c.Query("category")),
		Search:   strings.TrimSpace(c.Query("search")),
		Limit:    queryInt(c, "limit", 50),
		Page:     queryInt(c, "page", 1),
	}
	if farmer := c.Query("farmer"); farmer != "" {
		id, err := primitive.ObjectIDFromHex(farmer)
		if err != nil {
			fail(c, apperr.BadRequest("Invalid farmer"))
			return
		}
		filter.Farmer = id
	}
	if actor, authed := middleware.ActorFrom(c); authed && c.Query("mine") == "true" {
		filter.Farmer = actor.ID
		filter.IncludeUnavailable = true
	}

	products, total, err := h.productService.List(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"products": products, "total": total, "page": filter.Page})
}

// CreateProduct handles POST /products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	var in services.ProductInput
	if !bindJSON(c, &in) {
		return
	}
	product, err := h.productService.Create(c.Request.Context(), actor, in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, gin.H{"product": product})
}

// GetProduct handles GET /products/product/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	product, err := h.productService.FindByID(c.Request.Context(), productID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"product": product})
}

// UpdateProduct handles PUT /products/product/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in services.ProductUpdate
	if !bindJSON(c, &in) {
		return
	}
	product, err := h.productService.Update(c.Request.Context(), productID, actor, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"product": product})
}

// DeleteProduct handles DELETE /products/product/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.productService.Delete(c.Request.Context(), productID, actor); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"message": "Product deleted"})
}

// AddReview handles POST /products/review/:id
func (h *ProductHandler) AddReview(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in services.ReviewInput
	if !bindJSON(c, &in) {
		return
	}
	product, err := h.productService.AddReview(c.Request.Context(), productID, actor, in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, gin.H{"message": "Review added", "product": product})
}

// CreateImageUpload handles POST /products/product/:id/images
func (h *ProductHandler) CreateImageUpload(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in imageUploadRequest
	if !bindJSON(c, &in) {
		return
	}
	upload, err := h.productService.CreateImageUpload(c.Request.Context(), productID, actor, in.Filename, in.ContentType)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"upload": upload})
}

// ConfirmImage handles POST /products/product/:id/images/confirm
func (h *ProductHandler) ConfirmImage(c *gin.Context) {
	actor, authed := currentActor(c)
	if !authed {
		return
	}
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var in imageConfirmRequest
	if !bindJSON(c, &in) {
		return
	}
	if err := h.productService.ConfirmImage(c.Request.Context(), productID, actor, in.Key); err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusAccepted, gin.H{"message": "Image queued for processing"})
}
