// Package http 商品资源接口
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wyfcoding/erp/internal/catalog/application"
	"github.com/wyfcoding/erp/pkg/resource"
)

type Handler struct {
	service *application.CatalogApplicationService
}

func NewHandler(service *application.CatalogApplicationService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/products")
	{
		g.POST("", h.Save)
		g.GET("", h.List)
		g.GET("/:id", h.Info)
		g.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Save(c *gin.Context) {
	var payload resource.Fields
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	handle, err := h.service.Save(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handle)
}

func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	q := resource.ListQuery{Offset: (page - 1) * size, Limit: size}
	if t := c.Query("type"); t != "" {
		q.Where = map[string]any{"fk_type": t}
	}

	rows, total, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": total})
}

func (h *Handler) Info(c *gin.Context) {
	handle, err := h.service.Info(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handle)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func respondError(c *gin.Context, err error) {
	var verr *resource.ValidationError
	var derr *resource.DomainError
	var cerr *resource.ConstraintError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, resource.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &derr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": derr.Message})
	case errors.As(err, &cerr):
		c.JSON(http.StatusConflict, gin.H{"error": cerr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
