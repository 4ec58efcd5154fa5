package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ps-rental-backend/internal/model"
	"ps-rental-backend/internal/mw"
	"ps-rental-backend/internal/store"
)

// MenuItemResponse represents the API response for a single menu item.
type MenuItemResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category,omitempty"`
	Price     float64 `json:"price"`
	Available bool    `json:"available"`
}

func menuItemResponse(m *model.MenuItem) MenuItemResponse {
	return MenuItemResponse{
		ID:        m.ID,
		Name:      m.Name,
		Category:  m.Category,
		Price:     m.Price,
		Available: m.Available,
	}
}

// ListMenu handles the GET /api/menu request. The route sits behind the
// response cache; the catalog changes rarely.
func (h *Handler) ListMenu(c *gin.Context) {
	items, err := h.store.ListMenuItems(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve menu"})
		return
	}
	responses := make([]MenuItemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, menuItemResponse(&items[i]))
	}
	c.JSON(http.StatusOK, responses)
}

type createMenuItemRequest struct {
	Name      string  `json:"name" binding:"required"`
	Category  string  `json:"category"`
	Price     float64 `json:"price" binding:"required,gt=0"`
	Available *bool   `json:"available"`
}

// CreateMenuItem handles POST /api/menu.
func (h *Handler) CreateMenuItem(c *gin.Context) {
	var req createMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item := &model.MenuItem{
		Name:      req.Name,
		Category:  req.Category,
		Price:     req.Price,
		Available: req.Available == nil || *req.Available,
	}
	if err := h.store.CreateMenuItem(c.Request.Context(), item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	mw.InvalidateCache(h.menuCache, "/api/menu")
	c.JSON(http.StatusCreated, menuItemResponse(item))
}

type updateMenuItemRequest struct {
	Name      *string  `json:"name"`
	Category  *string  `json:"category"`
	Price     *float64 `json:"price" binding:"omitempty,gt=0"`
	Available *bool    `json:"available"`
}

// UpdateMenuItem handles PATCH /api/menu/:id. Price changes affect future
// purchases only; existing add-on line items keep their captured price.
func (h *Handler) UpdateMenuItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid menu item id"})
		return
	}

	var req updateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.Price != nil {
		fields["price"] = *req.Price
	}
	if req.Available != nil {
		fields["available"] = *req.Available
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	if err := h.store.UpdateMenuItem(c.Request.Context(), id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "menu item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	mw.InvalidateCache(h.menuCache, "/api/menu")
	c.JSON(http.StatusOK, gin.H{"id": id})
}
