package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
	"resourcehive/internal/services"
)

// InventoryHandlers serves the catalog and the operator stock commands
type InventoryHandlers struct {
	inventory services.InventoryService
}

func NewInventoryHandlers(inventory services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{inventory: inventory}
}

// ListItemsRequest represents query parameters for the catalog
type ListItemsRequest struct {
	Kind     string `query:"kind"`
	Category string `query:"category"`
	Query    string `query:"q"`
	Limit    int    `query:"limit"`
	Offset   int    `query:"offset"`
}

// ListItems godoc
// @Summary List requestable items with their availability
// @Tags items
// @Produce json
// @Param kind query string false "supply or property"
// @Param q query string false "Name search"
// @Success 200 {array} models.CatalogEntry
// @Router /v1/items [get]
func (h *InventoryHandlers) ListItems(c echo.Context) error {
	var req ListItemsRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "query", "Invalid query parameters")
	}
	limit, offset, err := common.ValidatePaginationParams(req.Limit, req.Offset)
	if err != nil {
		return common.SendValidationError(c, "offset", err.Error())
	}

	filter := models.ItemFilter{Query: req.Query, Limit: limit, Offset: offset}
	if req.Kind != "" {
		kind := models.ItemKind(req.Kind)
		if !kind.Valid() {
			return common.SendValidationError(c, "kind", "must be supply or property")
		}
		filter.Kind = &kind
	}
	if req.Category != "" {
		filter.Category = &req.Category
	}

	entries, err := h.inventory.ListCatalog(c.Request().Context(), filter)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, map[string]any{
		"items":  entries,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *InventoryHandlers) GetItem(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	entry, err := h.inventory.GetItem(c.Request().Context(), id)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, entry)
}

type AdjustStockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// AdjustStock applies an operator correction to on-hand stock
func (h *InventoryHandlers) AdjustStock(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req AdjustStockRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request format")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return common.SendValidationError(c, "reason", "reason is required")
	}

	snap, err := h.inventory.AdjustStock(c.Request().Context(), actor, id, req.Delta, req.Reason)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, snap)
}

type RemoveBadStockRequest struct {
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// RemoveBadStock writes off damaged or expired supply units
func (h *InventoryHandlers) RemoveBadStock(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req RemoveBadStockRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request format")
	}

	snap, err := h.inventory.RemoveBadStock(c.Request().Context(), actor, id, req.Quantity, req.Reason)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, snap)
}
