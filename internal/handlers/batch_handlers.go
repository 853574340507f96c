package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"resourcehive/internal/common"
	"resourcehive/internal/models"
	"resourcehive/internal/services"
)

// BatchHandlers exposes the request commands
type BatchHandlers struct {
	requests services.RequestService
}

func NewBatchHandlers(requests services.RequestService) *BatchHandlers {
	return &BatchHandlers{requests: requests}
}

// actorID returns the authenticated caller
func actorID(c echo.Context) (uuid.UUID, error) {
	id, ok := common.GetUserIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	return common.ValidateUUID(c.Param(name), name)
}

// SubmitLineRequest is one requested item. Dates are YYYY-MM-DD.
type SubmitLineRequest struct {
	ItemID     string `json:"item_id"`
	Quantity   int    `json:"quantity"`
	NeededDate string `json:"needed_date,omitempty"`
	ReturnDate string `json:"return_date,omitempty"`
}

type SubmitBatchRequest struct {
	Kind    models.RequestKind  `json:"kind"`
	Purpose string              `json:"purpose"`
	Items   []SubmitLineRequest `json:"items"`
}

func (r SubmitLineRequest) toLine() (models.RequestLine, string, error) {
	var line models.RequestLine
	id, err := common.ValidateUUID(r.ItemID, "item_id")
	if err != nil {
		return line, "item_id", err
	}
	line.ItemID = id
	line.Quantity = r.Quantity
	if r.NeededDate != "" {
		d, err := common.ParseDate(r.NeededDate, "needed_date")
		if err != nil {
			return line, "needed_date", err
		}
		line.NeededDate = &d
	}
	if r.ReturnDate != "" {
		d, err := common.ParseDate(r.ReturnDate, "return_date")
		if err != nil {
			return line, "return_date", err
		}
		line.ReturnDate = &d
	}
	return line, "", nil
}

// SubmitBatch godoc
// @Summary Submit a supply, borrow or reservation request
// @Tags batches
// @Accept json
// @Produce json
// @Param request body SubmitBatchRequest true "Request"
// @Success 201 {object} models.Batch
// @Failure 400 {object} common.ErrorResponse
// @Router /v1/batches [post]
func (h *BatchHandlers) SubmitBatch(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}

	var req SubmitBatchRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request format")
	}
	lines := make([]models.RequestLine, 0, len(req.Items))
	for _, item := range req.Items {
		line, field, err := item.toLine()
		if err != nil {
			return common.SendValidationError(c, field, err.Error())
		}
		lines = append(lines, line)
	}

	batch, err := h.requests.SubmitBatch(c.Request().Context(), actor, req.Kind, req.Purpose, lines)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusCreated, batch)
}

type ListBatchesRequest struct {
	Kind   string `query:"kind"`
	Status string `query:"status"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

// ListBatches returns the caller's batches, or every batch for administrators
func (h *BatchHandlers) ListBatches(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}

	var req ListBatchesRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "query", "Invalid query parameters")
	}
	limit, offset, err := common.ValidatePaginationParams(req.Limit, req.Offset)
	if err != nil {
		return common.SendValidationError(c, "offset", err.Error())
	}

	filter := models.BatchFilter{Limit: limit, Offset: offset}
	if req.Kind != "" {
		kind := models.RequestKind(req.Kind)
		if !kind.Valid() {
			return common.SendValidationError(c, "kind", "must be supply, borrow or reservation")
		}
		filter.Kind = &kind
	}
	if req.Status != "" {
		status := models.BatchStatus(req.Status)
		filter.Status = &status
	}

	batches, err := h.requests.ListBatches(c.Request().Context(), actor, filter)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, map[string]any{
		"batches": batches,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *BatchHandlers) GetBatch(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	batch, err := h.requests.GetBatch(c.Request().Context(), actor, id)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, batch)
}

func (h *BatchHandlers) CancelBatch(c echo.Context) error {
	return h.batchCommand(c, h.requests.CancelBatch)
}

func (h *BatchHandlers) ClaimBatch(c echo.Context) error {
	return h.batchCommand(c, h.requests.ClaimBatch)
}

func (h *BatchHandlers) batchCommand(c echo.Context, cmd func(ctx context.Context, actorID, batchID uuid.UUID) (*models.Batch, error)) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	batch, err := cmd(c.Request().Context(), actor, id)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, batch)
}

// ApprovalPermission resolves the permission guarding a decision on the
// request item in the path, which depends on its batch kind
func (h *BatchHandlers) ApprovalPermission(c echo.Context) (string, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return "", common.InvalidRequest("%s", err.Error())
	}
	kind, err := h.requests.KindOfItem(c.Request().Context(), id)
	if err != nil {
		return "", err
	}
	return models.ApprovalPermission(kind), nil
}

type ApproveItemRequest struct {
	Quantity int    `json:"quantity"`
	Remarks  string `json:"remarks"`
}

// ApproveItem godoc
// @Summary Approve a requested item, possibly for a smaller quantity
// @Tags request-items
// @Accept json
// @Produce json
// @Param id path string true "Request item ID"
// @Param request body ApproveItemRequest true "Approval"
// @Success 200 {object} models.RequestItem
// @Failure 409 {object} common.ErrorResponse
// @Router /v1/request-items/{id}/approve [post]
func (h *BatchHandlers) ApproveItem(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req ApproveItemRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request format")
	}

	item, err := h.requests.ApproveItem(c.Request().Context(), actor, id, req.Quantity, common.StringPtr(req.Remarks))
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, item)
}

type RejectItemRequest struct {
	Remarks string `json:"remarks"`
}

func (h *BatchHandlers) RejectItem(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req RejectItemRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request format")
	}

	item, err := h.requests.RejectItem(c.Request().Context(), actor, id, common.StringPtr(req.Remarks))
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, item)
}

type ReturnItemRequest struct {
	ActualReturnDate string `json:"actual_return_date,omitempty"`
}

func (h *BatchHandlers) ReturnItem(c echo.Context) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}
	var req ReturnItemRequest
	if err := c.Bind(&req); err != nil {
		return common.SendValidationError(c, "body", "Invalid request format")
	}
	var actual *time.Time
	if req.ActualReturnDate != "" {
		d, err := common.ParseDate(req.ActualReturnDate, "actual_return_date")
		if err != nil {
			return common.SendValidationError(c, "actual_return_date", err.Error())
		}
		actual = &d
	}

	item, err := h.requests.ReturnItem(c.Request().Context(), actor, id, actual)
	if err != nil {
		return common.SendError(c, err)
	}
	return common.SendOK(c, http.StatusOK, item)
}
