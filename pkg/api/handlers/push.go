package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/funnelsync/pkg/api/errors"
	"github.com/jordanlanch/funnelsync/pkg/ledger"
	"github.com/jordanlanch/funnelsync/pkg/mapping"
	"github.com/jordanlanch/funnelsync/pkg/models"
	"github.com/jordanlanch/funnelsync/pkg/push"
	"github.com/jordanlanch/funnelsync/pkg/report"
)

const (
	defaultOperationsLimit = 20
	defaultPushTimeout     = 10 * time.Minute
)

// PushService is what the push endpoints need from push.Service
type PushService interface {
	Push(ctx context.Context, funnelID string, opts push.PushOptions) (*push.PushResult, error)
	Preview(ctx context.Context, funnelID string, approvedOnly bool) (*push.Preview, error)
	Validate(ctx context.Context, funnelID string) (*mapping.ValidationReport, error)
	Operation(ctx context.Context, id string) (*ledger.Operation, error)
	Operations(ctx context.Context, funnelID string, limit int) ([]*ledger.Operation, error)
}

// PushHandler handles push, preview, validation and operation endpoints
type PushHandler struct {
	service     PushService
	validator   *validator.Validate
	pushTimeout time.Duration
}

// NewPushHandler creates a new push handler. A zero pushTimeout uses the default.
func NewPushHandler(service PushService, pushTimeout time.Duration) *PushHandler {
	if pushTimeout <= 0 {
		pushTimeout = defaultPushTimeout
	}
	return &PushHandler{
		service:     service,
		validator:   validator.New(),
		pushTimeout: pushTimeout,
	}
}

// Push godoc
// @Summary Push funnel content to the CRM
// @Description Converges the funnel's CRM custom values on its current content. Unchanged content is a cached no-op unless force is set.
// @Tags Push
// @Accept json
// @Produce json
// @Param funnel_id path string true "Funnel ID"
// @Param request body models.PushRequest false "Push options"
// @Success 200 {object} models.PushResponse
// @Failure 404 {object} models.ErrorResponse "Funnel has no CRM connection"
// @Failure 409 {object} models.ErrorResponse "A push is already running"
// @Failure 502 {object} models.ErrorResponse "CRM rejected the snapshot"
// @Router /funnels/{funnel_id}/push [post]
func (h *PushHandler) Push(c echo.Context) error {
	funnelID := c.Param("funnel_id")

	var req models.PushRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return apierrors.ValidationError(c, err)
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.pushTimeout)
	defer cancel()

	result, err := h.service.Push(ctx, funnelID, push.PushOptions{
		Force:        req.Force,
		ApprovedOnly: req.ApprovedOnly,
	})
	if err != nil {
		if result != nil && result.Operation != nil {
			// the failed operation is recorded; point the caller at it
			c.Set(apierrors.OperationIDKey, result.Operation.ID)
		}
		return apierrors.Handle(c, err)
	}

	return c.JSON(http.StatusOK, models.PushResponse{
		Operation: result.Operation,
		Summary:   result.Summary,
		Warnings:  result.Warnings,
	})
}

// Preview godoc
// @Summary Preview the desired custom values
// @Description Builds the values a push would converge on without calling the CRM.
// @Tags Push
// @Produce json
// @Param funnel_id path string true "Funnel ID"
// @Param approved_only query boolean false "Only use approved fields"
// @Success 200 {object} push.Preview
// @Router /funnels/{funnel_id}/custom-values/preview [get]
func (h *PushHandler) Preview(c echo.Context) error {
	approvedOnly, _ := strconv.ParseBool(c.QueryParam("approved_only"))

	preview, err := h.service.Preview(c.Request().Context(), c.Param("funnel_id"), approvedOnly)
	if err != nil {
		return apierrors.Handle(c, err)
	}
	return c.JSON(http.StatusOK, preview)
}

// Validate godoc
// @Summary Validate funnel content
// @Description Reports per-section completeness and content warnings. Warnings never block a push.
// @Tags Push
// @Produce json
// @Param funnel_id path string true "Funnel ID"
// @Success 200 {object} mapping.ValidationReport
// @Router /funnels/{funnel_id}/validation [get]
func (h *PushHandler) Validate(c echo.Context) error {
	report, err := h.service.Validate(c.Request().Context(), c.Param("funnel_id"))
	if err != nil {
		return apierrors.Handle(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// ListOperations returns the funnel's most recent push operations, newest first
func (h *PushHandler) ListOperations(c echo.Context) error {
	funnelID := c.Param("funnel_id")

	var q models.OperationsQuery
	if limit := c.QueryParam("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return apierrors.ValidationError(c, err)
		}
		q.Limit = n
	}
	if err := h.validator.Struct(q); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if q.Limit == 0 {
		q.Limit = defaultOperationsLimit
	}

	ops, err := h.service.Operations(c.Request().Context(), funnelID, q.Limit)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	if ops == nil {
		ops = []*ledger.Operation{}
	}

	return c.JSON(http.StatusOK, models.OperationListResponse{
		FunnelID:   funnelID,
		Operations: ops,
		Count:      len(ops),
	})
}

// GetOperation returns one push operation with its summary
func (h *PushHandler) GetOperation(c echo.Context) error {
	op, err := h.service.Operation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apierrors.Handle(c, err)
	}
	return c.JSON(http.StatusOK, models.OperationResponse{
		Operation: op,
		Summary:   op.Summary(),
	})
}

// DownloadReport godoc
// @Summary Download a push operation report
// @Description Excel workbook with the summary and every created, updated, failed and skipped key.
// @Tags Push
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Operation ID"
// @Success 200 {file} file
// @Failure 404 {object} models.ErrorResponse
// @Router /push-operations/{id}/report [get]
func (h *PushHandler) DownloadReport(c echo.Context) error {
	op, err := h.service.Operation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apierrors.Handle(c, err)
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, op); err != nil {
		return apierrors.InternalError(c, err)
	}

	c.Response().Header().Set("Content-Disposition", "attachment; filename="+report.Filename(op))
	return c.Blob(http.StatusOK, report.ContentType, buf.Bytes())
}
