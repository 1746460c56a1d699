package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/funnelsync/pkg/jobs"
)

// Repusher runs one repush pass
type Repusher interface {
	RepushPartial(ctx context.Context) (jobs.RepushResult, error)
}

// JobsHandler handles background job endpoints
type JobsHandler struct {
	monitor Repusher
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(monitor Repusher) *JobsHandler {
	return &JobsHandler{
		monitor: monitor,
	}
}

// TriggerRepushHandler godoc
// @Summary Re-push partial funnels now
// @Description Runs the scheduled repush pass once. Funnels already pushing are counted as busy.
// @Tags Jobs
// @Produce json
// @Success 200 {object} jobs.RepushResult
// @Failure 500 {object} map[string]interface{} "Some repushes failed"
// @Router /jobs/repush [post]
func (h *JobsHandler) TriggerRepushHandler(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Minute)
	defer cancel()

	res, err := h.monitor.RepushPartial(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":  "Some repushes failed",
			"result": res,
		})
	}

	return c.JSON(http.StatusOK, res)
}
