package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"bestsellers-etl/models"
	"bestsellers-etl/services"
	"bestsellers-etl/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoadStatusReader is the read side of the load status tracker.
type LoadStatusReader interface {
	Latest(ctx context.Context, resolvedDate time.Time) (*models.LoadStatus, error)
	List(ctx context.Context, filter services.LoadStatusFilter) ([]models.LoadStatus, error)
}

// RunReader reads recorded ETL runs.
type RunReader interface {
	Recent(ctx context.Context, limit int) ([]models.EtlRun, error)
	GetByUUID(ctx context.Context, runUUID string) (*models.EtlRun, error)
}

type StatusController struct {
	statuses LoadStatusReader
	runs     RunReader
	logger   *zap.Logger
}

func NewStatusController(statuses LoadStatusReader, runs RunReader, logger *zap.Logger) *StatusController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusController{statuses: statuses, runs: runs, logger: logger}
}

// Health reports that the API is up.
func (sc *StatusController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Bestsellers ETL API is running",
	})
}

// ListLoadStatus returns load status rows filtered by status and a
// bestsellers date range.
func (sc *StatusController) ListLoadStatus(c *gin.Context) {
	filter := services.LoadStatusFilter{
		Status: strings.ToUpper(utils.SanitizeInput(c.Query("status"))),
		Limit:  utils.ParseLimit(c.Query("limit"), 100, 500),
	}
	switch filter.Status {
	case "", models.LoadStatusInProgress, models.LoadStatusCompleted, models.LoadStatusFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "status must be IN_PROGRESS, COMPLETED or FAILED"})
		return
	}

	from, err := utils.ParseOptionalDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "from must be YYYY-MM-DD"})
		return
	}
	to, err := utils.ParseOptionalDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "to must be YYYY-MM-DD"})
		return
	}
	filter.From, filter.To = from, to

	rows, err := sc.statuses.List(c.Request.Context(), filter)
	if err != nil {
		sc.logger.Error("list load status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch load status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rows,
		"count":   len(rows),
	})
}

// GetLoadStatus returns the latest status recorded for one bestsellers date.
func (sc *StatusController) GetLoadStatus(c *gin.Context) {
	date, err := utils.ParseDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "date must be YYYY-MM-DD"})
		return
	}

	row, err := sc.statuses.Latest(c.Request.Context(), date)
	if err != nil {
		sc.logger.Error("get load status", zap.String("date", utils.FormatDate(date)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch load status"})
		return
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No load status for date"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

// ListRuns returns the most recent ETL runs.
func (sc *StatusController) ListRuns(c *gin.Context) {
	runs, err := sc.runs.Recent(c.Request.Context(), utils.ParseLimit(c.Query("limit"), 20, 200))
	if err != nil {
		sc.logger.Error("list etl runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": runs, "count": len(runs)})
}

// GetRun returns one ETL run by uuid.
func (sc *StatusController) GetRun(c *gin.Context) {
	run, err := sc.runs.GetByUUID(c.Request.Context(), utils.SanitizeInput(c.Param("run_uuid")))
	if err != nil {
		if errors.Is(err, services.ErrEtlRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Run not found"})
			return
		}
		sc.logger.Error("get etl run", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": run})
}
