package shopsync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"bitbucket.org/mmdatafocus/pharmasync_backend/importer"
	"bitbucket.org/mmdatafocus/pharmasync_backend/models"
	"bitbucket.org/mmdatafocus/pharmasync_backend/utils"
)

// CreateImportHandler ingests a wholesaler extract and optionally queues the
// normalize stage.
func CreateImportHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			var verr validator.ValidationErrors
			if errors.As(err, &verr) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		triggeredBy := req.TriggeredBy
		if triggeredBy == "" {
			triggeredBy = models.RunTriggeredManual
		}

		batch, err := importer.ImportExtract(c.Request.Context(), req.Source, triggeredBy)
		if err != nil {
			var valErr *importer.ValidationError
			if errors.As(err, &valErr) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": valErr.Error(), "missingColumns": valErr.MissingColumns})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if req.Async {
			if err := PublishSyncRun(c.Request.Context(), batch.ImportId, StageNormalize, triggeredBy); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		c.JSON(http.StatusCreated, gin.H{"importId": batch.ImportId, "rowCount": batch.RowCount, "status": batch.Status})
	}
}

// StageHandler triggers the normalize or diff stage for an import, either
// synchronously or queued through Pub/Sub.
func StageHandler(service *Service, stage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		importId := strings.TrimSpace(c.Param("id"))
		if importId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "import id is required"})
			return
		}

		var req StageRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		if req.Async {
			if err := PublishSyncRun(c.Request.Context(), importId, stage, models.RunTriggeredManual); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"importId": importId, "stage": stage})
			return
		}

		if _, err := service.RunStage(c.Request.Context(), importId, stage); err != nil {
			respondStageError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"importId": importId, "stage": stage})
	}
}

// ApplyHandler runs the apply stage, optionally restricted to a subset of
// pending changes, optionally as a dry run.
func ApplyHandler(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		importId := strings.TrimSpace(c.Param("id"))
		if importId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "import id is required"})
			return
		}

		var req ApplyRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		ctx := c.Request.Context()
		if req.DryRun {
			ctx = utils.SetDryRunInContext(ctx, true)
		}

		if req.Async {
			if len(req.ChangeIds) > 0 || req.DryRun {
				c.JSON(http.StatusBadRequest, gin.H{"error": "async apply supports neither changeIds nor dryRun"})
				return
			}
			if err := PublishSyncRun(ctx, importId, StageApply, models.RunTriggeredManual); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"importId": importId, "stage": StageApply})
			return
		}

		result, err := service.ApplySelected(ctx, importId, req.ChangeIds)
		if err != nil {
			respondStageError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetImportHandler returns the batch with its pending/audit counters.
func GetImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		importId := strings.TrimSpace(c.Param("id"))
		ctx := c.Request.Context()

		batch, err := models.GetImportBatch(ctx, importId)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		pending, err := utils.ResourceCountWhere[models.ChangeRecord](ctx, "import_id = ?", importId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		applied, err := utils.ResourceCountWhere[models.ApplyLogEntry](ctx, "import_id = ? AND status = ?", importId, models.ApplyLogStatusSuccess)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		failed, err := utils.ResourceCountWhere[models.ApplyLogEntry](ctx, "import_id = ? AND status = ?", importId, models.ApplyLogStatusError)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, ImportResponse{
			ImportId:     batch.ImportId,
			FileName:     batch.FileName,
			Status:       batch.Status,
			RowCount:     batch.RowCount,
			TriggeredBy:  batch.TriggeredBy,
			PendingCount: pending,
			AppliedCount: applied,
			FailedCount:  failed,
			CreatedAt:    batch.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			StartedAt:    formatTime(batch.StartedAt),
			FinishedAt:   formatTime(batch.FinishedAt),
		})
	}
}

// ListChangesHandler returns the pending change set of an import.
func ListChangesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		importId := strings.TrimSpace(c.Param("id"))
		if err := utils.ValidateResourceWhere[models.ImportBatch](c.Request.Context(), "import_id = ?", importId); err != nil {
			respondLookupError(c, err)
			return
		}
		db := config.GetDB().WithContext(c.Request.Context())

		var records []models.ChangeRecord
		if err := db.Where("import_id = ?", importId).Order("id").Find(&records).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]ChangeResponse, 0, len(records))
		for i := range records {
			rec := &records[i]
			items = append(items, ChangeResponse{
				ID:      rec.ID,
				Minsan:  rec.Minsan,
				Missing: rec.Missing,
				Fields:  rec.Fields(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// ListLogsHandler returns the apply audit trail of an import, newest first.
func ListLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		importId := strings.TrimSpace(c.Param("id"))
		if err := utils.ValidateResourceWhere[models.ImportBatch](c.Request.Context(), "import_id = ?", importId); err != nil {
			respondLookupError(c, err)
			return
		}
		db := config.GetDB().WithContext(c.Request.Context())

		limit := 50
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}

		var logs []models.ApplyLogEntry
		if err := db.Where("import_id = ?", importId).Order("id desc").Limit(limit).Find(&logs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]ApplyLogResponse, 0, len(logs))
		for _, entry := range logs {
			items = append(items, ApplyLogResponse{
				ID:        entry.ID,
				Minsan:    entry.Minsan,
				Status:    entry.Status,
				Details:   entry.Details,
				CreatedAt: entry.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// ListMarkupsHandler returns the supplier markup table.
func ListMarkupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		var rows []models.SupplierMarkup
		if err := db.Order("supplier").Find(&rows).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

func respondLookupError(c *gin.Context, err error) {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "import not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func respondStageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "import not found"})
	case errors.Is(err, ErrImportNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrRemoteFetch):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
