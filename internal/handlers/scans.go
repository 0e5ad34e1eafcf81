package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wardtrack-server/internal/models"
	"wardtrack-server/internal/qr"
	"wardtrack-server/internal/report"
	"wardtrack-server/internal/scan"
	"wardtrack-server/internal/store"
	"wardtrack-server/internal/utils"
)

const (
	defaultScanLimit = 100
	maxScanLimit     = 1000
	exportScanLimit  = 50000
)

// ScanProcessor runs the scan pipeline.
type ScanProcessor interface {
	Process(ctx context.Context, ev scan.ScanEvent) (scan.Result, error)
}

// ScanLister reads the scan log.
type ScanLister interface {
	ListScanLogs(ctx context.Context, ward string, limit int) ([]models.ScanLog, error)
}

// ScanHandler handles ward scan requests.
type ScanHandler struct {
	processor ScanProcessor
	scans     ScanLister
	logger    *zap.Logger
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(processor ScanProcessor, scans ScanLister, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{processor: processor, scans: scans, logger: logger}
}

// RecordScanRequest is the body a ward station posts for each scan.
type RecordScanRequest struct {
	RawTag     string     `json:"rawTag" binding:"required,max=512"`
	Ward       string     `json:"ward" binding:"required,max=100"`
	ScannedBy  string     `json:"scannedBy"`
	TagType    string     `json:"tagType" binding:"omitempty,oneof=wristband other"`
	LastScanAt *time.Time `json:"lastScanAt"`
}

// ScanResponse reports how a scan was recorded.
type ScanResponse struct {
	Entry              *models.ScanLog               `json:"entry"`
	Authoritative      bool                          `json:"authoritative"`
	Advisory           string                        `json:"advisory,omitempty"`
	Inconsistency      *models.LocationInconsistency `json:"inconsistency,omitempty"`
	LabResultsResolved int                           `json:"labResultsResolved"`
}

// RecordScan handles a scan from a ward station.
// A 503 means the scan was not recorded and must be retried; an advisory scan
// is still a 201 with authoritative set to false.
func (h *ScanHandler) RecordScan(c *gin.Context) {
	var req RecordScanRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	tagType, err := qr.ParseTagType(req.TagType)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	res, err := h.processor.Process(c.Request.Context(), scan.ScanEvent{
		RawTag:     req.RawTag,
		Ward:       req.Ward,
		ScannedBy:  req.ScannedBy,
		TagType:    tagType,
		LastScanAt: req.LastScanAt,
	})
	switch {
	case errors.Is(err, scan.ErrCooldown):
		utils.TooManyRequests(c, "Scan ignored: scanner is cooling down")
		return
	case errors.Is(err, scan.ErrInvalidScan):
		utils.BadRequest(c, err.Error())
		return
	case errors.Is(err, store.ErrWrite):
		utils.ServiceUnavailable(c, "Scan not recorded, please retry")
		return
	case err != nil:
		h.logger.Error("Scan processing failed", zap.Error(err))
		utils.InternalServerError(c, "Scan not recorded, please retry")
		return
	}

	resp := ScanResponse{
		Entry:              res.Entry,
		Authoritative:      res.Authoritative,
		Advisory:           res.Advisory,
		Inconsistency:      res.Inconsistency,
		LabResultsResolved: res.LabResultsResolved,
	}
	if !res.Authoritative {
		utils.Created(c, "Scan recorded as advisory", resp)
		return
	}
	utils.Created(c, "Scan recorded successfully", resp)
}

// ListScansQuery filters the scan log.
type ListScansQuery struct {
	Ward  string `form:"ward"`
	Limit int    `form:"limit" binding:"omitempty,min=1"`
}

// ListScans handles fetching recent scans, newest first.
func (h *ScanHandler) ListScans(c *gin.Context) {
	var q ListScansQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultScanLimit
	}
	if limit > maxScanLimit {
		limit = maxScanLimit
	}

	entries, err := h.scans.ListScanLogs(c.Request.Context(), q.Ward, limit)
	if err != nil {
		h.logger.Error("Failed to list scans", zap.Error(err))
		utils.InternalServerError(c, "Failed to fetch scans")
		return
	}
	utils.Success(c, "Scans fetched successfully", entries)
}

// ExportScans handles downloading the scan log as a spreadsheet.
func (h *ScanHandler) ExportScans(c *gin.Context) {
	var q ListScansQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	entries, err := h.scans.ListScanLogs(c.Request.Context(), q.Ward, exportScanLimit)
	if err != nil {
		h.logger.Error("Failed to list scans for export", zap.Error(err))
		utils.InternalServerError(c, "Failed to export scans")
		return
	}
	data, err := report.ScanLogWorkbook(entries)
	if err != nil {
		h.logger.Error("Failed to render scan export", zap.Error(err))
		utils.InternalServerError(c, "Failed to export scans")
		return
	}
	utils.Spreadsheet(c, report.ExportFilename("scan_logs", time.Now()), data)
}
