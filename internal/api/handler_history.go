package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/export"
	"sanitization-status-backend/internal/query"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	pdfContentType  = "application/pdf"
)

// filteredHistory applies the history query parameters and returns the
// matching records newest first.
func (h *Handler) filteredHistory(c *gin.Context) ([]engine.SanitizationRecord, []engine.Station, bool) {
	dateRange, err := query.ParseDateRange(c.Query("range"))
	if err != nil {
		writeError(c, err)
		return nil, nil, false
	}
	f := query.HistoryFilter{
		Range:      dateRange,
		StationID:  c.Query("station_id"),
		Department: c.Query("department"),
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := engine.ParseStatus(raw)
		if !ok {
			badRequest(c, "unknown status "+raw)
			return nil, nil, false
		}
		f.Status = status
	}
	limit := -1
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return nil, nil, false
		}
		limit = n
	}

	stations := h.engine.Stations()
	records := query.FilterHistory(h.engine.History().Records(), query.DepartmentIndex(stations), f, h.clock.Now())
	if limit < 0 {
		limit = len(records)
	}
	return query.Recent(records, limit), stations, true
}

// ListHistory handles GET /api/history?range=&station_id=&department=&status=&limit=.
func (h *Handler) ListHistory(c *gin.Context) {
	records, _, ok := h.filteredHistory(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) exportReport(c *gin.Context) (export.Report, bool) {
	records, stations, ok := h.filteredHistory(c)
	if !ok {
		return export.Report{}, false
	}
	byID := make(map[string]engine.Station, len(stations))
	for _, s := range stations {
		byID[s.ID] = s
	}
	title := "Sanitization History"
	if dept := c.Query("department"); dept != "" {
		title = fmt.Sprintf("Sanitization History: %s", dept)
	}
	return export.Report{
		Title:       title,
		GeneratedAt: h.clock.Now(),
		Records:     records,
		Stations:    byID,
	}, true
}

// ExportHistoryXLSX handles GET /api/history/export.xlsx.
func (h *Handler) ExportHistoryXLSX(c *gin.Context) {
	report, ok := h.exportReport(c)
	if !ok {
		return
	}
	data, err := export.BuildHistoryXLSX(report)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to build workbook"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="sanitization-history.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ExportHistoryPDF handles GET /api/history/export.pdf.
func (h *Handler) ExportHistoryPDF(c *gin.Context) {
	report, ok := h.exportReport(c)
	if !ok {
		return
	}
	data, err := export.BuildHistoryPDF(report)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="sanitization-history.pdf"`)
	c.Data(http.StatusOK, pdfContentType, data)
}
