package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ordersite/internal/reports"
)

type ReportBuilder interface {
	Build(ctx context.Context, days int) (*reports.Report, error)
}

const defaultReportDays = 30

func reportDays(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("days"))
	if raw == "" {
		return defaultReportDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || !reports.ValidWindow(days) {
		return 0, reports.ErrInvalidWindow
	}
	return days, nil
}

func buildReport(c *gin.Context, route string, builder ReportBuilder) (*reports.Report, bool) {
	days, err := reportDays(c)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, route, err.Error())
		return nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
	defer cancel()

	report, err := builder.Build(ctx, days)
	if err != nil {
		if errors.Is(err, reports.ErrInvalidWindow) {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return nil, false
		}
		respondStoreError(c, route, err, "report not found")
		return nil, false
	}
	return report, true
}

/*
GET /admin/api/reports
- ?days=7|30|90|365, default 30
*/
func GetReport(builder ReportBuilder) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/reports"
		defer handlePanic(c, route)

		report, ok := buildReport(c, route, builder)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// GET /admin/api/reports/export
func ExportReport(builder ReportBuilder) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/reports/export"
		defer handlePanic(c, route)

		report, ok := buildReport(c, route, builder)
		if !ok {
			return
		}
		body, err := reports.CSV(report)
		if err != nil {
			routeLog(route).WithError(err).Error("csv render failed")
			respondWithError(c, http.StatusInternalServerError, route, "export failed")
			return
		}

		filename := fmt.Sprintf("report-%dd-%s.csv", report.Days, report.GeneratedAt.Format("20060102"))
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
	}
}
