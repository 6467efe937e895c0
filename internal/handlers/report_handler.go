package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reicrm/internal/services"
)

type ReportHandler struct {
	service services.ReportService
}

func NewReportHandler(service services.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// @Summary      Dashboard
// @Description  Lead and analysis figures are limited to the agent's own records. Property totals and upcoming auctions cover every property.
// @Tags         Reports
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.DashboardReport
// @Router       /reports/dashboard [get]
func (h *ReportHandler) Dashboard(c *gin.Context) {
	rep, err := h.service.Dashboard(c.Request.Context(), getActor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// @Summary      Lead report
// @Tags         Reports
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Status"
// @Param        source  query     string  false  "Source"
// @Param        page    query     int     false  "Page"
// @Param        limit   query     int     false  "Page size"
// @Success      200  {object}  models.LeadReport
// @Router       /reports/leads [get]
func (h *ReportHandler) Leads(c *gin.Context) {
	q := &queryParser{c: c}
	filter := leadFilter(q)
	if q.err != nil {
		badRequest(c, q.err)
		return
	}
	rep, err := h.service.Leads(c.Request.Context(), getActor(c), filter, pageFromQuery(c), sortFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// @Summary      Agent performance
// @Tags         Reports
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  models.AgentPerformance
// @Router       /reports/agents [get]
func (h *ReportHandler) Agents(c *gin.Context) {
	rows, err := h.service.Agents(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func csvHeaders(c *gin.Context, name string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.csv"`, name, time.Now().UTC().Format("20060102")))
}

// @Summary      Export leads
// @Tags         Reports
// @Produce      text/csv
// @Security     BearerAuth
// @Success      200  {file}  file
// @Router       /reports/export/leads [get]
func (h *ReportHandler) ExportLeads(c *gin.Context) {
	q := &queryParser{c: c}
	filter := leadFilter(q)
	if q.err != nil {
		badRequest(c, q.err)
		return
	}
	csvHeaders(c, "leads")
	c.Status(http.StatusOK)
	if err := h.service.ExportLeads(c.Request.Context(), getActor(c), filter, c.Writer); err != nil {
		// headers are already sent
		_ = c.Error(err)
	}
}

// @Summary      Export properties
// @Tags         Reports
// @Produce      text/csv
// @Security     BearerAuth
// @Success      200  {file}  file
// @Router       /reports/export/properties [get]
func (h *ReportHandler) ExportProperties(c *gin.Context) {
	q := &queryParser{c: c}
	filter := propertyFilter(q)
	if q.err != nil {
		badRequest(c, q.err)
		return
	}
	csvHeaders(c, "properties")
	c.Status(http.StatusOK)
	if err := h.service.ExportProperties(c.Request.Context(), filter, c.Writer); err != nil {
		_ = c.Error(err)
	}
}
