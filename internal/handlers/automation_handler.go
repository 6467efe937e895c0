package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reicrm/internal/models"
	"reicrm/internal/services"
)

type AutomationHandler struct {
	service services.AutomationService
}

func NewAutomationHandler(service services.AutomationService) *AutomationHandler {
	return &AutomationHandler{service: service}
}

// @Summary      Job status
// @Description  Running flag, schedule, next run and last run per job
// @Tags         Automation
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  scheduler.JobStatus
// @Router       /automation/status [get]
func (h *AutomationHandler) Status(c *gin.Context) {
	st, err := h.service.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": st})
}

func (h *AutomationHandler) trigger(c *gin.Context, job models.JobName) {
	id, err := h.service.Trigger(c.Request.Context(), job)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"runId": id, "job": job})
}

// @Summary      Start a scrape run
// @Tags         Automation
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /automation/scrape [post]
func (h *AutomationHandler) Scrape(c *gin.Context) {
	h.trigger(c, models.JobScrape)
}

// @Summary      Start an enrichment run
// @Tags         Automation
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]string
// @Router       /automation/enrich [post]
func (h *AutomationHandler) Enrich(c *gin.Context) {
	h.trigger(c, models.JobEnrich)
}

// @Summary      Recent runs
// @Tags         Automation
// @Produce      json
// @Security     BearerAuth
// @Param        job    query     string  false  "scrape|enrich|follow_up_reminders|subscription_sweep"
// @Param        limit  query     int     false  "Max rows (default 20, max 100)"
// @Success      200  {array}  models.AutomationRun
// @Router       /automation/runs [get]
func (h *AutomationHandler) Runs(c *gin.Context) {
	var job *models.JobName
	if v := c.Query("job"); v != "" {
		j := models.JobName(v)
		job = &j
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := h.service.Runs(c.Request.Context(), job, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

// @Summary      Scraper sources
// @Tags         Automation
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  config.ScraperSource
// @Router       /automation/sources [get]
func (h *AutomationHandler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Sources())
}
