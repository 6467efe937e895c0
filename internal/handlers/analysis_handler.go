package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"reicrm/internal/finance"
	"reicrm/internal/models"
	"reicrm/internal/services"
)

type AnalysisHandler struct {
	service services.AnalysisService
}

func NewAnalysisHandler(service services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

type CalculateRequest struct {
	Type   finance.AnalysisType `json:"type" binding:"required"`
	Inputs finance.Inputs       `json:"inputs"`
}

// @Summary      Calculate without saving
// @Tags         Analysis
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      CalculateRequest  true  "Type and inputs"
// @Success      200   {object}  finance.Results
// @Failure      400   {object}  map[string]string
// @Router       /analysis/calculate [post]
func (h *AnalysisHandler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.service.Calculate(req.Type, req.Inputs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      List analyses
// @Tags         Analysis
// @Produce      json
// @Security     BearerAuth
// @Param        propertyId  query     int     false  "Property"
// @Param        type        query     string  false  "rental|flip|wholesale"
// @Param        page        query     int     false  "Page"
// @Param        limit       query     int     false  "Page size"
// @Success      200  {object}  models.ListResult[models.Analysis]
// @Router       /analysis [get]
func (h *AnalysisHandler) List(c *gin.Context) {
	q := &queryParser{c: c}
	filter := models.AnalysisFilter{
		PropertyID: q.int64("propertyId"),
		Type:       enum(q, "type", finance.AnalysisType.Valid),
	}
	if q.err != nil {
		badRequest(c, q.err)
		return
	}
	res, err := h.service.List(c.Request.Context(), getActor(c), filter, pageFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Get analysis
// @Tags         Analysis
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Analysis ID"
// @Success      200  {object}  models.Analysis
// @Router       /analysis/{id} [get]
func (h *AnalysisHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	a, err := h.service.Get(c.Request.Context(), getActor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary      Save analysis
// @Tags         Analysis
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      services.AnalysisInput  true  "Analysis"
// @Success      201   {object}  models.Analysis
// @Router       /analysis [post]
func (h *AnalysisHandler) Create(c *gin.Context) {
	var in services.AnalysisInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.service.Create(c.Request.Context(), getActor(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary      Update analysis
// @Description  Results are recomputed from the new inputs
// @Tags         Analysis
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                     true  "Analysis ID"
// @Param        body  body      services.AnalysisInput  true  "Analysis"
// @Success      200   {object}  models.Analysis
// @Router       /analysis/{id} [put]
func (h *AnalysisHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in services.AnalysisInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.service.Update(c.Request.Context(), getActor(c), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary      Delete analysis
// @Tags         Analysis
// @Security     BearerAuth
// @Param        id  path  int  true  "Analysis ID"
// @Success      204
// @Router       /analysis/{id} [delete]
func (h *AnalysisHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), getActor(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Amortization schedule
// @Tags         Analysis
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Analysis ID"
// @Success      200  {object}  finance.AmortizationSchedule
// @Router       /analysis/{id}/amortization [get]
func (h *AnalysisHandler) Amortization(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s, err := h.service.Amortization(c.Request.Context(), getActor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary      Analysis PDF report
// @Tags         Analysis
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id  path  int  true  "Analysis ID"
// @Success      200  {file}  file
// @Router       /analysis/{id}/pdf [get]
func (h *AnalysisHandler) PDF(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	doc, err := h.service.Report(c.Request.Context(), getActor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="analysis-%d.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", doc)
}
