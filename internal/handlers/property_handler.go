package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reicrm/internal/models"
	"reicrm/internal/services"
)

type PropertyHandler struct {
	service services.PropertyService
}

func NewPropertyHandler(service services.PropertyService) *PropertyHandler {
	return &PropertyHandler{service: service}
}

type AssignPropertyRequest struct {
	AssignedTo *int64              `json:"assignedTo"`
	Priority   models.LeadPriority `json:"priority"`
}

func propertyFilter(q *queryParser) models.PropertyFilter {
	return models.PropertyFilter{
		Status:       enum(q, "status", models.PropertyStatus.Valid),
		PropertyType: enum(q, "propertyType", models.PropertyType.Valid),
		City:         q.string("city"),
		State:        q.string("state"),
		ZipCode:      q.string("zipCode"),
		County:       q.string("county"),
		Source: enum(q, "source", func(s models.PropertySource) bool {
			return s == models.SourceManual || s == models.SourceScraper || s == models.SourceImport
		}),
		AssignedTo:  q.int64("assignedTo"),
		MinPrice:    q.float("minPrice"),
		MaxPrice:    q.float("maxPrice"),
		MinBeds:     q.int("minBeds"),
		MinBaths:    q.float("minBaths"),
		AuctionFrom: q.time("auctionFrom"),
		AuctionTo:   q.time("auctionTo"),
		Search:      q.string("search"),
	}
}

// @Summary      List properties
// @Tags         Properties
// @Produce      json
// @Security     BearerAuth
// @Param        status        query     string  false  "Status"
// @Param        propertyType  query     string  false  "Type"
// @Param        city          query     string  false  "City"
// @Param        state         query     string  false  "State"
// @Param        zipCode       query     string  false  "Zip code"
// @Param        minPrice      query     number  false  "Minimum list price"
// @Param        maxPrice      query     number  false  "Maximum list price"
// @Param        auctionFrom   query     string  false  "Auction date from"
// @Param        auctionTo     query     string  false  "Auction date to"
// @Param        search        query     string  false  "Street, city or case number"
// @Param        sortBy        query     string  false  "created_at|list_price|auction_date|estimated_value|square_feet"
// @Param        order         query     string  false  "asc|desc"
// @Param        page          query     int     false  "Page"
// @Param        limit         query     int     false  "Page size"
// @Success      200  {object}  models.ListResult[models.Property]
// @Router       /properties [get]
func (h *PropertyHandler) List(c *gin.Context) {
	q := &queryParser{c: c}
	filter := propertyFilter(q)
	if q.err != nil {
		badRequest(c, q.err)
		return
	}
	res, err := h.service.List(c.Request.Context(), filter, pageFromQuery(c), sortFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Property statistics
// @Tags         Properties
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.PropertyStats
// @Router       /properties/stats [get]
func (h *PropertyHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary      Get property
// @Tags         Properties
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Property ID"
// @Success      200  {object}  models.Property
// @Failure      404  {object}  map[string]string
// @Router       /properties/{id} [get]
func (h *PropertyHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Create property
// @Tags         Properties
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      services.PropertyInput  true  "Property"
// @Success      201   {object}  models.Property
// @Failure      400   {object}  map[string]string
// @Router       /properties [post]
func (h *PropertyHandler) Create(c *gin.Context) {
	var in services.PropertyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.Create(c.Request.Context(), getActor(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary      Update property
// @Tags         Properties
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                     true  "Property ID"
// @Param        body  body      services.PropertyInput  true  "Fields to change"
// @Success      200   {object}  models.Property
// @Failure      403   {object}  map[string]string
// @Router       /properties/{id} [put]
func (h *PropertyHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in services.PropertyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.Update(c.Request.Context(), getActor(c), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Delete property
// @Description  Linked leads are kept and unlinked; analyses are deleted
// @Tags         Properties
// @Security     BearerAuth
// @Param        id  path  int  true  "Property ID"
// @Success      204
// @Router       /properties/{id} [delete]
func (h *PropertyHandler) Delete(c *gin.Context) {
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

// @Summary      Assign property
// @Tags         Properties
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                    true  "Property ID"
// @Param        body  body      AssignPropertyRequest  true  "Assignee and priority"
// @Success      200   {object}  models.Property
// @Failure      400   {object}  map[string]string
// @Router       /properties/{id}/assign [put]
func (h *PropertyHandler) Assign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req AssignPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.Assign(c.Request.Context(), id, req.AssignedTo, req.Priority)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
