package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reicrm/internal/models"
	"reicrm/internal/services"
)

type LeadHandler struct {
	service services.LeadService
}

func NewLeadHandler(service services.LeadService) *LeadHandler {
	return &LeadHandler{service: service}
}

type LeadStatusRequest struct {
	Status models.LeadStatus `json:"status" binding:"required"`
}

type AssignLeadRequest struct {
	AssignedTo *int64 `json:"assignedTo"`
}

type LeadNoteRequest struct {
	Text string `json:"text" binding:"required"`
}

func leadFilter(q *queryParser) models.LeadFilter {
	return models.LeadFilter{
		Status:         enum(q, "status", models.LeadStatus.Valid),
		Source:         enum(q, "source", models.LeadSource.Valid),
		Priority:       enum(q, "priority", models.LeadPriority.Valid),
		AssignedTo:     q.int64("assignedTo"),
		PropertyID:     q.int64("propertyId"),
		Tag:            q.string("tag"),
		FollowUpBefore: q.time("followUpBefore"),
		Search:         q.string("search"),
	}
}

// @Summary      List leads
// @Description  Agents only see leads they created or are assigned to
// @Tags         Leads
// @Produce      json
// @Security     BearerAuth
// @Param        status          query     string  false  "Status"
// @Param        source          query     string  false  "Source"
// @Param        priority        query     string  false  "Priority"
// @Param        assignedTo      query     int     false  "Assignee"
// @Param        propertyId      query     int     false  "Property"
// @Param        tag             query     string  false  "Tag"
// @Param        followUpBefore  query     string  false  "Follow-up due before"
// @Param        search          query     string  false  "Name, e-mail, phone or lead id"
// @Param        sortBy          query     string  false  "created_at|follow_up_date|priority|status"
// @Param        order           query     string  false  "asc|desc"
// @Param        page            query     int     false  "Page"
// @Param        limit           query     int     false  "Page size"
// @Success      200  {object}  models.ListResult[models.Lead]
// @Router       /leads [get]
func (h *LeadHandler) List(c *gin.Context) {
	q := &queryParser{c: c}
	filter := leadFilter(q)
	if q.err != nil {
		badRequest(c, q.err)
		return
	}
	res, err := h.service.List(c.Request.Context(), getActor(c), filter, pageFromQuery(c), sortFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Follow-ups due today
// @Tags         Leads
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  models.Lead
// @Router       /leads/follow-ups [get]
func (h *LeadHandler) FollowUps(c *gin.Context) {
	leads, err := h.service.FollowUps(c.Request.Context(), getActor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, leads)
}

// @Summary      Get lead
// @Tags         Leads
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Lead ID"
// @Success      200  {object}  models.Lead
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /leads/{id} [get]
func (h *LeadHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	lead, err := h.service.Get(c.Request.Context(), getActor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary      Create lead
// @Tags         Leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      services.LeadInput  true  "Lead"
// @Success      201   {object}  models.Lead
// @Failure      403   {object}  map[string]string  "plan limit reached"
// @Router       /leads [post]
func (h *LeadHandler) Create(c *gin.Context) {
	var in services.LeadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := h.service.Create(c.Request.Context(), getActor(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// @Summary      Update lead
// @Tags         Leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                 true  "Lead ID"
// @Param        body  body      services.LeadInput  true  "Fields to change"
// @Success      200   {object}  models.Lead
// @Router       /leads/{id} [put]
func (h *LeadHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in services.LeadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := h.service.Update(c.Request.Context(), getActor(c), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary      Delete lead
// @Tags         Leads
// @Security     BearerAuth
// @Param        id  path  int  true  "Lead ID"
// @Success      204
// @Router       /leads/{id} [delete]
func (h *LeadHandler) Delete(c *gin.Context) {
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

// @Summary      Change lead status
// @Tags         Leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "Lead ID"
// @Param        body  body      LeadStatusRequest  true  "Target status"
// @Success      200   {object}  models.Lead
// @Failure      409   {object}  map[string]string
// @Router       /leads/{id}/status [post]
func (h *LeadHandler) ChangeStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req LeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := h.service.ChangeStatus(c.Request.Context(), getActor(c), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary      Assign lead
// @Tags         Leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                true  "Lead ID"
// @Param        body  body      AssignLeadRequest  true  "Assignee"
// @Success      200   {object}  models.Lead
// @Router       /leads/{id}/assign [post]
func (h *LeadHandler) Assign(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req AssignLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := h.service.Assign(c.Request.Context(), id, req.AssignedTo)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary      Add note
// @Tags         Leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int              true  "Lead ID"
// @Param        body  body      LeadNoteRequest  true  "Note"
// @Success      201   {object}  models.Lead
// @Router       /leads/{id}/notes [post]
func (h *LeadHandler) AddNote(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req LeadNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lead, err := h.service.AddNote(c.Request.Context(), getActor(c), id, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}
