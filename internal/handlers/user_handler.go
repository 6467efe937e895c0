package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reicrm/internal/authz"
	"reicrm/internal/models"
	"reicrm/internal/services"
)

type UserHandler struct {
	service services.UserService
}

func NewUserHandler(service services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// @Summary      List users
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Param        role      query     string  false  "admin|manager|agent|viewer"
// @Param        plan      query     string  false  "free|basic|professional|enterprise"
// @Param        isActive  query     bool    false  "Active flag"
// @Param        search    query     string  false  "Name or e-mail"
// @Param        page      query     int     false  "Page"
// @Param        limit     query     int     false  "Page size"
// @Success      200       {object}  models.ListResult[models.User]
// @Router       /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	q := &queryParser{c: c}
	filter := models.UserFilter{
		Role:     enum(q, "role", authz.Role.Valid),
		Plan:     enum(q, "plan", authz.Plan.Valid),
		IsActive: q.bool("isActive"),
		Search:   q.string("search"),
	}
	if q.err != nil {
		badRequest(c, q.err)
		return
	}
	res, err := h.service.List(c.Request.Context(), filter, pageFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Get user
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  models.User
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /users/{id} [get]
func (h *UserHandler) GetUserByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, err := h.service.Get(c.Request.Context(), getActor(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Create user
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      services.CreateUserInput  true  "User"
// @Success      201   {object}  models.User
// @Failure      409   {object}  map[string]string
// @Router       /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var in services.CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// @Summary      Update user
// @Description  Admins may change any field; users may edit their own profile fields
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                       true  "User ID"
// @Param        body  body      services.UpdateUserInput  true  "Fields to change"
// @Success      200   {object}  models.User
// @Router       /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in services.UpdateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.service.Update(c.Request.Context(), getActor(c), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Summary      Delete user
// @Tags         Users
// @Security     BearerAuth
// @Param        id  path  int  true  "User ID"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
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

// @Summary      Change subscription
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                         true  "User ID"
// @Param        body  body      services.SubscriptionInput  true  "Subscription"
// @Success      200   {object}  models.User
// @Router       /users/{id}/subscription [put]
func (h *UserHandler) UpdateSubscription(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in services.SubscriptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.service.UpdateSubscription(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
