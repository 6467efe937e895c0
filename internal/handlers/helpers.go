package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"reicrm/internal/middleware"
	"reicrm/internal/models"
	"reicrm/internal/services"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

func getActor(c *gin.Context) services.Actor {
	return services.Actor{
		UserID: middleware.UserIDFrom(c),
		Role:   middleware.RoleFrom(c),
		Plan:   middleware.PlanFrom(c),
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// pageFromQuery reads page (>=1, default 1) and limit (1..100, default 20).
func pageFromQuery(c *gin.Context) models.Page {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return models.Page{Page: page, Limit: limit}
}

// sortFromQuery reads sortBy and order; repositories fall back on unknown columns.
func sortFromQuery(c *gin.Context) models.Sort {
	return models.Sort{
		Column: strings.TrimSpace(c.Query("sortBy")),
		Desc:   !strings.EqualFold(c.Query("order"), "asc"),
	}
}

// queryParser collects the first malformed query parameter.
type queryParser struct {
	c   *gin.Context
	err error
}

func (q *queryParser) fail(key string) {
	if q.err == nil {
		q.err = fmt.Errorf("invalid %s", key)
	}
}

func (q *queryParser) int64(key string) *int64 {
	v := strings.TrimSpace(q.c.Query(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		q.fail(key)
		return nil
	}
	return &n
}

func (q *queryParser) int(key string) *int {
	n := q.int64(key)
	if n == nil {
		return nil
	}
	i := int(*n)
	return &i
}

func (q *queryParser) float(key string) *float64 {
	v := strings.TrimSpace(q.c.Query(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		q.fail(key)
		return nil
	}
	return &f
}

func (q *queryParser) bool(key string) *bool {
	v := strings.TrimSpace(q.c.Query(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(key)
		return nil
	}
	return &b
}

// time accepts RFC 3339 or a bare date.
func (q *queryParser) time(key string) *time.Time {
	v := strings.TrimSpace(q.c.Query(key))
	if v == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	q.fail(key)
	return nil
}

func (q *queryParser) string(key string) string {
	return strings.TrimSpace(q.c.Query(key))
}

// enum parses a string-typed value checked by valid.
func enum[T ~string](q *queryParser, key string, valid func(T) bool) *T {
	v := strings.TrimSpace(q.c.Query(key))
	if v == "" {
		return nil
	}
	t := T(v)
	if !valid(t) {
		q.fail(key)
		return nil
	}
	return &t
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// writeError maps service errors to status codes; anything unknown is a 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ValidationMessage(err)})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrPlanLimit):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
