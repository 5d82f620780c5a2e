package assignment

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"sql-sandbox/pkg/res"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ControllerDeps struct {
	*Service
	Log *zap.Logger
}

type Controller struct {
	*Service
	log *zap.Logger
}

func NewController(router *http.ServeMux, deps ControllerDeps) *Controller {
	c := &Controller{Service: deps.Service, log: deps.Log}
	router.Handle("GET /api/assignments", c.List())
	router.Handle("GET /api/assignments/{id}", c.GetByID())
	return c
}

func (c *Controller) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, err := parseListQuery(r)
		if err != nil {
			res.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		out, err := c.Service.List(r.Context(), *query)
		if err != nil {
			c.log.Error("list assignments", zap.Error(err))
			res.Error(w, "failed to fetch assignments", http.StatusInternalServerError)
			return
		}
		res.Json(w, out, http.StatusOK)
	}
}

func (c *Controller) GetByID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := c.Service.Get(r.Context(), r.PathValue("id"))
		if errors.Is(err, ErrNotFound) {
			res.Error(w, "Assignment not found", http.StatusNotFound)
			return
		}
		if err != nil {
			c.log.Error("get assignment", zap.String("id", r.PathValue("id")), zap.Error(err))
			res.Error(w, "failed to fetch assignment", http.StatusInternalServerError)
			return
		}
		res.Json(w, a, http.StatusOK)
	}
}

func parseListQuery(r *http.Request) (*ListQuery, error) {
	values := r.URL.Query()

	difficulty := strings.TrimSpace(values.Get("difficulty"))
	for _, ch := range difficulty {
		if !unicode.IsLetter(ch) && ch != '-' && ch != ' ' {
			return nil, errors.New("difficulty may only contain letters, spaces and hyphens")
		}
	}

	page := 1
	if value := strings.TrimSpace(values.Get("page")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			return nil, errors.New("page must be an integer >= 1")
		}
		page = parsed
	}

	pageSize := defaultPageSize
	if value := strings.TrimSpace(values.Get("pageSize")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 || parsed > maxPageSize {
			return nil, errors.New("pageSize must be an integer between 1 and 100")
		}
		pageSize = parsed
	}

	return &ListQuery{Difficulty: difficulty, Page: page, PageSize: pageSize}, nil
}
