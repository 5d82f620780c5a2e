package hint

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"sql-sandbox/pkg/req"
	"sql-sandbox/pkg/res"
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
	router.Handle("POST /api/sql/hint", c.GetHint())
	return c
}

func (c *Controller) GetHint() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := req.HandleBody[HintRequest](&w, r)
		if err != nil {
			return
		}

		text, err := c.Service.Hint(r.Context(), *body)
		switch {
		case err == nil:
			res.Json(w, HintResponse{Hint: text}, http.StatusOK)
		case errors.Is(err, ErrNotFound):
			res.Error(w, "Assignment not found", http.StatusNotFound)
		case errors.Is(err, ErrRateLimited):
			res.Error(w, err.Error(), http.StatusTooManyRequests)
		case errors.Is(err, ErrNotConfigured):
			res.Error(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, ErrUnavailable):
			res.Error(w, "Failed to generate hint from LLM", http.StatusBadGateway)
		default:
			c.log.Error("hint failed", zap.Error(err))
			res.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
