package sqlproxy

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
	router.Handle("POST /api/sql/execute", c.Execute())
	return c
}

func (c *Controller) Execute() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := req.HandleBody[QueryRequest](&w, r)
		if err != nil {
			return
		}

		out, err := c.Service.Run(r.Context(), Query{
			Text:          body.Query,
			SchemaContext: body.SchemaContext,
			AssignmentID:  body.AssignmentID,
		})
		if err != nil {
			var qErr *Error
			if !errors.As(err, &qErr) {
				c.log.Error("unexpected orchestrator error", zap.Error(err))
				res.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			res.Json(w, NewErrorResponse(qErr), StatusFor(qErr.Kind))
			return
		}

		res.Json(w, NewQueryResponse(out), http.StatusOK)
	}
}

func StatusFor(kind ErrorKind) int {
	switch kind {
	case InvalidQuery:
		return http.StatusBadRequest
	case QueryTimedOut:
		return http.StatusRequestTimeout
	default:
		return http.StatusUnprocessableEntity
	}
}
