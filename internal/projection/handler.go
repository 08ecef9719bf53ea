package projection

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/pulse-lab/project-pulse/internal/core/errors"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/aggregates", s.HandleQueryAggregates)
	r.GET("/v1/aggregates/summary", s.HandleQuerySummary)
}

// HandleQueryAggregates handles GET /v1/aggregates
// Query parameters: granularity, group, start, end
func (s *Service) HandleQueryAggregates(c *gin.Context) {
	req, ok := bindQuery(c)
	if !ok {
		return
	}

	resp, err := s.QueryAggregates(c.Request.Context(), req)
	if err != nil {
		writeQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleQuerySummary handles GET /v1/aggregates/summary
// Query parameters: granularity, group, start, end
func (s *Service) HandleQuerySummary(c *gin.Context) {
	req, ok := bindQuery(c)
	if !ok {
		return
	}

	resp, err := s.QuerySummary(c.Request.Context(), req)
	if err != nil {
		writeQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func bindQuery(c *gin.Context) (AggregateQueryRequest, bool) {
	var req AggregateQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return req, false
	}
	return req, true
}

func writeQueryError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidQuery) {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid aggregate query",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   "Failed to query aggregates",
		Details:   err.Error(),
	})
}
