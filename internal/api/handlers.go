package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/player-api/internal/dispatcher"
	apperrors "github.com/killallgit/player-api/pkg/errors"
)

// operation builds a gin.HandlerFunc that merges the request's path
// params, query string and JSON body into one dispatcher.Params map
// and dispatches it under the given wire operation name. A path param
// always wins over a query or body field of the same name, since path
// params are the caller's unambiguous addressing of the resource.
func (s *Server) operation(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.dispatchWith(c, name, collectParams(c))
	}
}

// operationRenaming is operation, except the path's ":id" wildcard is
// relabeled before dispatch. Several routes share the ":id" tree
// position (gin requires one wildcard name per position) but the
// operation they dispatch to names that id differently — "sectionId"
// for all_purges, "markerId" for restore/ignore_purge.
func (s *Server) operationRenaming(name, to string) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := collectParams(c)
		if id, ok := params["id"]; ok {
			delete(params, "id")
			params[to] = id
		}
		s.dispatchWith(c, name, params)
	}
}

func (s *Server) dispatchWith(c *gin.Context, name string, params dispatcher.Params) {
	result, err := s.svc.Dispatch(c.Request.Context(), name, params)
	if err != nil {
		writeError(c, err)
		return
	}
	if result == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, result)
}

func collectParams(c *gin.Context) dispatcher.Params {
	params := dispatcher.Params{}

	var body map[string]string
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&body)
	}
	for k, v := range body {
		params[k] = v
	}

	for k, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[k] = values[0]
		}
	}

	for _, p := range c.Params {
		params[p.Key] = p.Value
	}

	return params
}

func writeError(c *gin.Context, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		})
		return
	}
	c.JSON(appErr.GetHTTPCode(), appErr)
}
