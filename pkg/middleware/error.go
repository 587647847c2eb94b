package middleware

import (
	"errors"
	"net/http"

	"smallbiznis-crm/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error pushed with c.Error once the handler chain returns.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var v errutil.BaseError
		if errors.As(last.Err, &v) {
			if v.Code.HTTPStatus() >= http.StatusInternalServerError {
				zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(last.Err))
			}
			c.JSON(v.Code.HTTPStatus(), v.JSON())
			return
		}

		zap.L().Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(last.Err))
		c.JSON(http.StatusInternalServerError, errutil.New(errutil.StatusInternal, "internal error").(errutil.BaseError).JSON())
	}
}
