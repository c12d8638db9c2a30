package response

import (
	"net/http"

	"marketplace-core/pkg/errno"
	"marketplace-core/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response defines the standard JSON structure
type Response struct {
	Code    int         `json:"code"`
	Name    string      `json:"name,omitempty"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Success returns a success response with data
func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data)
}

// JSON returns a success envelope with a custom status
func JSON(c *gin.Context, status int, data interface{}) {
	if data == nil {
		data = gin.H{} // Return empty object instead of null
	}
	c.JSON(status, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Error returns an error response. Internal errors are logged and reported without detail.
func Error(c *gin.Context, err error) {
	status := errno.HTTPStatus(err)
	code, msg := errno.Decode(err)
	name := errno.NameOf(err)
	if !errno.IsUserFacing(err) {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("error_name", name),
			zap.Error(err))
		code, msg = errno.InternalServerError.Code, errno.InternalServerError.Message
		name = errno.InternalServerError.Name
	}
	c.JSON(status, Response{
		Code:    code,
		Name:    name,
		Message: msg,
		Data:    gin.H{},
	})
}
