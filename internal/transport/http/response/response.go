package response

import "github.com/gin-gonic/gin"

const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeNotPDF         = "NOT_PDF"
	CodeMessageEmpty   = "MESSAGE_EMPTY"
	CodeNotIndexed     = "NOT_INDEXED"
	CodeTaskBusy       = "TASK_BUSY"
	CodeStoreFailed    = "STORE_FAILED"
	CodeIndexFailed    = "INDEX_FAILED"
	CodePartialDelete  = "PARTIAL_DELETE"
	CodeDeleteFailed   = "DELETE_FAILED"
	CodeInternalServer = "INTERNAL_ERROR"
)

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Side    string      `json:"side,omitempty"`
	Task    interface{} `json:"task,omitempty"`
}

// OK writes data as the whole body, without an envelope.
func OK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

func Message(c *gin.Context, message string, extra gin.H) {
	body := gin.H{"message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(200, body)
}

func Error(c *gin.Context, httpStatus int, code, message string) {
	c.JSON(httpStatus, ErrorBody{
		Code:    code,
		Message: message,
	})
}

func ErrorWithCause(c *gin.Context, httpStatus int, code, message string, err error) {
	body := ErrorBody{Code: code, Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	c.JSON(httpStatus, body)
}

// TaskError reports a failed orchestrated task together with its final state.
func TaskError(c *gin.Context, httpStatus int, body ErrorBody) {
	c.JSON(httpStatus, body)
}
