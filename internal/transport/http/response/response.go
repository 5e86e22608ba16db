package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                  = 0
	CodeBadRequest          = 40000
	CodeUsernameExists      = 40001
	CodeNoMatchingDocuments = 40002
	CodeModelNotOffered     = 40003
	CodeNoText              = 40004
	CodeUnauthorized        = 40100
	CodeInvalidCredentials  = 40101
	CodeForbidden           = 40300
	CodeNotFound            = 40400
	CodeDocumentNotFound    = 40401
	CodeChatNotFound        = 40402
	CodeUserNotFound        = 40403
	CodeTagNotFound         = 40404
	CodeConflict            = 40900
	CodeDuplicateTitle      = 40901
	CodeTagExists           = 40902
	CodeTagInUse            = 40903
	CodeInternalServer      = 50000
	CodeUnavailable         = 50300
	CodeDataUnavailable     = 50301
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
