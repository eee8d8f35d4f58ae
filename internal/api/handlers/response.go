package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse represents a plain informational response
type MessageResponse struct {
	Detail string `json:"detail"`
}

// RespondError sends an error response
func RespondError(c *gin.Context, statusCode int, errorCode string, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// RespondMessage sends a success response carrying only a message
func RespondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, MessageResponse{Detail: message})
}
