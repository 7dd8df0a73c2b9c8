package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/object-recognition-dummy/internal/recognition"
)

const (
	// MaxRequestBodySize bounds a JSON recognize request, image data included.
	MaxRequestBodySize = 32 << 20

	RequestIDHeader = "X-Request-ID"
)

// RegisterRoutes wires the HTTP handlers to the Gin router. authMiddleware
// guards the recognizer routes when non-nil; /health stays open.
func RegisterRoutes(router *gin.Engine, recognizer recognition.Recognizer, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/")
	if authMiddleware != nil {
		api.Use(authMiddleware)
	}

	api.GET("/labels", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"labels": recognizer.Labels()})
	})

	api.POST("/recognize", func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBodySize)

		var req recognition.RecognizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recognize request"})
			return
		}

		ctx := recognition.ContextWithRequestID(c.Request.Context(), requestID)
		resp, err := recognizer.Recognize(ctx, &req)
		if err != nil {
			if errors.Is(err, recognition.ErrMissingImage) {
				c.JSON(http.StatusBadRequest, gin.H{"error": recognition.ErrMissingImage.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, resp)
	})
}
