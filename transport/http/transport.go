package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/kit/endpoint"

	"github.com/finvoke/finvoke"
)

// ConversationHeader carries the caller-supplied conversation identity used
// to key the call budget.
const ConversationHeader = "X-Conversation-ID"

func failed(c *gin.Context, status int, err error) {
	c.Error(err)
	c.Abort()
	c.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  finvoke.Kind(err),
	})
}

func DispatchHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req finvoke.DispatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failed(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()

		conversationID := c.GetHeader(ConversationHeader)
		if conversationID != "" {
			ctx = context.WithValue(ctx, finvoke.ConversationID, conversationID)
		}

		resp, err := endpoint(ctx, req)
		if err != nil {
			failed(c, http.StatusExpectationFailed, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ListToolsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		resp, err := endpoint(ctx, nil)
		if err != nil {
			failed(c, http.StatusExpectationFailed, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func IngestHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req finvoke.IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			failed(c, http.StatusBadRequest, err)
			return
		}

		ctx := c.Request.Context()
		if _, err := endpoint(ctx, req); err != nil {
			failed(c, http.StatusExpectationFailed, err)
			return
		}

		c.String(http.StatusOK, "OK")
	}
}

func StatsHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		resp, err := endpoint(ctx, nil)
		if err != nil {
			failed(c, http.StatusExpectationFailed, err)
			return
		}

		c.JSON(http.StatusOK, &resp)
	}
}

func ResetBudgetHandler(endpoint endpoint.Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversation_id")
		if conversationID == "" {
			failed(c, http.StatusBadRequest, errors.New("conversation id is required"))
			return
		}

		ctx := c.Request.Context()
		if _, err := endpoint(ctx, conversationID); err != nil {
			failed(c, http.StatusExpectationFailed, err)
			return
		}

		c.String(http.StatusOK, "OK")
	}
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
		})
	}
}
