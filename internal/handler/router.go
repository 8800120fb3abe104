package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Router builds the gin engine with every route registered. base receives
// the request log.
func (h *Handler) Router(base *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(base), gin.Recovery())

	sessions := r.Group("/sessions")
	{
		sessions.GET("", h.APIKey(), h.ListSessions)
		sessions.GET("/:sessionId", h.APIKey(), h.SessionExists(), h.FindSession)
		sessions.GET("/:sessionId/status", h.APIKey(), h.SessionExists(), h.SessionStatus)
		sessions.POST("/add", h.APIKey(), h.AddSession)
		sessions.GET("/:sessionId/add-sse", h.APIKeyQuery(), h.AddSessionSSE)
		sessions.GET("/:sessionId/add-ws", h.APIKeyQuery(), h.AddSessionWS)
		sessions.DELETE("/:sessionId", h.APIKey(), h.SessionExists(), h.DeleteSession)
	}

	scoped := r.Group("/:sessionId", h.APIKey())
	{
		scoped.GET("/chats", h.ListChats)
		scoped.GET("/chats/:jid", h.FindChat)

		scoped.GET("/contacts", h.ListContacts)
		scoped.GET("/contacts/blocklist", h.SessionExists(), h.ListBlocked)
		scoped.POST("/contacts/blocklist/update", h.SessionExists(), h.UpdateBlock)
		scoped.GET("/contacts/:jid", h.SessionExists(), h.CheckContact)
		scoped.GET("/contacts/:jid/photo", h.SessionExists(), h.ContactPhoto)

		scoped.GET("/groups", h.ListGroups)
		scoped.GET("/groups/:jid", h.SessionExists(), h.FindGroup)
		scoped.GET("/groups/:jid/photo", h.SessionExists(), h.GroupPhoto)

		scoped.GET("/messages", h.ListMessages)
		scoped.POST("/messages/send", h.SessionExists(), h.SendMessage)
		scoped.POST("/messages/send/bulk", h.SessionExists(), h.SendBulk)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "URL not found"})
	})
	return r
}

func requestLogger(base *zap.Logger) gin.HandlerFunc {
	log := base.Named("HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
