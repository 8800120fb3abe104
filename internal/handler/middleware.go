package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

func keyMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// APIKey checks the X-API-Key header when a key is configured.
func (h *Handler) APIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.apiKey == "" {
			c.Next()
			return
		}
		key := c.GetHeader("X-API-Key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "X-API-Key Header doesn't exist"})
			return
		}
		if !keyMatches(key, h.apiKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Your API key is invalid"})
			return
		}
		c.Next()
	}
}

// APIKeyQuery checks the api_key query parameter, for clients such as
// EventSource that cannot set headers.
func (h *Handler) APIKeyQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.apiKey == "" {
			c.Next()
			return
		}
		key := c.Query("api_key")
		if key == "" {
			key = c.Query("API_KEY")
		}
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "api_key query params doesn't exist"})
			return
		}
		if !keyMatches(key, h.apiKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Your API key is invalid"})
			return
		}
		c.Next()
	}
}

// SessionExists rejects requests for sessions that are not registered.
func (h *Handler) SessionExists() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.sessions.Exists(c.Param("sessionId")) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		c.Next()
	}
}
