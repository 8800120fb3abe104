package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kintamahadji/baileys-api/internal/service/session"
)

const streamBuffer = 16

func (h *Handler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.List())
}

func (h *Handler) FindSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Session found"})
}

func (h *Handler) SessionStatus(c *gin.Context) {
	ctrl, ok := h.sessions.Lookup(c.Param("sessionId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": ctrl.Status()})
}

// AddSession creates a session and answers once the first QR code is
// ready, the connection opened or the attempt failed. Every body field
// other than sessionId and readIncomingMessages is kept as a socket
// option.
func (h *Handler) AddSession(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		invalid(c, fieldError{Msg: "Invalid value", Location: "body"})
		return
	}
	id, _ := body["sessionId"].(string)
	if id == "" {
		invalid(c, fieldError{Msg: "Invalid value", Param: "sessionId", Location: "body"})
		return
	}
	readIncoming, _ := body["readIncomingMessages"].(bool)
	socket := session.SocketConfig{}
	for k, v := range body {
		if k != "sessionId" && k != "readIncomingMessages" {
			socket[k] = v
		}
	}

	reply := session.NewReply()
	_, err := h.sessions.Create(id, session.Options{
		ReadIncomingMessages: readIncoming,
		Socket:               socket,
		Reply:                reply,
	})
	if errors.Is(err, session.ErrAlreadyExists) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session already exists"})
		return
	}
	if err != nil {
		h.internalError(c, "session creation", err)
		return
	}

	resp, ok := reply.Wait(requestContext(c))
	if !ok {
		return
	}
	c.JSON(resp.Code, resp.Body)
}

// AddSessionSSE creates a session and streams every connection update as
// a server-sent event. The stream stays open after the session connects and
// ends when the caller leaves or the session gives up.
func (h *Handler) AddSessionSSE(c *gin.Context) {
	id := c.Param("sessionId")
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	stream := session.NewStream(streamBuffer)
	if _, err := h.sessions.Create(id, session.Options{Stream: stream}); err != nil {
		msg := "Session already exists"
		if !errors.Is(err, session.ErrAlreadyExists) {
			msg = "Unable to create session"
		}
		c.SSEvent("", gin.H{"error": msg})
		return
	}
	defer stream.Close()

	done := requestContext(c).Done()
	c.Stream(func(io.Writer) bool {
		select {
		case u, ok := <-stream.Updates():
			if !ok {
				return false
			}
			c.SSEvent("", u)
			return true
		case <-done:
			return false
		}
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// AddSessionWS is AddSessionSSE over a WebSocket: every update is one JSON
// text frame.
func (h *Handler) AddSessionWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	stream := session.NewStream(streamBuffer)
	if _, err := h.sessions.Create(c.Param("sessionId"), session.Options{Stream: stream}); err != nil {
		msg := "Session already exists"
		if !errors.Is(err, session.ErrAlreadyExists) {
			msg = "Unable to create session"
		}
		ws.WriteJSON(gin.H{"error": msg})
		return
	}
	defer stream.Close()

	// the client never sends anything; reading only notices it leaving
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				stream.Close()
				return
			}
		}
	}()

	for u := range stream.Updates() {
		if err := ws.WriteJSON(u); err != nil {
			return
		}
	}
	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Handler) DeleteSession(c *gin.Context) {
	h.sessions.Delete(c.Param("sessionId"))
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}
