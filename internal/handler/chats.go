package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kintamahadji/baileys-api/internal/data/store"
)

func chatPk(c *store.Chat) int64       { return c.PkID }
func messagePk(m *store.Message) int64 { return m.PkID }

func (h *Handler) ListChats(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	chats, err := h.stores.Chats.List(requestContext(c), c.Param("sessionId"), page)
	if err != nil {
		h.internalError(c, "chat list", err)
		return
	}
	c.JSON(http.StatusOK, newPage(chats, chatPk, page))
}

// FindChat lists the stored messages of one chat.
func (h *Handler) FindChat(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	messages, err := h.stores.Messages.List(requestContext(c), c.Param("sessionId"), c.Param("jid"), page)
	if err != nil {
		h.internalError(c, "messages list", err)
		return
	}
	c.JSON(http.StatusOK, newPage(messages, messagePk, page))
}
