package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/service/session"
)

func contactPk(c *store.Contact) int64 { return c.PkID }

// jidExists checks a number against the account directory, or a group
// against its metadata.
func jidExists(ctx context.Context, conn session.Conn, jid string, group bool) (bool, error) {
	if group {
		meta, err := conn.GroupMetadata(ctx, jid)
		if err != nil {
			return false, err
		}
		return meta != nil && meta.ID != "", nil
	}
	result, err := conn.OnWhatsApp(ctx, jid)
	if err != nil {
		return false, err
	}
	return len(result) > 0 && result[0].Exists, nil
}

func (h *Handler) ListContacts(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	contacts, err := h.stores.Contacts.List(requestContext(c), c.Param("sessionId"), "s.whatsapp.net", page)
	if err != nil {
		h.internalError(c, "contact list", err)
		return
	}
	c.JSON(http.StatusOK, newPage(contacts, contactPk, page))
}

func (h *Handler) ListBlocked(c *gin.Context) {
	conn, err := h.conn(c)
	if err != nil {
		h.internalError(c, "blocklist fetch", err)
		return
	}
	list, err := conn.Blocklist(requestContext(c))
	if err != nil {
		h.internalError(c, "blocklist fetch", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type blockRequest struct {
	JID    string `json:"jid" binding:"required"`
	Action string `json:"action" binding:"omitempty,oneof=block unblock"`
}

func (h *Handler) UpdateBlock(c *gin.Context) {
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, fieldError{Msg: err.Error(), Location: "body"})
		return
	}
	if req.Action == "" {
		req.Action = "block"
	}

	ctx := requestContext(c)
	conn, err := h.conn(c)
	if err != nil {
		h.internalError(c, "blocklist update", err)
		return
	}
	exists, err := jidExists(ctx, conn, req.JID, false)
	if err != nil {
		h.internalError(c, "blocklist update", err)
		return
	}
	if !exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Jid does not exists"})
		return
	}
	if err := conn.UpdateBlockStatus(ctx, req.JID, req.Action == "block"); err != nil {
		h.internalError(c, "blocklist update", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contact " + req.Action + "ed"})
}

func (h *Handler) CheckContact(c *gin.Context) {
	conn, err := h.conn(c)
	if err != nil {
		h.internalError(c, "jid check", err)
		return
	}
	exists, err := jidExists(requestContext(c), conn, c.Param("jid"), false)
	if err != nil {
		h.internalError(c, "jid check", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (h *Handler) ContactPhoto(c *gin.Context) { h.photo(c, false) }

func (h *Handler) photo(c *gin.Context, group bool) {
	ctx := requestContext(c)
	jid := c.Param("jid")
	conn, err := h.conn(c)
	if err != nil {
		h.internalError(c, "photo fetch", err)
		return
	}
	exists, err := jidExists(ctx, conn, jid, group)
	if err != nil {
		h.internalError(c, "photo fetch", err)
		return
	}
	if !exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Jid does not exists"})
		return
	}
	url, err := conn.ProfilePictureURL(ctx, jid)
	if err != nil {
		h.internalError(c, "photo fetch", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
