package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kintamahadji/baileys-api/internal/data/store"
)

func groupPk(g *store.GroupMetadata) int64 { return g.PkID }

// ListGroups lists the mirrored group metadata.
func (h *Handler) ListGroups(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	groups, err := h.stores.Groups.List(requestContext(c), c.Param("sessionId"), page)
	if err != nil {
		h.internalError(c, "group list", err)
		return
	}
	c.JSON(http.StatusOK, newPage(groups, groupPk, page))
}

// FindGroup fetches live metadata from the server.
func (h *Handler) FindGroup(c *gin.Context) {
	conn, err := h.conn(c)
	if err != nil {
		h.internalError(c, "group metadata fetch", err)
		return
	}
	meta, err := conn.GroupMetadata(requestContext(c), c.Param("jid"))
	if err != nil {
		h.internalError(c, "group metadata fetch", err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *Handler) GroupPhoto(c *gin.Context) { h.photo(c, true) }
