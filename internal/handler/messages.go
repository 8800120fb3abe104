package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kintamahadji/baileys-api/internal/service/session"
	"github.com/kintamahadji/baileys-api/internal/utils/jid"
)

// errNoAccount is reported for recipients that do not exist.
var errNoAccount = errors.New("JID does not exist")

func (h *Handler) ListMessages(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	messages, err := h.stores.Messages.List(requestContext(c), c.Param("sessionId"), "", page)
	if err != nil {
		h.internalError(c, "message list", err)
		return
	}
	c.JSON(http.StatusOK, newPage(messages, messagePk, page))
}

type outgoingMessage struct {
	Text string `json:"text" binding:"required"`
}

type sendRequest struct {
	JID     string           `json:"jid" binding:"required"`
	Type    string           `json:"type" binding:"omitempty,oneof=group number"`
	Message *outgoingMessage `json:"message" binding:"required"`
	Options map[string]any   `json:"options"`
	// Delay, in milliseconds, before the message is sent. Bulk only.
	Delay int `json:"delay" binding:"gte=0"`
}

// send checks the recipient and sends one message.
func send(ctx context.Context, conn session.Conn, req *sendRequest) (any, error) {
	group := req.Type == "group"
	to, err := jid.Format(req.JID, group)
	if err != nil {
		return nil, err
	}
	exists, err := jidExists(ctx, conn, to.String(), group)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errNoAccount
	}
	return conn.SendText(ctx, to.String(), req.Message.Text)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, fieldError{Msg: err.Error(), Location: "body"})
		return
	}
	conn, err := h.conn(c)
	if err != nil {
		h.internalError(c, "message send", err)
		return
	}
	result, err := send(requestContext(c), conn, &req)
	if errors.Is(err, errNoAccount) || errors.Is(err, jid.ErrEmpty) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.internalError(c, "message send", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type bulkError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// SendBulk sends every message in order, honoring each item's delay, and
// reports per-item results and failures.
func (h *Handler) SendBulk(c *gin.Context) {
	var reqs []sendRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		invalid(c, fieldError{Msg: err.Error(), Location: "body"})
		return
	}
	if len(reqs) == 0 {
		invalid(c, fieldError{Msg: "Invalid value", Location: "body"})
		return
	}
	conn, err := h.conn(c)
	if err != nil {
		h.internalError(c, "message send", err)
		return
	}

	ctx := requestContext(c)
	results := make([]any, 0, len(reqs))
	errs := make([]bulkError, 0)
	for i := range reqs {
		if d := reqs[i].Delay; d > 0 {
			timer := time.NewTimer(time.Duration(d) * time.Millisecond)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		result, err := send(ctx, conn, &reqs[i])
		if err != nil {
			h.log.Warnf("Bulk message %d failed: %v", i, err)
			errs = append(errs, bulkError{Index: i, Error: err.Error()})
			continue
		}
		results = append(results, result)
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "errors": errs})
}
