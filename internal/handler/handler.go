// Package handler exposes the session gateway over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/service/session"
)

// Sessions is the part of the session manager the HTTP layer drives.
type Sessions interface {
	Create(id string, opts session.Options) (*session.Controller, error)
	Lookup(id string) (*session.Controller, bool)
	Exists(id string) bool
	List() []session.Info
	Delete(id string)
}

// Handler holds the dependencies shared by every route.
type Handler struct {
	sessions Sessions
	stores   *store.Container
	log      waLog.Logger
	apiKey   string
}

// New creates a Handler. An empty apiKey disables key checks.
func New(sessions Sessions, stores *store.Container, apiKey string, log waLog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		stores:   stores,
		log:      log.Sub("HTTP"),
		apiKey:   apiKey,
	}
}

// fieldError mirrors one entry of a 400 validation response.
type fieldError struct {
	Msg      string `json:"msg"`
	Param    string `json:"param,omitempty"`
	Location string `json:"location"`
}

func invalid(c *gin.Context, errs ...fieldError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"errors": errs})
}

// internalError logs err and answers with the generic message of the
// failed operation.
func (h *Handler) internalError(c *gin.Context, op string, err error) {
	message := "An error occured during " + op
	h.log.Errorf("%s: %v", message, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

// parsePage reads the cursor and limit query parameters.
func parsePage(c *gin.Context) (store.Page, bool) {
	var page store.Page
	var errs []fieldError
	if v := c.Query("cursor"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fieldError{Msg: "Invalid value", Param: "cursor", Location: "query"})
		}
		page.Cursor = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fieldError{Msg: "Invalid value", Param: "limit", Location: "query"})
		}
		page.Limit = n
	}
	if len(errs) > 0 {
		invalid(c, errs...)
		return page, false
	}
	if page.Limit <= 0 {
		page.Limit = store.DefaultPageLimit
	}
	return page, true
}

// paginated is the body of every list route. Cursor is null on the last
// page.
type paginated[T any] struct {
	Data   []T    `json:"data"`
	Cursor *int64 `json:"cursor"`
}

func newPage[T any](rows []T, pkID func(T) int64, page store.Page) paginated[T] {
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = pkID(r)
	}
	if rows == nil {
		rows = []T{}
	}
	return paginated[T]{Data: rows, Cursor: store.NextCursor(ids, page)}
}

// conn returns the live connection of the session named in the path.
func (h *Handler) conn(c *gin.Context) (session.Conn, error) {
	ctrl, ok := h.sessions.Lookup(c.Param("sessionId"))
	if !ok {
		return nil, session.ErrNotFound
	}
	return ctrl.Conn()
}

func requestContext(c *gin.Context) context.Context {
	return c.Request.Context()
}
