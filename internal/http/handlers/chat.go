package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"shirly.shop/app/internal/http/middleware"
	"shirly.shop/app/internal/http/ticket"
	"shirly.shop/app/internal/modules/chat"
	"shirly.shop/app/internal/realtime"
	"shirly.shop/app/internal/shared/apperr"
	"shirly.shop/app/pkg/view"
)

// FrameLimiter throttles websocket message frames per user.
type FrameLimiter interface {
	Allow(key string) bool
}

type ChatHandler struct {
	Chat     *chat.Service
	Broker   realtime.Broker
	Tickets  *ticket.Codec
	Upgrader websocket.Upgrader
	Logger   *slog.Logger

	// Base ends every websocket when the server shuts down.
	Base    context.Context
	Limiter FrameLimiter
	Serve   realtime.ServeOptions
	OnOpen  func()
	OnClose func()
}

func NewChatHandler(svc *chat.Service, broker realtime.Broker, tickets *ticket.Codec, allowedOrigins []string, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		Chat:     svc,
		Broker:   broker,
		Tickets:  tickets,
		Upgrader: realtime.Upgrader(allowedOrigins),
		Logger:   logger,
		Base:     context.Background(),
	}
}

func participant(c *gin.Context) chat.Participant {
	u := middleware.MustUser(c).User
	return chat.Participant{UserID: u.ID, IsAdmin: u.IsAdmin()}
}

// GET /api/orders/:id/messages?since=<RFC3339>&limit=
func (h *ChatHandler) List(c *gin.Context) {
	var since *time.Time
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			fail(c, apperr.InvalidErr("since must be an RFC 3339 timestamp", map[string]string{"since": "Invalid value."}))
			return
		}
		since = &t
	}
	ms, err := h.Chat.List(c.Request.Context(), c.Param("id"), participant(c), since, parseInt(c.Query("limit"), 100))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, chat.ListToView(ms))
}

// POST /api/orders/:id/messages; a repeated client_msg_id answers 200 with the stored message.
func (h *ChatHandler) Send(c *gin.Context) {
	var req view.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	m, isNew, err := h.Chat.Send(c.Request.Context(), chat.SendInput{
		OrderID:     c.Param("id"),
		Sender:      participant(c),
		Body:        req.Body,
		ClientMsgID: req.ClientMsgID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	if isNew {
		created(c, chat.ToView(m))
		return
	}
	ok(c, chat.ToView(m))
}

// POST /api/orders/:id/messages/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	n, err := h.Chat.MarkRead(c.Request.Context(), c.Param("id"), participant(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"marked": n})
}

// POST /api/orders/:id/chat/ticket
func (h *ChatHandler) Ticket(c *gin.Context) {
	p := participant(c)
	o, err := h.Chat.Authorize(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		fail(c, err)
		return
	}
	tok, exp, err := h.Tickets.Issue(p.UserID, o.ID, p.IsAdmin)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, view.ChatTicket{Ticket: tok, ExpiresAt: exp})
}

// GET /api/orders/:id/chat/ws?ticket=...
// Browsers cannot set headers on websocket requests, so the ticket replaces the bearer token.
func (h *ChatHandler) WS(c *gin.Context) {
	orderID := c.Param("id")
	cl, err := h.Tickets.Verify(c.Query("ticket"), orderID)
	if err != nil {
		fail(c, apperr.UnauthorizedErr("invalid or expired chat ticket"))
		return
	}
	p := chat.Participant{UserID: cl.UserID, IsAdmin: cl.Admin}
	if _, err := h.Chat.Authorize(c.Request.Context(), orderID, p); err != nil {
		fail(c, err)
		return
	}
	sub, err := h.Broker.Subscribe(c.Request.Context(), realtime.OrderTopic(orderID))
	if err != nil {
		fail(c, apperr.UnavailableErr("realtime unavailable, use polling").WithCause(err))
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		// Upgrade already answered the client
		h.Logger.WarnContext(c.Request.Context(), "chat ws upgrade failed", "order_id", orderID, "err", err)
		return
	}
	if h.OnOpen != nil {
		h.OnOpen()
	}
	if h.OnClose != nil {
		defer h.OnClose()
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(h.Base, cancel)
	defer stop()

	err = realtime.Serve(ctx, conn, sub, h.frameHandler(orderID, p), h.Serve)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.Logger.DebugContext(ctx, "chat ws closed", "order_id", orderID, "user_id", p.UserID, "err", err)
	}
}

func errorFrame(msg string) []byte {
	b, _ := json.Marshal(view.RealtimeEvent{Type: view.EventError, Error: msg})
	return b
}

// frameHandler persists client "message" frames; the stored message reaches
// every subscriber (the sender included) through the broker.
func (h *ChatHandler) frameHandler(orderID string, p chat.Participant) realtime.FrameHandler {
	return func(ctx context.Context, data []byte) []byte {
		var f view.ClientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return errorFrame("malformed frame")
		}
		if f.Type != view.EventMessage {
			return errorFrame("unsupported frame type " + strconv.Quote(f.Type))
		}
		if h.Limiter != nil && !h.Limiter.Allow("user:"+p.UserID) {
			return errorFrame("too many messages, slow down")
		}
		_, _, err := h.Chat.Send(ctx, chat.SendInput{
			OrderID:     orderID,
			Sender:      p,
			Body:        f.Body,
			ClientMsgID: f.ClientMsgID,
		})
		if err != nil {
			return errorFrame(publicMessage(err))
		}
		return nil
	}
}

func publicMessage(err error) string {
	return apperr.PublicMessage(toAppErr(err))
}

// GET /api/orders/:id/messages/unread-count
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	n, err := h.Chat.UnreadCount(c.Request.Context(), c.Param("id"), participant(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, view.UnreadCount{Count: n})
}
