package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apperrors "demo-trader/internal/errors"
	"demo-trader/internal/models"
	"demo-trader/internal/stream"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 4096
)

// stream upgrades to a WebSocket and forwards account events as JSON. The
// optional topic query parameter narrows events to a symbol or segment.
func (s *Server) stream(c *gin.Context) {
	if s.hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{
			Error: &Error{Code: apperrors.KindInternal, Message: "event stream is not enabled"},
		})
		return
	}
	topic := streamTopic(c.Query("topic"))

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	id := uuid.New().String()
	events := s.hub.Subscribe(topic, id)
	s.metrics.SetSubscribers(s.hub.GetTotalSubscriberCount())
	logger := requestLogger(c).With().Str("subscriber", id).Str("topic", topic).Logger()
	logger.Info().Msg("Stream client connected")

	defer func() {
		s.hub.Unsubscribe(events)
		s.metrics.SetSubscribers(s.hub.GetTotalSubscriberCount())
		conn.Close()
		logger.Info().Msg("Stream client disconnected")
	}()

	// The read side only handles control frames and notices the close.
	closed := make(chan struct{})
	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream stopped"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug().Err(err).Msg("Stream write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// streamTopic maps a query value to a hub topic: segments are lower case,
// symbols upper case.
func streamTopic(q string) string {
	q = strings.TrimSpace(q)
	if q == "" || q == stream.TopicAll {
		return stream.TopicAll
	}
	if seg := models.Segment(strings.ToLower(q)); seg.Valid() {
		return string(seg)
	}
	return strings.ToUpper(q)
}
