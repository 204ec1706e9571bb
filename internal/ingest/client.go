package ingest

import (
	"context"
	"time"

	"evobot/internal/models"
	healthsvc "evobot/internal/modules/health/service"
	"evobot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Event — кадр из фида исполнения: либо сигнал-кандидат, либо расчёт.
type Event struct {
	Kind       string                 `json:"kind"` // "proposed_signal" | "settlement"
	Signal     *models.ProposedSignal `json:"signal,omitempty"`
	Settlement *Settlement            `json:"settlement,omitempty"`
}

type Settlement struct {
	SignalID       string  `json:"signal_id"`
	Executed       bool    `json:"executed"`
	RealizedReturn float64 `json:"realized_return"`
}

// Client consumes the execution-layer feed over one websocket with a
// reconnect loop. The feed and the scheduler never block each other: frames
// land in a buffered channel consumed by the classifier loop.
type Client struct {
	url      string
	wsDialer *websocket.Dialer
	state    *healthsvc.State
}

func NewClient(url string, state *healthsvc.State) *Client {
	return &Client{
		url:      url,
		wsDialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		state:    state,
	}
}

// Start reads frames until ctx is done, pushing decoded events into out.
func (c *Client) Start(ctx context.Context, out chan<- Event) {
	if c.url == "" {
		logger.Warn("ingest feed url empty, execution feed disabled")
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		logger.Info("[FEED] connect %s", c.url)
		conn, _, err := c.wsDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			logger.Error("[FEED] dial error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.state.SetFeedConnected(true)

		// keepalive ping, иначе прокси рвёт тихое соединение
		stopPing := make(chan struct{})
		go func() {
			t := time.NewTicker(20 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopPing:
					return
				case <-t.C:
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}()

		// основной read-loop
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Error("[FEED] read error: %v", err)
				_ = conn.Close()
				close(stopPing)
				c.state.SetFeedConnected(false)
				break
			}

			var ev Event
			if err := sonic.Unmarshal(msg, &ev); err != nil {
				logger.Warn("[FEED] bad frame: %v", err)
				continue
			}
			if ev.Kind == "" {
				continue
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
		}
	}
}
