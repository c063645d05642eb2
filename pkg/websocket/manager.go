package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/oddsync/odds-engine/pkg/types"
	"go.uber.org/zap"
)

// Manager maintains the single streaming connection to the venue's market
// channel and fans incoming feed messages out on a buffered channel.
type Manager struct {
	url          string
	conn         *websocket.Conn
	logger       *zap.Logger
	reconnectMgr *ReconnectManager
	config       Config
	messageChan  chan *types.FeedMessage
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	subscribed   []string // current token subscription set
	state        atomic.Int32
	lastPongTime atomic.Int64
}

// Config holds WebSocket manager configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// New creates a new WebSocket manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &Manager{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		messageChan:  make(chan *types.FeedMessage, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	return ConnState(m.state.Load())
}

func (m *Manager) applyEvent(event ConnEvent) ConnState {
	for {
		old := m.state.Load()
		next := Transition(ConnState(old), event)
		if m.state.CompareAndSwap(old, int32(next)) {
			ConnectionState.Set(float64(next))
			return next
		}
	}
}

// Start dials the venue and starts the read, ping, and reconnect loops.
func (m *Manager) Start() error {
	m.logger.Info("feed-manager-starting", zap.String("url", m.url))

	err := m.connect(m.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

// connect establishes a WebSocket connection.
func (m *Manager) connect(ctx context.Context) error {
	m.applyEvent(EventDial)

	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.DialTimeout,
	}

	m.logger.Info("connecting-to-feed", zap.String("url", m.url))

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		m.applyEvent(EventDialFail)
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		m.lastPongTime.Store(time.Now().Unix())
		return nil
	})

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	m.lastPongTime.Store(time.Now().Unix())
	m.applyEvent(EventDialOK)

	m.logger.Info("feed-connected")

	return nil
}

// SetSubscription replaces the token subscription set. The mapping refresh
// loop calls this whenever the active token set changes. The first call on a
// connection sends the full "market" subscription; later calls send only the
// subscribe/unsubscribe delta against the previous set.
func (m *Manager) SetSubscription(ctx context.Context, tokenIDs []string) error {
	m.mu.Lock()
	prev := m.subscribed
	m.subscribed = append([]string(nil), tokenIDs...)
	conn := m.conn
	m.mu.Unlock()

	SubscriptionCount.Set(float64(len(tokenIDs)))

	if m.State() != StateConnected || conn == nil {
		// The reconnect path replays the stored set once the connection
		// is back.
		m.logger.Debug("subscription-deferred-not-connected",
			zap.Int("token-count", len(tokenIDs)))
		return nil
	}

	if len(prev) == 0 {
		if len(tokenIDs) == 0 {
			return nil
		}
		err := conn.WriteJSON(types.SubscribeMessage{
			AssetIDs: tokenIDs,
			Type:     "market",
		})
		if err != nil {
			return fmt.Errorf("write subscribe message: %w", err)
		}
		m.logger.Info("subscribed-to-tokens", zap.Int("token-count", len(tokenIDs)))
		return nil
	}

	added, removed := diffTokenSets(prev, tokenIDs)
	if len(removed) > 0 {
		err := conn.WriteJSON(types.SubscriptionOp{
			AssetIDs:  removed,
			Operation: "unsubscribe",
		})
		if err != nil {
			return fmt.Errorf("write unsubscribe message: %w", err)
		}
	}
	if len(added) > 0 {
		err := conn.WriteJSON(types.SubscriptionOp{
			AssetIDs:  added,
			Operation: "subscribe",
		})
		if err != nil {
			return fmt.Errorf("write subscribe message: %w", err)
		}
	}

	if len(added) > 0 || len(removed) > 0 {
		m.logger.Info("subscription-updated",
			zap.Int("added", len(added)),
			zap.Int("removed", len(removed)),
			zap.Int("token-count", len(tokenIDs)))
	}

	return nil
}

// diffTokenSets returns the ids present only in next (added) and only in
// prev (removed), preserving input order.
func diffTokenSets(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, id := range next {
		nextSet[id] = struct{}{}
	}
	for _, id := range next {
		if _, ok := prevSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if _, ok := nextSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// readLoop reads messages from the WebSocket until an error or shutdown.
func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("feed-read-error", zap.Error(err))
			m.applyEvent(EventReadError)
			return
		}

		m.dispatch(message)
	}
}

// dispatch parses a raw frame and forwards feed messages to the channel.
// The venue sends an array of messages per frame.
func (m *Manager) dispatch(message []byte) {
	var msgs []types.FeedMessage
	err := json.Unmarshal(message, &msgs)
	if err != nil {
		messageStr := string(message)

		// Heartbeat/keepalive frames are empty arrays or tiny payloads.
		if messageStr == "[]" || messageStr == "" || len(message) < 10 {
			m.logger.Debug("feed-heartbeat-received", zap.Int("bytes", len(message)))
			return
		}

		// Subscription confirmations and other control frames are single
		// objects, not arrays.
		var controlMsg map[string]interface{}
		if json.Unmarshal(message, &controlMsg) == nil {
			if msgType, ok := controlMsg["type"].(string); ok {
				m.logger.Debug("feed-control-message", zap.String("type", msgType))
				return
			}
		}

		previewLen := len(messageStr)
		if previewLen > 100 {
			previewLen = 100
		}
		m.logger.Debug("feed-unparseable-message",
			zap.Error(err),
			zap.Int("bytes", len(message)),
			zap.String("preview", messageStr[:previewLen]))
		return
	}

	for i := range msgs {
		msg := &msgs[i]

		MessagesReceivedTotal.WithLabelValues(msg.EventType).Inc()

		select {
		case m.messageChan <- msg:
		default:
			m.logger.Warn("feed-channel-full", zap.String("event-type", msg.EventType))
			MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
		}
	}
}

// pingLoop sends periodic PING messages.
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if m.State() != StateConnected {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				continue
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				m.logger.Warn("feed-ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop re-establishes the connection after a drop and replays the
// stored subscription set.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if m.State() != StateDisconnected {
			time.Sleep(time.Second)
			continue
		}

		m.logger.Warn("feed-connection-lost-initiating-reconnect")

		err := m.reconnectMgr.Reconnect(m.ctx, m.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			m.logger.Error("feed-reconnection-failed", zap.Error(err))
			continue
		}

		err = m.resubscribe()
		if err != nil {
			m.logger.Error("feed-resubscribe-failed", zap.Error(err))
			m.applyEvent(EventReadError)
			continue
		}

		m.logger.Info("feed-reconnection-complete")

		m.wg.Add(1)
		go m.readLoop()
	}
}

// resubscribe replays the stored subscription set after a reconnect.
func (m *Manager) resubscribe() error {
	m.mu.RLock()
	tokenIDs := append([]string(nil), m.subscribed...)
	conn := m.conn
	m.mu.RUnlock()

	if len(tokenIDs) == 0 {
		return nil
	}

	err := conn.WriteJSON(types.SubscribeMessage{
		AssetIDs: tokenIDs,
		Type:     "market",
	})
	if err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	m.logger.Info("resubscribed-after-reconnect", zap.Int("token-count", len(tokenIDs)))

	return nil
}

// MessageChan returns the channel feed messages arrive on.
func (m *Manager) MessageChan() <-chan *types.FeedMessage {
	return m.messageChan
}

// Close shuts the manager down. No in-flight drain is attempted.
func (m *Manager) Close() error {
	m.logger.Info("closing-feed-manager")

	m.cancel()
	m.applyEvent(EventShutdown)

	m.mu.RLock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()

	close(m.messageChan)

	m.logger.Info("feed-manager-closed")

	return nil
}
