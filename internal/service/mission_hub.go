package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"mission_backend/internal/config"
	"mission_backend/internal/util"
	"mission_backend/pkg/logger"
	"mission_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	sendBuffer  = 64
	hubShards   = 32
	pubsubTopic = "mission_channel"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AckDestination 尝试的事件回执频道
func AckDestination(attemptID string) string {
	return fmt.Sprintf("/topic/mission/%s/ack", attemptID)
}

// ErrorDestination 尝试的事件错误频道
func ErrorDestination(attemptID string) string {
	return fmt.Sprintf("/topic/mission/%s/error", attemptID)
}

// OutboundMessage 下行消息
type OutboundMessage struct {
	Destination string      `json:"destination"`
	Payload     interface{} `json:"payload"`
}

type Client struct {
	Hub     *MissionHub
	Conn    *websocket.Conn
	Send    chan []byte
	Limiter *rate.Limiter

	mu       sync.Mutex
	attempts map[string]struct{}
	closed   bool
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregisterClient(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(c.Hub.settings.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err))
			}
			break
		}

		// 超出速率时放慢读取，不丢弃事件
		if err := c.Limiter.Wait(c.Hub.ctx); err != nil {
			break
		}

		var env EventEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.sendDirect(ErrorDestination(""), NewEventError(EventEnvelope{}, fmt.Errorf("%w: malformed message", util.ErrInvalidEvent)))
			continue
		}
		monitoring.WSMessageCounter.WithLabelValues("event", "in").Inc()

		c.Hub.handleEvent(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendDirect 只发给当前连接，用于无法确定尝试频道的错误
func (c *Client) sendDirect(destination string, payload interface{}) {
	msg, err := json.Marshal(OutboundMessage{Destination: destination, Payload: payload})
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- msg:
		monitoring.WSMessageCounter.WithLabelValues("error", "out").Inc()
	default:
	}
}

// shard 尝试频道的订阅者
type shard struct {
	subscribers map[string]map[*Client]struct{}
	mu          sync.RWMutex
}

// MissionHub 接收 WebSocket 事件并把回执推送到尝试频道
type MissionHub struct {
	shards   [hubShards]*shard
	Events   *EventService
	Redis    *redis.Client
	settings config.WebSocketConfig

	mu      sync.Mutex
	clients map[*Client]struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func NewMissionHub(events *EventService, rdb *redis.Client, cfg config.WebSocketConfig) *MissionHub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 64 * 1024
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 30
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 50
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &MissionHub{
		Events:   events,
		Redis:    rdb,
		settings: cfg,
		clients:  make(map[*Client]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := 0; i < hubShards; i++ {
		h.shards[i] = &shard{
			subscribers: make(map[string]map[*Client]struct{}),
		}
	}
	return h
}

func (h *MissionHub) getShard(attemptID string) *shard {
	return h.shards[stripeIndex(attemptID)%hubShards]
}

type PubSubMessage struct {
	AttemptID string          `json:"attemptId"`
	Payload   json.RawMessage `json:"payload"`
}

// Run 启用 Redis 时订阅跨实例的回执，阻塞直到 Stop
func (h *MissionHub) Run() {
	if h.Redis == nil {
		<-h.ctx.Done()
		return
	}

	pubsub := h.Redis.Subscribe(h.ctx, pubsubTopic)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var psMsg PubSubMessage
			if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
				logger.Log.Error("PubSub unmarshal error", zap.Error(err))
				continue
			}
			h.deliverLocal(psMsg.AttemptID, psMsg.Payload)
		}
	}
}

// ServeWS 升级连接，attemptID 非空时立即订阅该尝试
func (h *MissionHub) ServeWS(w http.ResponseWriter, r *http.Request, attemptID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		Hub:      h,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Limiter:  rate.NewLimiter(rate.Limit(h.settings.MessagesPerSecond), h.settings.Burst),
		attempts: make(map[string]struct{}),
	}

	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		conn.Close()
		return fmt.Errorf("mission hub is stopped")
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	monitoring.WSConnections.Inc()

	if attemptID != "" {
		h.subscribe(client, attemptID)
	}

	go client.writePump()
	go client.readPump()
	return nil
}

func (h *MissionHub) handleEvent(c *Client, env EventEnvelope) {
	if env.AttemptID != "" {
		h.subscribe(c, env.AttemptID)
	}

	event, err := h.Events.Ingest(h.ctx, env)
	if err != nil {
		if env.AttemptID == "" {
			c.sendDirect(ErrorDestination(""), NewEventError(env, err))
			return
		}
		h.Publish(env.AttemptID, ErrorDestination(env.AttemptID), NewEventError(env, err))
		return
	}
	h.Publish(event.AttemptID, AckDestination(event.AttemptID), NewEventAck(event))
}

// Publish 推送到尝试频道的所有订阅者；启用 Redis 时经由 pub/sub 广播到所有实例
func (h *MissionHub) Publish(attemptID, destination string, payload interface{}) {
	msg, err := json.Marshal(OutboundMessage{Destination: destination, Payload: payload})
	if err != nil {
		logger.Log.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}
	monitoring.WSMessageCounter.WithLabelValues("reply", "out").Inc()

	if h.Redis == nil {
		h.deliverLocal(attemptID, msg)
		return
	}

	psMsg, _ := json.Marshal(PubSubMessage{AttemptID: attemptID, Payload: msg})
	if err := h.Redis.Publish(h.ctx, pubsubTopic, psMsg).Err(); err != nil {
		logger.Log.Warn("Redis publish failed, delivering locally", zap.String("attemptId", attemptID), zap.Error(err))
		h.deliverLocal(attemptID, msg)
	}
}

func (h *MissionHub) deliverLocal(attemptID string, msg []byte) {
	s := h.getShard(attemptID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.subscribers[attemptID] {
		select {
		case client.Send <- msg:
		default:
			logger.Log.Warn("Client send buffer full, dropping message", zap.String("attemptId", attemptID))
		}
	}
}

func (h *MissionHub) subscribe(c *Client, attemptID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := c.attempts[attemptID]; ok {
		return
	}
	c.attempts[attemptID] = struct{}{}

	s := h.getShard(attemptID)
	s.mu.Lock()
	subs, ok := s.subscribers[attemptID]
	if !ok {
		subs = make(map[*Client]struct{})
		s.subscribers[attemptID] = subs
	}
	subs[c] = struct{}{}
	s.mu.Unlock()
}

// detach 先退订再关闭发送通道，投递方持有分片读锁时不会遇到已关闭的通道。调用方持有 h.mu
func (h *MissionHub) detach(c *Client) {
	delete(h.clients, c)

	c.mu.Lock()
	c.closed = true
	for attemptID := range c.attempts {
		s := h.getShard(attemptID)
		s.mu.Lock()
		if subs, ok := s.subscribers[attemptID]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(s.subscribers, attemptID)
			}
		}
		s.mu.Unlock()
	}
	close(c.Send)
	c.mu.Unlock()
}

func (h *MissionHub) unregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.detach(c)
	monitoring.WSConnections.Dec()
}

// Stop 关闭所有连接
func (h *MissionHub) Stop() {
	h.once.Do(func() {
		logger.Log.Info("MissionHub stopping: closing connections...")
		h.cancel()

		h.mu.Lock()
		closed := len(h.clients)
		for c := range h.clients {
			h.detach(c)
		}
		h.mu.Unlock()

		monitoring.WSConnections.Set(0)
		logger.Log.Info("MissionHub stopped", zap.Int("closedConnections", closed))
	})
}
