package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"relay/internal/domain"
)

type BridgeConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	AgentTTL    time.Duration
}

// Bridge exposes remote capability agents as handlers. An invocation is a
// publish on the agent's invoke topic correlated with one result message;
// the pending map routes results back to the waiting call.
type Bridge struct {
	cfg    BridgeConfig
	client paho.Client
	logger *slog.Logger

	presenceMu sync.RWMutex
	presence   map[string]agentPresence

	pendingMu sync.Mutex
	pending   map[string]chan domain.InvokeResult
}

type agentPresence struct {
	online   bool
	lastSeen time.Time
}

func NewBridge(cfg BridgeConfig, logger *slog.Logger) *Bridge {
	if cfg.AgentTTL <= 0 {
		cfg.AgentTTL = 60 * time.Second
	}
	return &Bridge{
		cfg:      cfg,
		logger:   logger,
		presence: make(map[string]agentPresence),
		pending:  make(map[string]chan domain.InvokeResult),
	}
}

func (b *Bridge) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(b.cfg.BrokerURL).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.logger.Error("mqtt connection lost", "error", err)
	})

	b.client = paho.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	if err := b.subscribeHandlers(); err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		b.client.Disconnect(100)
	}()

	return nil
}

func (b *Bridge) subscribeHandlers() error {
	if token := b.client.Subscribe(TopicAgentOnline(b.cfg.TopicPrefix), 1, b.handleOnline); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := b.client.Subscribe(TopicAgentHeartbeat(b.cfg.TopicPrefix), 1, b.handleHeartbeat); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if token := b.client.Subscribe(TopicAgentResult(b.cfg.TopicPrefix), 1, b.handleInvokeResult); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (b *Bridge) handleOnline(_ paho.Client, msg paho.Message) {
	agentID, err := ParseAgentID(msg.Topic(), b.cfg.TopicPrefix)
	if err != nil {
		b.logger.Warn("skip invalid online topic", "topic", msg.Topic(), "error", err)
		return
	}
	payload := strings.TrimSpace(strings.ToLower(string(msg.Payload())))
	online := payload == "1" || payload == "true" || payload == "online"
	b.setPresence(agentID, online)
	b.logger.Info("agent online status", "agent_id", agentID, "online", online)
}

func (b *Bridge) handleHeartbeat(_ paho.Client, msg paho.Message) {
	agentID, err := ParseAgentID(msg.Topic(), b.cfg.TopicPrefix)
	if err != nil {
		b.logger.Warn("skip invalid heartbeat topic", "topic", msg.Topic(), "error", err)
		return
	}
	b.setPresence(agentID, true)
}

func (b *Bridge) handleInvokeResult(_ paho.Client, msg paho.Message) {
	requestID := ParseRequestID(msg.Topic())
	if requestID == "" {
		return
	}

	var result domain.InvokeResult
	if err := json.Unmarshal(msg.Payload(), &result); err != nil {
		b.logger.Warn("invalid invoke result", "topic", msg.Topic(), "error", err)
		return
	}
	if result.RequestID == "" {
		result.RequestID = requestID
	}

	b.pendingMu.Lock()
	ch, ok := b.pending[result.RequestID]
	b.pendingMu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- result:
	default:
	}
}

func (b *Bridge) setPresence(agentID string, online bool) {
	b.presenceMu.Lock()
	defer b.presenceMu.Unlock()
	b.presence[agentID] = agentPresence{online: online, lastSeen: time.Now()}
}

func (b *Bridge) agentOnline(agentID string) bool {
	b.presenceMu.RLock()
	defer b.presenceMu.RUnlock()
	p, ok := b.presence[agentID]
	if !ok || !p.online {
		return false
	}
	return time.Since(p.lastSeen) <= b.cfg.AgentTTL
}

// Handler returns a capability handler that forwards invocations to the
// named agent over MQTT.
func (b *Bridge) Handler(agentID, capability string) domain.Handler {
	return domain.HandlerFunc(func(ctx context.Context, params map[string]any, _ []domain.ContextEntry) (string, error) {
		return b.invoke(ctx, agentID, capability, params)
	})
}

func (b *Bridge) invoke(ctx context.Context, agentID, capability string, params map[string]any) (string, error) {
	if !b.agentOnline(agentID) {
		return "", domain.NewHandlerError(domain.ErrUnavailable, "agent %s is offline", agentID)
	}

	requestID := uuid.NewString()
	body, err := json.Marshal(domain.InvokeRequest{
		RequestID:  requestID,
		Capability: capability,
		Parameters: params,
	})
	if err != nil {
		return "", domain.NewHandlerError(domain.ErrInvalidParameters, "encode invoke request: %v", err)
	}

	resultCh := make(chan domain.InvokeResult, 1)
	b.pendingMu.Lock()
	b.pending[requestID] = resultCh
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, requestID)
		b.pendingMu.Unlock()
	}()

	topic := TopicInvoke(b.cfg.TopicPrefix, agentID, requestID)
	if token := b.client.Publish(topic, 1, false, body); token.Wait() && token.Error() != nil {
		return "", domain.NewHandlerError(domain.ErrUnavailable, "publish invoke: %v", token.Error())
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-resultCh:
		if !result.OK {
			msg := result.Error
			if msg == "" {
				msg = "capability invocation failed"
			}
			return "", domain.NewHandlerError(domain.ErrExecution, "%s", msg)
		}
		return result.Output, nil
	}
}
