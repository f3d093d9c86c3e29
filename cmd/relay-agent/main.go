// relay-agent is a demo capability agent: it serves a few scripted desktop
// capabilities over the MQTT bridge protocol, so a relay-server can be
// exercised end to end without real OS actuators.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"relay/internal/config"
	"relay/internal/domain"
	"relay/internal/mqtt"
)

type capabilityFunc func(params map[string]any) (string, error)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadAgentConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	capabilities := map[string]capabilityFunc{
		"set_volume":   setVolume,
		"open_browser": openBrowser,
	}

	client, err := startMQTT(ctx, cfg, capabilities, logger)
	if err != nil {
		logger.Error("start mqtt failed", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(100)

	logger.Info("relay agent started", "agent_id", cfg.AgentID, "capabilities", len(capabilities))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}
}

func startMQTT(ctx context.Context, cfg config.AgentConfig, capabilities map[string]capabilityFunc, logger *slog.Logger) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	onlineTopic := mqtt.TopicOnline(cfg.MQTTTopicPrefix, cfg.AgentID)
	opts.SetWill(onlineTopic, "offline", 1, true)

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	if token := client.Publish(onlineTopic, 1, true, "online"); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	invokeTopic := mqtt.TopicInvokeWildcard(cfg.MQTTTopicPrefix, cfg.AgentID)
	if token := client.Subscribe(invokeTopic, 1, func(_ paho.Client, msg paho.Message) {
		handleInvoke(client, cfg, capabilities, msg, logger)
	}); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	heartbeatTopic := mqtt.TopicHeartbeat(cfg.MQTTTopicPrefix, cfg.AgentID)
	go func() {
		ticker := time.NewTicker(cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				client.Publish(onlineTopic, 1, true, "offline")
				return
			case <-ticker.C:
				client.Publish(heartbeatTopic, 0, false, []byte("1"))
			}
		}
	}()

	return client, nil
}

func handleInvoke(client paho.Client, cfg config.AgentConfig, capabilities map[string]capabilityFunc, msg paho.Message, logger *slog.Logger) {
	var req domain.InvokeRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		logger.Warn("invalid invoke payload", "topic", msg.Topic(), "error", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = mqtt.ParseRequestID(msg.Topic())
	}

	result := domain.InvokeResult{RequestID: req.RequestID}
	fn, ok := capabilities[req.Capability]
	if !ok {
		result.Error = "unknown capability: " + req.Capability
	} else if output, err := fn(req.Parameters); err != nil {
		result.Error = err.Error()
	} else {
		result.OK = true
		result.Output = output
	}

	buf, err := json.Marshal(result)
	if err != nil {
		logger.Warn("encode invoke result failed", "error", err)
		return
	}
	resultTopic := mqtt.TopicResult(cfg.MQTTTopicPrefix, cfg.AgentID, req.RequestID)
	if token := client.Publish(resultTopic, 1, false, buf); token.Wait() && token.Error() != nil {
		logger.Warn("publish invoke result failed", "error", token.Error())
	}
	logger.Info("capability invoked", "capability", req.Capability, "ok", result.OK)
}

func setVolume(params map[string]any) (string, error) {
	level, ok := params["level"]
	if !ok {
		return "", fmt.Errorf("level parameter is required")
	}
	return fmt.Sprintf("volume set to %v", level), nil
}

func openBrowser(params map[string]any) (string, error) {
	url, _ := params["url"].(string)
	if strings.TrimSpace(url) == "" {
		return "browser opened", nil
	}
	return "browser opened at " + url, nil
}
