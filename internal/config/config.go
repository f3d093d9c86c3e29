// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ServerConfig holds relay-server configuration. Every option has a working
// default; a missing environment is never an error.
type ServerConfig struct {
	HTTPAddr string `envconfig:"RELAY_HTTP_ADDR" default:":9020"`

	// Router tuning
	ConfidenceThreshold float64       `envconfig:"RELAY_CONFIDENCE_THRESHOLD" default:"0.35"`
	AmbiguityMargin     float64       `envconfig:"RELAY_AMBIGUITY_MARGIN" default:"0.1"`
	HistoryBound        int           `envconfig:"RELAY_HISTORY_BOUND" default:"50"`
	InvocationTimeout   time.Duration `envconfig:"RELAY_INVOCATION_TIMEOUT" default:"30s"`
	LexicalWeight       float64       `envconfig:"RELAY_LEXICAL_WEIGHT" default:"0.5"`
	SemanticWeight      float64       `envconfig:"RELAY_SEMANTIC_WEIGHT" default:"0.5"`

	// Capability bootstrap
	BootstrapFile string `envconfig:"RELAY_BOOTSTRAP_FILE"`

	// Durable context log (empty = in-memory only)
	DBDSN string `envconfig:"DB_DSN"`

	// MQTT capability bridge
	MQTTBrokerURL   string        `envconfig:"MQTT_BROKER_URL" default:"tcp://localhost:1883"`
	MQTTClientID    string        `envconfig:"MQTT_CLIENT_ID" default:"relay-server"`
	MQTTUsername    string        `envconfig:"MQTT_USERNAME"`
	MQTTPassword    string        `envconfig:"MQTT_PASSWORD"`
	MQTTTopicPrefix string        `envconfig:"MQTT_TOPIC_PREFIX" default:"relay"`
	MQTTAgentTTL    time.Duration `envconfig:"MQTT_AGENT_TTL" default:"60s"`

	// Embedding service (empty base URL = lexical-only classification)
	EmbeddingsBaseURL string        `envconfig:"EMBEDDINGS_BASE_URL"`
	EmbeddingsModel   string        `envconfig:"EMBEDDINGS_MODEL" default:"nomic-embed-text"`
	EmbeddingsAPIKey  string        `envconfig:"EMBEDDINGS_API_KEY"`
	EmbeddingsTimeout time.Duration `envconfig:"EMBEDDINGS_TIMEOUT" default:"10s"`

	// Conversation capability (empty base URL = echo handler)
	LLMBaseURL string `envconfig:"LLM_BASE_URL"`
	LLMModel   string `envconfig:"LLM_MODEL" default:"llama3.2:3b"`
	LLMAPIKey  string `envconfig:"LLM_API_KEY"`
}

// AgentConfig holds relay-agent (demo capability agent) configuration.
type AgentConfig struct {
	AgentID           string        `envconfig:"RELAY_AGENT_ID" default:"agent-demo-01"`
	HeartbeatInterval time.Duration `envconfig:"RELAY_AGENT_HEARTBEAT_INTERVAL" default:"10s"`
	MQTTBrokerURL     string        `envconfig:"MQTT_BROKER_URL" default:"tcp://localhost:1883"`
	MQTTClientID      string        `envconfig:"MQTT_CLIENT_ID" default:"relay-agent-demo"`
	MQTTUsername      string        `envconfig:"MQTT_USERNAME"`
	MQTTPassword      string        `envconfig:"MQTT_PASSWORD"`
	MQTTTopicPrefix   string        `envconfig:"MQTT_TOPIC_PREFIX" default:"relay"`
}

func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func (c ServerConfig) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("RELAY_CONFIDENCE_THRESHOLD must be in (0,1], got %v", c.ConfidenceThreshold)
	}
	if c.AmbiguityMargin < 0 || c.AmbiguityMargin > 1 {
		return fmt.Errorf("RELAY_AMBIGUITY_MARGIN must be in [0,1], got %v", c.AmbiguityMargin)
	}
	if c.HistoryBound <= 0 {
		return fmt.Errorf("RELAY_HISTORY_BOUND must be positive, got %d", c.HistoryBound)
	}
	if c.InvocationTimeout <= 0 {
		return fmt.Errorf("RELAY_INVOCATION_TIMEOUT must be positive, got %v", c.InvocationTimeout)
	}
	if c.LexicalWeight < 0 || c.SemanticWeight < 0 {
		return fmt.Errorf("classifier weights must be non-negative")
	}
	if c.LexicalWeight == 0 && c.SemanticWeight == 0 {
		return fmt.Errorf("at least one classifier weight must be positive")
	}
	return nil
}

func LoadAgentConfig() (AgentConfig, error) {
	var cfg AgentConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AgentConfig{}, err
	}
	return cfg, nil
}
