package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"relay/internal/classify"
	"relay/internal/config"
	"relay/internal/db"
	"relay/internal/dispatch"
	"relay/internal/domain"
	"relay/internal/llm"
	"relay/internal/memory"
	"relay/internal/mqtt"
	"relay/internal/registry"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var recorder memory.Recorder
	var store *db.Store
	if cfg.DBDSN != "" {
		store, err = db.New(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("connect db failed", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			logger.Error("migrate db failed", "error", err)
			os.Exit(1)
		}
		recorder = store
		logger.Info("durable context log enabled")
	}

	bootstrapCaps, err := registry.LoadBootstrap(cfg.BootstrapFile)
	if err != nil {
		logger.Error("load capability bootstrap failed", "error", err)
		os.Exit(1)
	}

	bridge := mqtt.NewBridge(mqtt.BridgeConfig{
		BrokerURL:   cfg.MQTTBrokerURL,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		TopicPrefix: cfg.MQTTTopicPrefix,
		AgentTTL:    cfg.MQTTAgentTTL,
	}, logger)
	if needsBridge(bootstrapCaps) {
		if err := bridge.Start(ctx); err != nil {
			logger.Error("start mqtt bridge failed", "error", err)
			os.Exit(1)
		}
	}

	reg := registry.New()
	if err := registerCapabilities(reg, bootstrapCaps, bridge, cfg); err != nil {
		logger.Error("capability registration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("capability registry sealed", "capabilities", reg.Len())

	var embedder classify.Embedder
	if cfg.EmbeddingsBaseURL != "" {
		embedder = classify.NewHTTPEmbedder(cfg.EmbeddingsBaseURL, cfg.EmbeddingsModel, cfg.EmbeddingsAPIKey, cfg.EmbeddingsTimeout)
	}
	classifier := classify.New(reg, embedder, classify.Options{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		LexicalWeight:       cfg.LexicalWeight,
		SemanticWeight:      cfg.SemanticWeight,
	}, logger)
	classifier.Prime(ctx)

	sessions := memory.NewService(cfg.HistoryBound, recorder, logger)
	dispatcher := dispatch.New(dispatch.Config{
		AmbiguityMargin:   cfg.AmbiguityMargin,
		InvocationTimeout: cfg.InvocationTimeout,
	}, reg, classifier, sessions, logger)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/v1/capabilities", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, reg.All())
	})
	r.Post("/v1/sessions/{sessionID}/reset", func(w http.ResponseWriter, req *http.Request) {
		sessionID := chi.URLParam(req, "sessionID")
		sessions.Reset(sessionID)
		writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "reset": true})
	})
	r.Get("/v1/sessions/{sessionID}/history", func(w http.ResponseWriter, req *http.Request) {
		if store == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "durable context log not enabled"})
			return
		}
		sessionID := chi.URLParam(req, "sessionID")
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		entries, err := store.RecentEntries(req.Context(), sessionID, limit)
		if err != nil {
			logger.Error("read session history failed", "session_id", sessionID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "history unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "entries": entries})
	})
	r.Post("/v1/route", func(w http.ResponseWriter, req *http.Request) {
		var ev domain.InputEvent
		if err := json.NewDecoder(req.Body).Decode(&ev); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return
		}
		if ev.SessionID == "" || ev.Text == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "session_id and text are required"})
			return
		}
		writeJSON(w, http.StatusOK, dispatcher.Dispatch(req.Context(), ev))
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("relay server started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

// registerCapabilities populates the registry during startup: the builtin
// conversation capability first, then the bootstrap file. After this the
// registry is read-only.
func registerCapabilities(reg *registry.Registry, caps []registry.BootstrapCapability, bridge *mqtt.Bridge, cfg config.ServerConfig) error {
	conversation := domain.Capability{
		Name:        "conversation",
		Version:     "1.0.0",
		Description: "General chat and question answering.",
		Triggers:    []string{"tell me", "what is", "who is", "explain", "chat", "talk to me", "how do i"},
	}
	if cfg.LLMBaseURL != "" {
		provider := llm.NewProvider(llm.Config{BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey, Model: cfg.LLMModel})
		conversation.Handler = llm.ConversationHandler(provider, cfg.LLMModel)
	} else {
		conversation.Handler = llm.EchoHandler()
	}
	if err := reg.Register(conversation); err != nil {
		return err
	}

	for _, bc := range caps {
		cap := domain.Capability{
			Name:        bc.Name,
			Version:     bc.Version,
			Description: bc.Description,
			Triggers:    bc.Triggers,
			Parameters:  bc.Parameters,
		}
		switch bc.Transport {
		case "mqtt":
			cap.Handler = bridge.Handler(bc.AgentID, bc.Name)
		default:
			return errors.New("bootstrap capability " + bc.Name + ": unsupported transport " + bc.Transport)
		}
		if err := reg.Register(cap); err != nil {
			return err
		}
	}
	return nil
}

func needsBridge(caps []registry.BootstrapCapability) bool {
	for _, c := range caps {
		if c.Transport == "mqtt" {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
