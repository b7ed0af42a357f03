package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"knock-detection/chat"
	"knock-detection/db"
	"knock-detection/fusion"
	"knock-detection/models"
	"knock-detection/tts"
	"knock-detection/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
)

type apiError struct {
	Message string `json:"message"`
}

// decisionResponse is what score producers get back for each submitted
// window. During warm-up there is no decision yet, only progress.
type decisionResponse struct {
	Status          string           `json:"status"` // "warming" or "active"
	WindowsObserved uint64           `json:"windowsObserved"`
	WindowsNeeded   int              `json:"windowsNeeded"`
	Decision        *fusion.Decision `json:"decision,omitempty"`
}

type statusResponse struct {
	Status          string        `json:"status"`
	WindowsObserved uint64        `json:"windowsObserved"`
	Config          fusion.Config `json:"config"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// parseFloatList parses a comma-separated list like "0.05,0.10,0.20".
func parseFloatList(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// fusionConfigFromEnv builds the detector configuration from KNOCK_* env
// variables, falling back to the reference deployment defaults.
func fusionConfigFromEnv() (fusion.Config, error) {
	cfg := fusion.DefaultConfig()

	if raw := utils.GetEnv("KNOCK_LABELS", ""); raw != "" {
		labels := strings.Split(raw, ",")
		for i := range labels {
			labels[i] = strings.TrimSpace(labels[i])
		}
		cfg.Labels = labels
		// Boosts must track the class count; reset to neutral unless
		// overridden below.
		cfg.Boosts = make([]float64, len(labels))
		for i := range cfg.Boosts {
			cfg.Boosts[i] = 1.0
		}
	}

	if raw := utils.GetEnv("KNOCK_WEIGHTS", ""); raw != "" {
		weights, err := parseFloatList(raw)
		if err != nil {
			return fusion.Config{}, fmt.Errorf("invalid KNOCK_WEIGHTS: %w", err)
		}
		cfg.Weights = weights
		cfg.WindowCount = len(weights)
	}

	if raw := utils.GetEnv("KNOCK_WINDOW_COUNT", ""); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return fusion.Config{}, fmt.Errorf("invalid KNOCK_WINDOW_COUNT: %w", err)
		}
		cfg.WindowCount = count
	}

	if raw := utils.GetEnv("KNOCK_BOOSTS", ""); raw != "" {
		boosts, err := parseFloatList(raw)
		if err != nil {
			return fusion.Config{}, fmt.Errorf("invalid KNOCK_BOOSTS: %w", err)
		}
		cfg.Boosts = boosts
	}

	if raw := utils.GetEnv("KNOCK_TARGET_LABEL", ""); raw != "" {
		target := -1
		for i, label := range cfg.Labels {
			if strings.EqualFold(label, raw) {
				target = i
				break
			}
		}
		if target < 0 {
			return fusion.Config{}, fmt.Errorf("KNOCK_TARGET_LABEL %q does not match any configured label", raw)
		}
		cfg.TargetClass = target
	}

	if raw := utils.GetEnv("KNOCK_THRESHOLD", ""); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fusion.Config{}, fmt.Errorf("invalid KNOCK_THRESHOLD: %w", err)
		}
		cfg.Threshold = threshold
	}

	return cfg, cfg.Validate()
}

func newScoreIngestHandler(controller *socketController) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var frame models.ScoreFrame
		if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
			logger.ErrorContext(ctx, "failed to parse score frame", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, "invalid score payload")
			return
		}

		response, err := controller.handleScoreFrame(ctx, frame)
		if err != nil {
			logger.ErrorContext(ctx, "rejected score frame", slog.Any("error", err))
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, response)
	}
}

func newDetectionsHandler(store *db.SQLiteClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var (
			detectionsList []models.Detection
			err            error
		)
		if raw := r.URL.Query().Get("since"); raw != "" {
			since, parseErr := time.Parse(time.RFC3339, raw)
			if parseErr != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid 'since' timestamp")
				return
			}
			detectionsList, err = store.GetDetectionsSince(since)
		} else {
			detectionsList, err = store.GetAllDetections()
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to load detections", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load detections")
			return
		}

		writeJSON(w, http.StatusOK, detectionsList)
	}
}

func newStatusHandler(controller *socketController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		writeJSON(w, http.StatusOK, controller.status())
	}
}

func newChatHandler(advisor *chat.GeminiClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if advisor == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "advisor is not configured")
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
			writeJSONError(w, http.StatusBadRequest, "message is required")
			return
		}

		reply, err := advisor.GenerateResponse(req.Message)
		if err != nil {
			logger.ErrorContext(ctx, "advisor request failed", slog.Any("error", err))
			writeJSONError(w, http.StatusBadGateway, "advisor request failed")
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
	}
}

func serve(protocol, port string) {
	protocol = strings.ToLower(protocol)
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	cfg, err := fusionConfigFromEnv()
	if err != nil {
		log.Fatalf("invalid fusion configuration: %v", err)
	}

	detector, err := fusion.NewDetector(cfg)
	if err != nil {
		log.Fatalf("failed to build detector: %v", err)
	}
	log.Printf("Fusion detector ready: %d classes, %d windows, target=%s, threshold=%.2f",
		cfg.ClassCount(), cfg.WindowCount, cfg.TargetLabel(), cfg.Threshold)

	dbPath := utils.GetEnv("KNOCK_DB_PATH", "data/knock.db")
	store, err := db.NewSQLiteClient(dbPath)
	if err != nil {
		log.Fatalf("failed to open detections database: %v", err)
	}
	defer store.Close()

	var announcer *tts.Client
	if strings.EqualFold(utils.GetEnv("KNOCK_TTS_ALERTS", "false"), "true") {
		announcer, err = tts.NewClient()
		if err != nil {
			log.Printf("TTS alerts disabled: %v\n", err)
			announcer = nil
		}
	}

	var advisor *chat.GeminiClient
	if utils.GetEnv("GEMINI_API_KEY", "") != "" {
		advisor, err = chat.NewGeminiClient()
		if err != nil {
			log.Printf("Advisor disabled: %v\n", err)
			advisor = nil
		}
	}

	controller := newSocketController(detector, store, announcer)

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})
	controller.server = server

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		socket.Emit("status", controller.status())
		return nil
	})

	server.OnEvent("/", "requestStatus", func(socket socketio.Conn) {
		socket.Emit("status", controller.status())
	})

	server.OnEvent("/", "windowScores", func(socket socketio.Conn, msg string) {
		controller.handleWindowScores(socket, msg)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	serveHTTPS := protocol == "https"

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server)
	mux.HandleFunc("/api/scores", newScoreIngestHandler(controller))
	mux.HandleFunc("/api/detections", newDetectionsHandler(store))
	mux.HandleFunc("/api/status", newStatusHandler(controller))
	mux.HandleFunc("/api/chat", newChatHandler(advisor))
	mux.Handle("/", http.FileServer(http.Dir("static")))

	serveHTTP(server, serveHTTPS, port, mux)
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		certKey := utils.GetEnv("CERT_KEY", "")
		certFile := utils.GetEnv("CERT_FILE", "")
		if certKey == "" || certFile == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(certFile, certKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
