package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/recruitgenie/internal/ai"
	"github.com/spigell/recruitgenie/internal/gateway"
	"github.com/spigell/recruitgenie/internal/logger"
	"github.com/spigell/recruitgenie/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	GreetingText  = "Hello! I'm your AI sales assistant from 'RecruitGenie'. How can I help you with your hiring needs today?"
	FallbackReply = "I'm having a bit of trouble connecting right now. Could you please try again in a moment?"
	EmptyReply    = "Sorry, I couldn't process that."

	DefaultListen = ":5001"

	shutdownTimeout     = 10 * time.Second
	defaultMaxLogLength = 200
)

type Config struct {
	Listen         string   `mapstructure:"listen"`
	DBPath         string   `mapstructure:"db-path"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
	MaxLogLength   int      `mapstructure:"-"`
}

// Server serves the chat contract consumed by the gateway client.
type Server struct {
	router    *chi.Mux
	store     Store
	assistant ai.Assistant
	logger    *zap.Logger
	listen    string
	maxLogLen int
}

func NewServer(cfg Config, store Store, assistant ai.Assistant, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	listen := strings.TrimSpace(cfg.Listen)
	if listen == "" {
		listen = DefaultListen
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(cors(origins))

	s := &Server{
		router:    router,
		store:     store,
		assistant: assistant,
		logger:    log,
		listen:    listen,
		maxLogLen: maxLogLen,
	}

	router.Get("/health", s.health)
	router.Get("/history/{sessionId}", s.history)
	router.Get("/data/{sessionId}", s.data)
	router.Post("/chat", s.chat)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server starting", zap.String("addr", s.listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("api server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	log := logger.WithSession(s.logger, sessionID)

	messages, err := s.store.Messages(r.Context(), sessionID)
	if err != nil {
		log.Error("loading history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	if len(messages) == 0 {
		greeting, err := s.store.AppendMessage(r.Context(), sessionID, gateway.RoleModel, GreetingText)
		if err != nil {
			log.Error("seeding greeting", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load history")
			return
		}
		log.Info("started a new conversation")
		messages = append(messages, greeting)
	}

	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) data(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	data, err := s.store.ExtractedData(r.Context(), sessionID)
	if err != nil {
		logger.WithSession(s.logger, sessionID).Error("loading extracted data", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load extracted data")
		return
	}

	if data == nil {
		data = map[string]any{}
	}

	writeJSON(w, http.StatusOK, data)
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Response      string         `json:"response"`
	ExtractedData map[string]any `json:"extractedData"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Debug("decoding chat request", zap.Error(err))
	}

	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "sessionId and message are required")
		return
	}

	ctx := r.Context()
	log := logger.WithSession(s.logger, req.SessionID)

	history, err := s.store.Messages(ctx, req.SessionID)
	if err != nil {
		log.Error("loading history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	if _, err := s.store.AppendMessage(ctx, req.SessionID, gateway.RoleUser, req.Message); err != nil {
		log.Error("storing user message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	log.Debug("asking assistant",
		zap.Int("history_length", len(history)),
		zap.String("message_preview", utils.TruncateForLog(req.Message, s.maxLogLen)),
	)

	resp := s.ask(ctx, log, history, req.Message)

	if _, err := s.store.AppendMessage(ctx, req.SessionID, gateway.RoleModel, resp.Response); err != nil {
		log.Error("storing model reply", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	if err := s.store.SaveExtractedData(ctx, req.SessionID, resp.ExtractedData); err != nil {
		log.Error("storing extracted data", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store extracted data")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ask never fails: assistant errors turn into the fallback reply with an empty profile.
func (s *Server) ask(ctx context.Context, log *zap.Logger, history []gateway.Message, message string) chatResponse {
	turns := make([]ai.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, ai.Turn{Role: m.Role, Text: m.Text})
	}

	reply, err := s.assistant.Reply(ctx, turns, message)
	if err != nil {
		log.Warn("assistant failed, using fallback reply", zap.Error(err))
		return chatResponse{Response: FallbackReply, ExtractedData: map[string]any{}}
	}

	resp := chatResponse{Response: reply.Response, ExtractedData: map[string]any{}}
	if strings.TrimSpace(resp.Response) == "" {
		resp.Response = EmptyReply
	}

	if reply.ExtractedData == nil {
		return resp
	}

	// only a cleaned profile is stored, so clients never read back odd values
	profile, err := gateway.ParseExtractedData(reply.ExtractedData, log)
	if err != nil {
		log.Warn("dropping unreadable extracted data", zap.Error(err))
		return resp
	}
	if profile != nil {
		resp.ExtractedData = profileMap(profile)
	}

	return resp
}

func profileMap(p *gateway.ExtractedData) map[string]any {
	roles := make([]any, 0, len(p.Roles))
	for _, r := range p.Roles {
		roles = append(roles, map[string]any{"role": r.Role, "count": r.Count})
	}

	data := map[string]any{"roles": roles}
	for key, value := range map[string]string{"industry": p.Industry, "location": p.Location, "urgency": p.Urgency} {
		if value != "" {
			data[key] = value
		}
	}

	return data
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
