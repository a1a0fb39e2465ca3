package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"match-chat/auth"
	"match-chat/contract"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/observability"
	"match-chat/runtime"
	"match-chat/services"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/samber/lo"
)

const maxBodyBytes = 1 << 20

// Services groups the domain operations served over HTTP.
type Services struct {
	Matches         services.IMatchService
	Chats           services.IChatService
	Messages        services.IMessageService
	Presence        services.IPresenceService
	Recommendations services.IRecommendationService
	Attachments     services.IAttachmentService
	Search          services.ISearchService
}

// Realtime runs one upgraded connection until it closes.
type Realtime interface {
	Serve(ctx context.Context, conn runtime.Conn, credential string)
}

type StatsProvider interface {
	Stats() observability.Stats
}

type Server struct {
	svc        Services
	tokens     *auth.TokenService
	dispatcher contract.CommandDispatcher
	realtime   Realtime
	stats      StatsProvider
	origins    []string
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

func NewServer(log *slog.Logger, tokens *auth.TokenService, svc Services, dispatcher contract.CommandDispatcher,
	realtime Realtime, stats StatsProvider, origins []string) *Server {
	s := &Server{
		svc:        svc,
		tokens:     tokens,
		dispatcher: dispatcher,
		realtime:   realtime,
		stats:      stats,
		origins:    origins,
		log:        log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler builds the router. /health and /ws are public, /ws authenticates on its own.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(auth.Middleware(s.tokens, s.log, writeError))

	api.HandleFunc("/swipes", s.handle(s.recordSwipe)).Methods(http.MethodPost)
	api.HandleFunc("/recommendations", s.handle(s.recommendations)).Methods(http.MethodGet)

	api.HandleFunc("/matches/confirmed", s.handle(s.confirmedMatches)).Methods(http.MethodGet)
	api.HandleFunc("/matches/pending", s.handle(s.pendingMatches)).Methods(http.MethodGet)
	api.HandleFunc("/matches/sent", s.handle(s.sentMatches)).Methods(http.MethodGet)
	api.HandleFunc("/matches/{matchId}/accept", s.handle(s.acceptMatch)).Methods(http.MethodPost)
	api.HandleFunc("/matches/{matchId}/reject", s.handle(s.rejectMatch)).Methods(http.MethodPost)
	api.HandleFunc("/matches/{matchId}/chat", s.handle(s.openChat)).Methods(http.MethodPost)

	api.HandleFunc("/chats", s.handle(s.listChats)).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatId}/messages", s.handle(s.listMessages)).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatId}/messages", s.handle(s.createMessage)).Methods(http.MethodPost)
	api.HandleFunc("/chats/{chatId}/read", s.handle(s.markAsRead)).Methods(http.MethodPost)
	api.HandleFunc("/chats/{chatId}/unread-count", s.handle(s.unreadCount)).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatId}/search", s.handle(s.searchMessages)).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chatId}/attachments", s.handle(s.presignUpload)).Methods(http.MethodPost)
	api.HandleFunc("/chats/{chatId}/attachments", s.handle(s.presignDownload)).Methods(http.MethodGet)

	api.HandleFunc("/messages/{messageId}", s.handle(s.deleteMessage)).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userId}/presence", s.handle(s.presence)).Methods(http.MethodGet)

	return cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || lo.Contains(s.origins, "*") || lo.Contains(s.origins, origin)
}

// endpoint answers with a status and a body, or an error rendered by writeError.
type endpoint func(r *http.Request, userID string) (int, any, error)

func (s *Server) handle(fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFrom(r.Context())
		if !ok {
			writeError(w, errors.ErrUnauthenticated)
			return
		}
		for _, id := range mux.Vars(r) {
			if err := domain.ValidateID(id); err != nil {
				writeError(w, err)
				return
			}
		}
		status, body, err := fn(r, userID)
		if err != nil {
			if errors.HTTPStatus(err) >= http.StatusInternalServerError {
				s.log.Error("Request failed", "path", r.URL.Path, "user_id", userID, "error", err)
			}
			writeError(w, err)
			return
		}
		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errors.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func decodeBody[T any](r *http.Request) (T, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		var zero T
		return zero, err
	}
	return auth.Decode[T](raw)
}

// pageFrom reads page and limit; missing or malformed values fall back to the defaults.
func pageFrom(r *http.Request) domain.PageRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return domain.PageRequest{Page: page, Limit: limit}.Normalize()
}

func intQuery(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
