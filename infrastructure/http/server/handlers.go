package server

import (
	"fmt"
	"match-chat/domain"
	"match-chat/errors"
	"match-chat/runtime"
	"net/http"

	"github.com/gorilla/mux"
)

type swipeRequest struct {
	TargetUserID string  `json:"targetUserId" validate:"required"`
	Action       string  `json:"action" validate:"required,oneof=like dislike superlike"`
	Score        float64 `json:"score"`
}

type messageRequest struct {
	Content  string          `json:"content" validate:"required"`
	Type     string          `json:"type" validate:"required,oneof=text image file location voice"`
	ReplyTo  string          `json:"replyTo,omitempty"`
	Metadata domain.Metadata `json:"metadata,omitempty"`
}

type readRequest struct {
	MessageIDs []string `json:"messageIds" validate:"required,min=1,dive,required"`
}

type attachmentRequest struct {
	FileName    string `json:"fileName" validate:"required"`
	ContentType string `json:"contentType" validate:"required"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "stats": s.stats.Stats()})
}

func (s *Server) recordSwipe(r *http.Request, userID string) (int, any, error) {
	body, err := decodeBody[swipeRequest](r)
	if err != nil {
		return 0, nil, err
	}
	outcome, err := s.svc.Matches.RecordSwipe(r.Context(), domain.Swipe{
		Actor:  userID,
		Target: body.TargetUserID,
		Action: domain.SwipeAction(body.Action),
		Score:  body.Score,
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, outcome, nil
}

func (s *Server) recommendations(r *http.Request, userID string) (int, any, error) {
	recommendations, err := s.svc.Recommendations.Recommend(r.Context(), userID, intQuery(r, "limit"))
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]any{"recommendations": recommendations}, nil
}

func (s *Server) confirmedMatches(r *http.Request, userID string) (int, any, error) {
	page, err := s.svc.Matches.Confirmed(r.Context(), userID, pageFrom(r))
	return http.StatusOK, page, err
}

func (s *Server) pendingMatches(r *http.Request, userID string) (int, any, error) {
	page, err := s.svc.Matches.PendingReceived(r.Context(), userID, pageFrom(r))
	return http.StatusOK, page, err
}

func (s *Server) sentMatches(r *http.Request, userID string) (int, any, error) {
	var status *domain.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := domain.MatchStatus(raw)
		if !st.Valid() {
			return 0, nil, fmt.Errorf("%w: unknown match status %q", errors.ErrInvalidPayload, raw)
		}
		status = &st
	}
	page, err := s.svc.Matches.Sent(r.Context(), userID, status, pageFrom(r))
	return http.StatusOK, page, err
}

func (s *Server) acceptMatch(r *http.Request, userID string) (int, any, error) {
	match, err := s.svc.Matches.Accept(r.Context(), mux.Vars(r)["matchId"], userID)
	return http.StatusOK, match, err
}

func (s *Server) rejectMatch(r *http.Request, userID string) (int, any, error) {
	match, err := s.svc.Matches.Reject(r.Context(), mux.Vars(r)["matchId"], userID)
	return http.StatusOK, match, err
}

func (s *Server) openChat(r *http.Request, userID string) (int, any, error) {
	chat, err := s.svc.Chats.GetOrCreateChat(r.Context(), mux.Vars(r)["matchId"], userID)
	return http.StatusOK, chat, err
}

func (s *Server) listChats(r *http.Request, userID string) (int, any, error) {
	chats, err := s.svc.Chats.ListChats(r.Context(), userID)
	return http.StatusOK, map[string]any{"chats": chats}, err
}

func (s *Server) listMessages(r *http.Request, userID string) (int, any, error) {
	page, err := s.svc.Messages.List(r.Context(), mux.Vars(r)["chatId"], userID, pageFrom(r))
	return http.StatusOK, page, err
}

// createMessage goes through the chat shard like realtime sends, so both paths share one order.
func (s *Server) createMessage(r *http.Request, userID string) (int, any, error) {
	body, err := decodeBody[messageRequest](r)
	if err != nil {
		return 0, nil, err
	}
	chatID := mux.Vars(r)["chatId"]
	if _, err := s.svc.Chats.Authorize(r.Context(), userID, chatID); err != nil {
		return 0, nil, err
	}
	message, err := runtime.SubmitMessage(r.Context(), s.dispatcher, domain.Draft{
		ChatID:   chatID,
		SenderID: userID,
		Content:  body.Content,
		Type:     domain.MessageType(body.Type),
		ReplyTo:  body.ReplyTo,
		Metadata: body.Metadata,
	})
	return http.StatusCreated, message, err
}

func (s *Server) markAsRead(r *http.Request, userID string) (int, any, error) {
	body, err := decodeBody[readRequest](r)
	if err != nil {
		return 0, nil, err
	}
	updated, err := s.svc.Messages.MarkAsRead(r.Context(), mux.Vars(r)["chatId"], userID, body.MessageIDs)
	if updated == nil {
		updated = []string{}
	}
	return http.StatusOK, map[string]any{"messageIds": updated}, err
}

func (s *Server) unreadCount(r *http.Request, userID string) (int, any, error) {
	count, err := s.svc.Chats.GetUnreadCount(r.Context(), mux.Vars(r)["chatId"], userID)
	return http.StatusOK, map[string]int{"unreadCount": count}, err
}

func (s *Server) searchMessages(r *http.Request, userID string) (int, any, error) {
	hits, err := s.svc.Search.Search(r.Context(), mux.Vars(r)["chatId"], userID, r.URL.Query().Get("q"), intQuery(r, "limit"))
	return http.StatusOK, map[string]any{"hits": hits}, err
}

func (s *Server) presignUpload(r *http.Request, userID string) (int, any, error) {
	body, err := decodeBody[attachmentRequest](r)
	if err != nil {
		return 0, nil, err
	}
	upload, err := s.svc.Attachments.PresignUpload(r.Context(), mux.Vars(r)["chatId"], userID, body.FileName, body.ContentType)
	return http.StatusOK, upload, err
}

func (s *Server) presignDownload(r *http.Request, userID string) (int, any, error) {
	key := r.URL.Query().Get("key")
	if key == "" {
		return 0, nil, fmt.Errorf("%w: key is required", errors.ErrInvalidPayload)
	}
	download, err := s.svc.Attachments.PresignDownload(r.Context(), mux.Vars(r)["chatId"], userID, key)
	return http.StatusOK, download, err
}

func (s *Server) deleteMessage(r *http.Request, userID string) (int, any, error) {
	message, err := s.svc.Messages.Delete(r.Context(), mux.Vars(r)["messageId"], userID)
	return http.StatusOK, message, err
}

func (s *Server) presence(r *http.Request, _ string) (int, any, error) {
	presence, err := s.svc.Presence.Presence(r.Context(), mux.Vars(r)["userId"])
	return http.StatusOK, presence, err
}
