package e2e

import (
	"encoding/json"
	"match-chat/domain"
	"match-chat/domain/event"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testMatchChatSuite struct {
	BaseSuite
}

func TestMatchChatSuite(t *testing.T) {
	suite.Run(t, &testMatchChatSuite{})
}

func (s *testMatchChatSuite) TestFromSwipeToRealtimeMessage() {
	alice := "e2e-alice-" + uuid.NewString()[:8]
	bob := "e2e-bob-" + uuid.NewString()[:8]
	var matchID, chatID string

	s.Run("Step 1: Mutual like", func() {
		var outcome domain.SwipeOutcome
		s.Require().Equal(http.StatusOK, s.Call(http.MethodPost, "/swipes", alice,
			map[string]any{"targetUserId": bob, "action": "like", "score": 0.8}, &outcome))
		s.Require().Equal(domain.PendingMatch, outcome.Result)

		s.Require().Equal(http.StatusOK, s.Call(http.MethodPost, "/swipes", bob,
			map[string]any{"targetUserId": alice, "action": "like"}, &outcome))
		s.Require().Equal(domain.MutualMatch, outcome.Result)
		s.Require().NotEmpty(outcome.Match.ChatID)
		matchID = outcome.Match.ID
	})

	s.Run("Step 2: Open the chat", func() {
		var chat domain.Chat
		s.Require().Equal(http.StatusOK, s.Call(http.MethodPost, "/matches/"+matchID+"/chat", alice, nil, &chat))
		s.Require().ElementsMatch([]string{alice, bob}, chat.Participants)
		chatID = chat.ID
	})

	s.Run("Step 3: Realtime delivery", func() {
		aliceConn := s.Dial("alice connects", alice)
		defer aliceConn.Close()
		bobConn := s.Dial("bob connects", bob)
		defer bobConn.Close()

		data, err := json.Marshal(event.SendMessagePayload{ChatID: chatID, Content: "hello from e2e", Type: "text"})
		s.Require().NoError(err)
		s.Require().NoError(aliceConn.WriteJSON(event.Frame{ID: "e2e-1", Event: event.SendMessage, Data: data}))

		var ack event.Ack
		s.Require().NoError(json.Unmarshal(s.Expect(aliceConn, event.SendMessage).Data, &ack))
		s.Require().True(ack.Success, ack.Error)

		var pushed event.MessageCreated
		s.Require().NoError(json.Unmarshal(s.Expect(bobConn, string(event.NewMessageType)).Data, &pushed))
		s.Require().Equal("hello from e2e", pushed.Message.Content)
	})

	s.Run("Step 4: Unread counter", func() {
		var unread map[string]int
		s.Require().Equal(http.StatusOK, s.Call(http.MethodGet, "/chats/"+chatID+"/unread-count", bob, nil, &unread))
		s.Require().Equal(1, unread["unreadCount"])
	})
}
