package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"match-chat/auth"
	"match-chat/domain/event"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	tokens *auth.TokenService
	client *http.Client
}

// SetupSuite loads the environment configuration and skips unless enabled.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if !s.Config.Enabled {
		s.T().Skip("E2E_ENABLED is not set")
	}
	s.Require().NotEmpty(s.Config.JWTSecret, "JWT_SECRET is required to mint test tokens")
	s.tokens = auth.NewTokenService(s.Config.JWTSecret, s.Config.JWTIssuer)
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

func (s *BaseSuite) token(userID string) string {
	token, err := s.tokens.Generate(userID, time.Hour)
	s.Require().NoError(err)
	return token
}

// Call sends an authenticated JSON request and decodes the answer into out.
func (s *BaseSuite) Call(method, path, userID string, body, out any) int {
	t := s.T()
	var reader io.Reader = http.NoBody
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.Config.ServerURL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token(userID))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := s.client.Do(req)
	s.Require().NoError(err)
	defer func() { _ = res.Body.Close() }()
	answer, err := io.ReadAll(res.Body)
	s.Require().NoError(err)

	t.Logf("HTTP %s %s [%d] in %v", method, path, res.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		t.Logf("REQUEST: %s\nRESPONSE: %s", raw, answer)
	}
	if out != nil && len(answer) > 0 {
		s.Require().NoError(json.Unmarshal(answer, out))
	}
	return res.StatusCode
}

// Dial opens the realtime channel for userID with a query credential.
func (s *BaseSuite) Dial(name, userID string) *websocket.Conn {
	s.header(s.T(), name)
	url := "ws" + strings.TrimPrefix(s.Config.ServerURL, "http") + "/ws?token=" + s.token(userID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to open the realtime channel at "+s.Config.ServerURL)
	return conn
}

// Expect reads frames until one named name arrives.
func (s *BaseSuite) Expect(conn *websocket.Conn, name string) event.Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	for {
		var frame event.Frame
		s.Require().NoError(conn.ReadJSON(&frame), "waiting for "+name)
		if s.Config.DebugJSON {
			s.T().Logf("FRAME %s: %s", frame.Event, frame.Data)
		}
		if frame.Event == name {
			return frame
		}
	}
}
