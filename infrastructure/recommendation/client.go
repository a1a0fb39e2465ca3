package recommendation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"match-chat/contract"
	"match-chat/errors"
	"net/http"
	"strings"
	"time"
)

var _ contract.RecommendationProvider = (*Client)(nil)

type response struct {
	Recommendations []contract.Candidate `json:"recommendations"`
}

// Client calls the external ranking service. Every failure is reported as
// ErrProviderUnavailable so the caller can fall back.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (c *Client) Recommend(ctx context.Context, req contract.RecommendationRequest) ([]contract.Candidate, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommendations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("%w: status %d", errors.ErrProviderUnavailable, res.StatusCode)
	}
	var decoded response
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", errors.ErrProviderUnavailable, err)
	}
	c.log.Debug("Recommendations received", "user_id", req.UserID, "count", len(decoded.Recommendations))
	return decoded.Recommendations, nil
}
