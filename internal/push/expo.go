package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/cupid-copilot/backend/internal/metrics"
)

const expoChunkSize = 100

var expoTokenPattern = regexp.MustCompile(`^Expo(nent)?PushToken\[[^\]]+\]$`)

// IsExpoToken reports whether token has the Expo push token shape.
func IsExpoToken(token string) bool {
	return expoTokenPattern.MatchString(token)
}

type expoMessage struct {
	To       string `json:"to"`
	Sound    string `json:"sound"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
	Badge    int    `json:"badge"`
}

type expoTicket struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

// ExpoClient delivers notifications through Expo's push HTTP API.
type ExpoClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewExpoClient(url string, logger *slog.Logger) *ExpoClient {
	return &ExpoClient{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// SendToTokens pushes the same title/body to every token. Malformed tokens
// are skipped and reported in InvalidTokens; chunk-level failures degrade the
// result instead of aborting the remaining chunks.
func (c *ExpoClient) SendToTokens(ctx context.Context, tokens []string, title, body string) (SendResult, error) {
	result := SendResult{Total: len(tokens)}

	valid := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if IsExpoToken(token) {
			valid = append(valid, token)
		} else {
			result.InvalidTokens = append(result.InvalidTokens, token)
		}
	}
	if len(valid) == 0 {
		return result, fmt.Errorf("no valid expo push tokens among %d recipients", len(tokens))
	}

	for start := 0; start < len(valid); start += expoChunkSize {
		end := min(start+expoChunkSize, len(valid))
		chunk := valid[start:end]

		tickets, err := c.sendChunk(ctx, chunk, title, body)
		if err != nil {
			c.logger.Error("expo chunk delivery failed", slog.Int("size", len(chunk)), slog.String("error", err.Error()))
			result.Errors = append(result.Errors, DeliveryError{Message: err.Error()})
			continue
		}
		for i, ticket := range tickets {
			if ticket.Status == "error" {
				token := ""
				if i < len(chunk) {
					token = chunk[i]
				}
				result.Errors = append(result.Errors, DeliveryError{Token: token, Message: ticket.Message})
				continue
			}
			result.Sent++
		}
	}

	result.Success = result.Sent > 0
	metrics.PushDeliveriesTotal.WithLabelValues("delivered").Add(float64(result.Sent))
	metrics.PushDeliveriesTotal.WithLabelValues("failed").Add(float64(len(result.Errors)))
	metrics.PushDeliveriesTotal.WithLabelValues("invalid").Add(float64(len(result.InvalidTokens)))
	return result, nil
}

func (c *ExpoClient) sendChunk(ctx context.Context, tokens []string, title, body string) ([]expoTicket, error) {
	messages := make([]expoMessage, len(tokens))
	for i, token := range tokens {
		messages[i] = expoMessage{
			To:       token,
			Sound:    "default",
			Title:    title,
			Body:     body,
			Priority: "high",
			Badge:    1,
		}
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode expo messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build expo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("expo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("expo returned status %d", resp.StatusCode)
	}

	var decoded expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode expo response: %w", err)
	}
	return decoded.Data, nil
}
