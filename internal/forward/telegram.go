package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TelegramTransport sends matched messages to the destination chat through
// the Bot API sendMessage call.
type TelegramTransport struct {
	baseURL    string
	httpClient *http.Client
}

// NewTelegramTransport creates a Bot API transport. The timeout bounds each
// attempt so a stuck send cannot outlive its claim lease.
func NewTelegramTransport(token string, timeout time.Duration) *TelegramTransport {
	return &TelegramTransport{
		baseURL:    "https://api.telegram.org/bot" + token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// newTelegramTransportForURL is the test seam for pointing at a fake server.
func newTelegramTransportForURL(baseURL string, timeout time.Duration) *TelegramTransport {
	return &TelegramTransport{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Forward delivers one message. HTTP 2xx is success; 429 and 5xx are
// retryable, as are network errors; 4xx responses mean the destination or
// request is permanently bad.
func (t *TelegramTransport) Forward(ctx context.Context, destination int64, text string, matchedKeywords []string) Outcome {
	payload := sendMessageRequest{
		ChatID: destination,
		Text:   composeForward(text, matchedKeywords),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Kind: FatalFailure, Reason: fmt.Sprintf("failed to encode sendMessage payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: FatalFailure, Reason: fmt.Sprintf("failed to build sendMessage request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Outcome{Kind: RetryableFailure, Reason: fmt.Sprintf("sendMessage request failed: %v", err)}
	}
	defer resp.Body.Close()

	var apiResp sendMessageResponse
	_ = json.NewDecoder(resp.Body).Decode(&apiResp)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && apiResp.OK {
		return Outcome{Kind: Success}
	}

	reason := apiResp.Description
	if reason == "" {
		reason = resp.Status
	}
	reason = fmt.Sprintf("sendMessage returned %d: %s", resp.StatusCode, reason)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Outcome{Kind: RetryableFailure, Reason: reason}
	case resp.StatusCode >= 400:
		return Outcome{Kind: FatalFailure, Reason: reason}
	default:
		return Outcome{Kind: RetryableFailure, Reason: reason}
	}
}

// composeForward prefixes the original text with the keywords that matched,
// so the destination sees why the message was forwarded.
func composeForward(text string, matchedKeywords []string) string {
	if len(matchedKeywords) == 0 {
		return text
	}
	return "[" + strings.Join(matchedKeywords, ", ") + "]\n" + text
}
