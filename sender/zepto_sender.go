package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultZeptoURL = "https://api.zeptomail.com/v1.1/email"

// ZeptoSender sends through the ZeptoMail HTTP API.
type ZeptoSender struct {
	apiURL     string
	apiKey     string
	from       string
	fromName   string
	httpClient *http.Client
}

type zeptoRequest struct {
	From     zeptoAddress     `json:"from"`
	To       []zeptoRecipient `json:"to"`
	Subject  string           `json:"subject"`
	HtmlBody string           `json:"htmlbody"`
}

type zeptoAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type zeptoRecipient struct {
	Email zeptoAddress `json:"email_address"`
}

type zeptoResponse struct {
	RequestID string `json:"request_id"`
	Data      []struct {
		Code string `json:"code"`
	} `json:"data"`
}

func NewZeptoSender(apiURL, apiKey, from, fromName string) (*ZeptoSender, error) {
	if apiKey == "" || from == "" {
		return nil, fmt.Errorf("missing ZEPTO_API_KEY or EMAIL_FROM")
	}
	if apiURL == "" {
		apiURL = DefaultZeptoURL
	}
	return &ZeptoSender{
		apiURL:     apiURL,
		apiKey:     apiKey,
		from:       from,
		fromName:   fromName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (z *ZeptoSender) SendEmail(ctx context.Context, to, subject, htmlBody string) (SendResult, error) {
	payload, err := json.Marshal(zeptoRequest{
		From:     zeptoAddress{Address: z.from, Name: z.fromName},
		To:       []zeptoRecipient{{Email: zeptoAddress{Address: to}}},
		Subject:  subject,
		HtmlBody: htmlBody,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.apiURL, bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", z.apiKey)

	resp, err := z.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("zeptomail request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return SendResult{}, fmt.Errorf("zeptomail error %s: %s", resp.Status, string(body))
	}

	now := time.Now()
	result := SendResult{MessageID: fmt.Sprintf("zepto-%d", now.UnixNano()), SentAt: now}
	var zr zeptoResponse
	if json.Unmarshal(body, &zr) == nil && zr.RequestID != "" {
		result.MessageID = zr.RequestID
	}
	return result, nil
}
