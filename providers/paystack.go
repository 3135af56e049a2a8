package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Bames007/sauni/models"
)

const DefaultPaystackBaseURL = "https://api.paystack.co"

// PaystackProvider implements PaymentGateway using the Paystack REST API.
type PaystackProvider struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewPaystackProvider(secretKey, baseURL string, timeout time.Duration) *PaystackProvider {
	if baseURL == "" {
		baseURL = DefaultPaystackBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PaystackProvider{
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Verify calls GET /transaction/verify/{reference} once.
func (p *PaystackProvider) Verify(ctx context.Context, reference string) (*models.VerifyResponse, error) {
	var out models.VerifyResponse
	if err := p.doRequest(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyWebhookSignature compares x-paystack-signature with the hex
// HMAC-SHA512 of the raw body keyed by the secret key.
func (p *PaystackProvider) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// ---- HTTP helper ----

// doRequest decodes the body into out whatever the status code, since
// Paystack reports lookup failures as {"status":false,"message":...} with
// a 4xx. Only an undecodable error response is returned as an error.
func (p *PaystackProvider) doRequest(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(respBytes, out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("paystack API error (status %d): %s", resp.StatusCode, truncate(string(respBytes), 200))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
