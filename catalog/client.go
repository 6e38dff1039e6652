package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Executor dispatches one GraphQL document against the shop catalog.
// The apply and fetch stages depend on this interface so tests can fake the
// remote without a network.
type Executor interface {
	Execute(ctx context.Context, query string) (json.RawMessage, error)
}

// Client is the shop Admin GraphQL client. Every call funnels through the
// shared Limiter, which is the process-wide rate budget for the shop API.
type Client struct {
	baseURL  string
	token    string
	tokenHdr string
	http     *http.Client
	limiter  *Limiter
}

func NewClient(limiter *Limiter) (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("SHOP_API_URL"))
	if baseURL == "" {
		return nil, errors.New("SHOP_API_URL is required")
	}
	token := strings.TrimSpace(os.Getenv("SHOP_API_TOKEN"))
	if token == "" {
		return nil, errors.New("SHOP_API_TOKEN is required")
	}
	tokenHeader := strings.TrimSpace(os.Getenv("SHOP_API_TOKEN_HEADER"))
	if tokenHeader == "" {
		tokenHeader = "X-Shopify-Access-Token"
	}
	if limiter == nil {
		return nil, errors.New("limiter is required")
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		tokenHdr: tokenHeader,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  limiter,
	}, nil
}

// Execute runs one document through the limiter and returns the response data.
// Top-level GraphQL errors are call failures; per-item userErrors inside data
// are the caller's to decode.
func (c *Client) Execute(ctx context.Context, query string) (json.RawMessage, error) {
	var data json.RawMessage
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		payload, err := json.Marshal(map[string]string{"query": query})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set(c.tokenHdr, c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("shop api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var parsed graphQLResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return err
		}
		if len(parsed.Errors) > 0 {
			msgs := make([]string, 0, len(parsed.Errors))
			for _, e := range parsed.Errors {
				msgs = append(msgs, e.Message)
			}
			return fmt.Errorf("shop api graphql errors: %s", strings.Join(msgs, "; "))
		}
		data = parsed.Data
		return nil
	})
	return data, err
}
