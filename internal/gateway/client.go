// Package gateway предоставляет клиент внешнего расчётного шлюза,
// через который проходят карточные сессии, пополнения и переводы на
// внешние адреса. Сам перевод выполняет шлюз; сервис только опрашивает
// его статусы.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Статусы операций шлюза.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Client инкапсулирует HTTP-взаимодействие с расчётным шлюзом.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// OperationStatus описывает ответ шлюза по одной операции.
type OperationStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// NewClient создаёт HTTP-клиент для обращения к шлюзу по указанному адресу.
func NewClient(baseURL string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 5 * time.Second
	c.Logger = nil
	// Повторяются только транспортные ошибки: ответ 429 с Retry-After
	// должен дойти до вызывающего, а не раствориться в ретраях клиента.
	c.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: c,
	}
}

// GetTransferStatus запрашивает статус внешнего перевода (вывода средств).
func (c *Client) GetTransferStatus(ctx context.Context, externalID string) (*OperationStatus, int, time.Duration, error) {
	return c.getStatus(ctx, "transfers", externalID)
}

// GetSessionStatus запрашивает статус платёжной сессии (оплата картой или
// перевод в стейблкоине).
func (c *Client) GetSessionStatus(ctx context.Context, externalID string) (*OperationStatus, int, time.Duration, error) {
	return c.getStatus(ctx, "sessions", externalID)
}

func (c *Client) getStatus(ctx context.Context, kind, externalID string) (*OperationStatus, int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, 0, fmt.Errorf("gateway client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/api/%s/%s", base, kind, externalID)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	}

	// Шлюз ещё не знает об операции.
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, 0, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result OperationStatus
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, 0, nil
}
