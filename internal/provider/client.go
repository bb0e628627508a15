package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"kyc_link_gateway/internal/apperrors"

	"go.uber.org/zap"
)

const (
	linksPath       = "/v2/smile_links"
	maxResponseSize = 1 << 20
)

type Client interface {
	CreateLink(ctx context.Context, payload LinkPayload) (*LinkCreationResult, error)
}

type httpClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient не делает повторных попыток: провайдер считает повторный запрос одноразовой ссылки новой выдачей.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) Client {
	return &httpClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *httpClient) CreateLink(ctx context.Context, payload LinkPayload) (*LinkCreationResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal link payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+linksPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		transportErr := &apperrors.TransportError{Timeout: isTimeout(err), Err: err}
		c.logger.Error("provider request failed",
			zap.Error(err),
			zap.Bool("timeout", transportErr.Timeout),
			zap.String("user_id", payload.UserID),
			zap.Duration("elapsed", time.Since(start)))
		return nil, transportErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("failed to read provider response", zap.Error(err), zap.Int("status", resp.StatusCode))
		return nil, &apperrors.TransportError{Timeout: isTimeout(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("provider rejected link request",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
			zap.String("user_id", payload.UserID))
		return nil, &apperrors.ProviderError{StatusCode: resp.StatusCode, Body: respBody}
	}

	result, err := parseLinkResponse(respBody)
	if err != nil {
		c.logger.Error("provider returned malformed response", zap.Error(err), zap.ByteString("body", respBody))
		return nil, &apperrors.ProviderError{StatusCode: resp.StatusCode, Body: respBody}
	}

	c.logger.Info("verification link created",
		zap.String("user_id", payload.UserID),
		zap.String("ref_id", result.RefID),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func parseLinkResponse(body []byte) (*LinkCreationResult, error) {
	var fields struct {
		LinkURL string `json:"link_url"`
		Link    string `json:"link"`
		RefID   string `json:"ref_id"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode link response: %w", err)
	}

	linkURL := fields.LinkURL
	if linkURL == "" {
		linkURL = fields.Link
	}

	return &LinkCreationResult{
		Raw:     json.RawMessage(body),
		LinkURL: linkURL,
		RefID:   fields.RefID,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
