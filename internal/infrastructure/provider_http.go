package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/nicedowns-go/internal/domain"
	"go.uber.org/zap"
)

// maxProviderBody caps how much of an upstream JSON response is read
const maxProviderBody = 8 << 20

// apiClient performs the single GET each provider call makes. It never retries.
type apiClient struct {
	name    string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

func newAPIClient(name string, client *http.Client, timeout time.Duration, logger *zap.Logger) *apiClient {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &apiClient{
		name:    name,
		http:    client,
		timeout: timeout,
		logger:  logger.With(zap.String("provider", name)),
	}
}

// getJSON fetches endpoint and decodes the body into out, mapping failures to ProviderError kinds
func (c *apiClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.NewProviderError(c.name, domain.ProviderMalformed, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Provider request failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return domain.NewProviderError(c.name, domain.ProviderUnreachable, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Provider responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= 500 {
		return domain.NewProviderError(c.name, domain.ProviderUnreachable, fmt.Errorf("upstream status %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewProviderError(c.name, domain.ProviderMalformed, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return domain.NewProviderError(c.name, domain.ProviderUnreachable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewProviderError(c.name, domain.ProviderMalformed, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// flexString accepts JSON strings and numbers
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// flexBool accepts true/false, non-zero numbers and non-empty strings
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = flexBool(t)
	case float64:
		*f = t != 0
	case string:
		*f = t != "" && t != "false" && t != "0"
	default:
		*f = false
	}
	return nil
}

// flexInt accepts numbers and numeric strings
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*f = flexInt(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexInt(n)
	default:
		*f = 0
	}
	return nil
}

// durationSeconds converts a provider duration ("15", 15, "1:05") to seconds
func durationSeconds(value flexString) *int {
	seconds, ok := domain.ParseDuration(string(value))
	if !ok || seconds <= 0 {
		return nil
	}
	return &seconds
}

func emptyResult(provider string, format string, args ...interface{}) error {
	return domain.NewProviderError(provider, domain.ProviderEmptyResult, fmt.Errorf(format, args...))
}

// degradedDescriptor substitutes the original input as the only asset
func degradedDescriptor(platform domain.Platform, provider, rawInput string) *domain.MediaDescriptor {
	return &domain.MediaDescriptor{
		Platform: platform,
		Title:    platform.DisplayName() + " content",
		Assets: []domain.AssetVariant{{
			MediaType: domain.MediaVideo,
			URL:       rawInput,
			Quality:   "original",
			Manual:    true,
		}},
		Degraded:       true,
		Caveat:         "The provider returned no media for this link. Opening it will let you save it manually.",
		SourceProvider: provider,
	}
}
