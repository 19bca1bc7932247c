package infrastructure

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/nicedowns-go/internal/domain"
)

// ProgressFunc returns a writer that receives a copy of the transferred bytes.
// total is -1 when the size is unknown.
type ProgressFunc func(total int64, description string) io.Writer

// transfer fetches a complete payload into memory
type transfer struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	progress ProgressFunc
}

// fetchResult is the outcome of a single GET
type fetchResult struct {
	payload []byte
	header  http.Header
}

// blockedStatus lists responses that mean the host refuses this kind of read
var blockedStatus = map[int]bool{
	http.StatusUnauthorized:                true,
	http.StatusForbidden:                   true,
	http.StatusUnavailableForLegalReasons:  true,
	http.StatusProxyAuthRequired:           true,
	http.StatusMethodNotAllowed:            true,
	http.StatusRequestHeaderFieldsTooLarge: true,
}

// fetch GETs target and reads the whole body. It fails unless the body is
// complete (matches Content-Length when present) and within maxBytes.
func (t *transfer) fetch(ctx context.Context, target string, header http.Header, label string) (*fetchResult, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if blockedStatus[resp.StatusCode] {
			return nil, fmt.Errorf("%w: status %d", domain.ErrDeliveryBlocked, resp.StatusCode)
		}
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := checkMediaType(resp.Header.Get("Content-Type")); err != nil {
		return nil, err
	}

	if t.maxBytes > 0 && resp.ContentLength > t.maxBytes {
		return nil, fmt.Errorf("%w: %s", domain.ErrPayloadTooLarge, domain.FormatBytes(resp.ContentLength))
	}

	var reader io.Reader = resp.Body
	if t.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, t.maxBytes+1)
	}
	if t.progress != nil {
		if w := t.progress(resp.ContentLength, label); w != nil {
			reader = io.TeeReader(reader, w)
		}
	}

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("incomplete body: %w", err)
	}
	if t.maxBytes > 0 && int64(len(payload)) > t.maxBytes {
		return nil, fmt.Errorf("%w: more than %s", domain.ErrPayloadTooLarge, domain.FormatBytes(t.maxBytes))
	}
	if resp.ContentLength >= 0 && int64(len(payload)) != resp.ContentLength {
		return nil, fmt.Errorf("incomplete body: got %d of %d bytes", len(payload), resp.ContentLength)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if sniffed := http.DetectContentType(payload); strings.HasPrefix(sniffed, "text/html") {
		return nil, fmt.Errorf("%w: body looks like an html page", domain.ErrNotMedia)
	}

	return &fetchResult{payload: payload, header: resp.Header}, nil
}

// pageTypes are content types served for web pages and API errors, never for media
var pageTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
	"application/json":      true,
	"text/javascript":       true,
}

// checkMediaType rejects responses whose declared type is a page rather than a payload
func checkMediaType(contentType string) error {
	if contentType == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	if pageTypes[strings.ToLower(mediaType)] {
		return fmt.Errorf("%w: content type %s", domain.ErrNotMedia, mediaType)
	}
	return nil
}

// allowsOrigin reports whether a response permits a cross-origin read from origin
func allowsOrigin(header http.Header, origin string) bool {
	allowed := strings.TrimSpace(header.Get("Access-Control-Allow-Origin"))
	if allowed == "*" {
		return true
	}
	return allowed != "" && strings.EqualFold(strings.TrimRight(allowed, "/"), strings.TrimRight(origin, "/"))
}
