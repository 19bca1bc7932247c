package handlers

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errPrivateTarget = errors.New("target address is not public")

// ProxyHandler re-serves remote bytes with a permissive CORS header so the
// proxy delivery strategy can point at this server
type ProxyHandler struct {
	client       *http.Client
	maxBytes     int64
	allowPrivate bool
	logger       *zap.Logger
}

// NewProxyHandler creates a proxy handler. Responses larger than maxBytes are
// refused. Unless allowPrivate is set, loopback, private and link-local
// targets are refused, both by name and at dial time.
func NewProxyHandler(client *http.Client, maxBytes int64, allowPrivate bool, logger *zap.Logger) *ProxyHandler {
	if client == nil {
		client = &http.Client{}
	}
	if !allowPrivate {
		client = publicOnlyClient(client)
	}
	return &ProxyHandler{
		client:       client,
		maxBytes:     maxBytes,
		allowPrivate: allowPrivate,
		logger:       logger,
	}
}

// publicOnlyClient copies client with a transport that refuses to dial
// non-public addresses, which also covers redirects and DNS answers
func publicOnlyClient(client *http.Client) *http.Client {
	var transport *http.Transport
	switch t := client.Transport.(type) {
	case nil:
		transport = http.DefaultTransport.(*http.Transport).Clone()
	case *http.Transport:
		transport = t.Clone()
	default:
		return client
	}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   refusePrivateDial,
	}
	transport.DialContext = dialer.DialContext

	guarded := *client
	guarded.Transport = transport
	return &guarded
}

func refusePrivateDial(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", errPrivateTarget, host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}

// checkPublicHost refuses names and literals that obviously point inward
func checkPublicHost(host string) error {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %s", errPrivateTarget, host)
	}
	if ip := net.ParseIP(host); ip != nil && !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", errPrivateTarget, host)
	}
	return nil
}

// Serve handles GET /api/v1/proxy?url=
func (h *ProxyHandler) Serve(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")

	target, err := parseProxyTarget(c.Query("url"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.allowPrivate {
		if err := checkPublicHost(target.Hostname()); err != nil {
			h.logger.Warn("Proxy target refused", zap.String("url", target.String()), zap.Error(err))
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Header.Set("User-Agent", "nicedowns-proxy/"+Version)

	resp, err := h.client.Do(req)
	if errors.Is(err, errPrivateTarget) {
		h.logger.Warn("Proxy target refused", zap.String("url", target.String()), zap.Error(err))
		c.JSON(http.StatusForbidden, gin.H{"error": errPrivateTarget.Error()})
		return
	}
	if err != nil {
		h.logger.Warn("Proxy fetch failed", zap.String("url", target.String()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unreachable"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		h.logger.Info("Proxy upstream refused",
			zap.String("url", target.String()),
			zap.Int("status", resp.StatusCode))
		c.JSON(http.StatusBadGateway, gin.H{
			"error":           "upstream returned an error",
			"upstream_status": resp.StatusCode,
		})
		return
	}

	if h.maxBytes > 0 && resp.ContentLength > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("payload of %d bytes exceeds limit", resp.ContentLength),
		})
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var body io.Reader = resp.Body
	if h.maxBytes > 0 {
		body = io.LimitReader(resp.Body, h.maxBytes)
	}

	extra := map[string]string{}
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		extra["Content-Disposition"] = disposition
	}

	h.logger.Debug("Proxying",
		zap.String("url", target.String()),
		zap.String("content_type", contentType),
		zap.String("length", strconv.FormatInt(resp.ContentLength, 10)))

	c.DataFromReader(http.StatusOK, resp.ContentLength, contentType, body, extra)
}

func parseProxyTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("query parameter 'url' is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %v", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("only http and https urls can be proxied")
	}
	return u, nil
}
