package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// ErrOpenerDisabled is returned when opening URLs is turned off
var ErrOpenerDisabled = errors.New("opening urls in the browser is disabled")

// BrowserOpener opens URLs with the platform's default handler
type BrowserOpener struct {
	enabled bool
	goos    string
	run     func(ctx context.Context, name string, args ...string) error
	logger  *zap.Logger
}

// NewBrowserOpener creates an opener for the current OS
func NewBrowserOpener(enabled bool, logger *zap.Logger) *BrowserOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserOpener{
		enabled: enabled,
		goos:    runtime.GOOS,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Start()
		},
		logger: logger,
	}
}

// Open hands target to the browser. Only http(s) URLs are accepted.
func (o *BrowserOpener) Open(ctx context.Context, target string) error {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q", target)
	}
	if !o.enabled {
		return ErrOpenerDisabled
	}

	name, args := o.command(target)
	o.logger.Debug("Opening in browser", zap.String("command", CommandLine(name, args...)))

	if err := o.run(ctx, name, args...); err != nil {
		o.logger.Warn("Failed to open browser",
			zap.String("command", CommandLine(name, args...)),
			zap.Error(err))
		return err
	}
	return nil
}

func (o *BrowserOpener) command(target string) (string, []string) {
	switch o.goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}
