// Package render captures HTML layouts as bitmaps using a headless Chrome.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"CircularsDesk/internal/export"
)

// ChromeConfig selects the browser to drive.
type ChromeConfig struct {
	// Bin is the Chrome executable; empty lets the launcher find or download one.
	Bin string
	// DebuggerURL attaches to an already running browser instead of launching.
	DebuggerURL string
	NoSandbox   bool
	// Settle is how long to wait for fonts after the page loads.
	Settle time.Duration
}

// ChromeRasterizer renders pages off-screen and takes full-page screenshots.
type ChromeRasterizer struct {
	cfg    ChromeConfig
	logger *slog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

var _ export.Rasterizer = (*ChromeRasterizer)(nil)

// NewChromeRasterizer defers the browser start until the first capture.
func NewChromeRasterizer(cfg ChromeConfig, logger *slog.Logger) *ChromeRasterizer {
	if cfg.Settle <= 0 {
		cfg.Settle = 600 * time.Millisecond
	}
	return &ChromeRasterizer{cfg: cfg, logger: logger}
}

// Rasterize loads the HTML at widthPx CSS pixels and captures it at pixelRatio.
func (c *ChromeRasterizer) Rasterize(ctx context.Context, html string, widthPx int, pixelRatio float64) (image.Image, error) {
	browser, err := c.ensureBrowser(ctx)
	if err != nil {
		return nil, err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	// SetViewport keeps the override in page state, which full-page screenshots reuse.
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             widthPx,
		Height:            1024,
		DeviceScaleFactor: pixelRatio,
		Mobile:            false,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("load table html: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.cfg.Settle):
	}

	shot, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	c.debug("table rasterized", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// Close shuts the browser down if it was started.
func (c *ChromeRasterizer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
	}
	if c.launcher != nil {
		c.launcher.Cleanup()
		c.launcher = nil
	}
	return err
}

func (c *ChromeRasterizer) ensureBrowser(ctx context.Context) (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		if _, err := c.browser.Version(); err == nil {
			return c.browser, nil
		}
		c.debug("stale browser connection, reconnecting")
		_ = c.browser.Close()
		c.browser = nil
	}

	controlURL := c.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(true).NoSandbox(c.cfg.NoSandbox)
		if c.cfg.Bin != "" {
			l = l.Bin(c.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		c.launcher = l
		controlURL = u
	}
	if controlURL == "" {
		return nil, errors.New("no chrome control url")
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	c.browser = browser
	return browser, nil
}

func (c *ChromeRasterizer) debug(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
