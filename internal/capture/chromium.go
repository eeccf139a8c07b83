// Package capture renders a page to PNG with headless Chromium.
package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	DefaultWidth      = 1280
	DefaultHeight     = 960
	DefaultTimeoutSec = 30

	// ReadySelector is set by the month view once it has rendered.
	ReadySelector = `[data-ready="true"]`
)

// Options defines one screenshot.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar?month=2025-01".
	URL string

	// OutputPath is where the PNG is written; parent directories are created.
	OutputPath string

	// Width and Height are the viewport in pixels; zero means the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture; zero means DefaultTimeoutSec.
	Timeout time.Duration

	// Username and Password, when set, are sent as HTTP Basic credentials.
	Username string
	Password string
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeoutSec * time.Second
	}
	return nil
}

func (o Options) tasks(png *[]byte) chromedp.Tasks {
	tasks := chromedp.Tasks{network.Enable()}
	if o.Username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(o.Username + ":" + o.Password))
		tasks = append(tasks, network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}))
	}
	return append(tasks,
		chromedp.EmulateViewport(int64(o.Width), int64(o.Height)),
		chromedp.Navigate(o.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(png, 100),
	)
}

// Snapshot navigates to opts.URL, waits for ReadySelector and writes a full-page PNG.
func Snapshot(parentCtx context.Context, opts Options) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	if err := chromedp.Run(ctx, opts.tasks(&png)); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: create output dir: %w", err)
	}
	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}
