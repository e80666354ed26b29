package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Session is the capability surface the state machine is allowed to use.
// Everything it knows about the target UI must be expressible as locator
// fallback lists handed to these primitives.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	ClickLast(ctx context.Context, selector string) error
	PressEnter(ctx context.Context) error
	VisibleText(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	IsAlive() bool
	Screenshot(path string) error
	Close() error
}

// SessionConfig configures the rod-backed session.
type SessionConfig struct {
	Headless          bool
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Headless:          false,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		NavigationTimeout: 60 * time.Second,
	}
}

// RodSession drives one Chrome page over CDP. It is owned exclusively by a
// single publish attempt and must be closed on every exit path.
type RodSession struct {
	cfg      SessionConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// NewRodSession launches a browser and opens one blank page.
func NewRodSession(ctx context.Context, cfg SessionConfig) (*RodSession, error) {
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}

	l := launcher.New().Headless(cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		_ = (proto.EmulationSetDeviceMetricsOverride{
			Width:             cfg.ViewportWidth,
			Height:            cfg.ViewportHeight,
			DeviceScaleFactor: 1.0,
			Mobile:            false,
		}).Call(page)
	}

	return &RodSession{cfg: cfg, launcher: l, browser: browser, page: page}, nil
}

// Navigate opens the URL and waits for the load event.
func (s *RodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	// Load may legitimately straggle on heavy pages; the caller's waits
	// decide whether the page is actually usable.
	_ = page.WaitLoad()
	return nil
}

// WaitVisible blocks until an element matching selector is visible, or the
// timeout elapses.
func (s *RodSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	page := s.page.Context(ctx).Timeout(timeout)
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	return el.WaitVisible()
}

// Fill focuses the first element matching selector and types text into it.
func (s *RodSession) Fill(ctx context.Context, selector, text string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("focus %s: %w", selector, err)
	}
	return el.Input(text)
}

// Click clicks the first element matching selector.
func (s *RodSession) Click(ctx context.Context, selector string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// ClickLast clicks the structurally-last element matching selector.
func (s *RodSession) ClickLast(ctx context.Context, selector string) error {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	els, err := page.Elements(selector)
	if err != nil {
		return fmt.Errorf("elements %s: %w", selector, err)
	}
	if len(els) == 0 {
		return fmt.Errorf("no elements match %s", selector)
	}
	return els[len(els)-1].Click(proto.InputMouseButtonLeft, 1)
}

// PressEnter sends the Enter key to the focused element.
func (s *RodSession) PressEnter(ctx context.Context) error {
	return s.page.Context(ctx).Keyboard.Press(input.Enter)
}

// VisibleText returns the rendered text of the page body.
func (s *RodSession) VisibleText(ctx context.Context) (string, error) {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	el, err := page.Element("body")
	if err != nil {
		return "", err
	}
	return el.Text()
}

// CurrentURL returns the page's current location.
func (s *RodSession) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// IsAlive reports whether the page target still exists.
func (s *RodSession) IsAlive() bool {
	if s.page == nil {
		return false
	}
	_, err := s.page.Info()
	return err == nil
}

// Screenshot captures the viewport to path, creating parent directories.
func (s *RodSession) Screenshot(path string) error {
	data, err := s.page.Screenshot(false, nil)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Close tears down the page, browser, and launched process. Safe to call on
// a partially dead session.
func (s *RodSession) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, err)
		}
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
		s.launcher = nil
	}
	return errors.Join(errs...)
}
