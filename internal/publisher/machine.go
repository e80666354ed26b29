// Package publisher drives a browser session through the target site's
// login and compose flow. The flow is an uncertain UI graph: screens may or
// may not appear and locators go stale between sessions, so every step uses
// observation-gated transitions with ordered locator fallback instead of a
// fixed linear script.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StageID names one observable point in the target UI flow.
type StageID string

const (
	StageNavigateLogin       StageID = "navigate_login"
	StageAwaitLoginForm      StageID = "await_login_form"
	StageEnterIdentifier     StageID = "enter_identifier"
	StageObserveBranch       StageID = "observe_branch"
	StageChallengeIdentifier StageID = "challenge_identifier"
	StageAwaitPasswordField  StageID = "await_password_field"
	StageEnterPassword       StageID = "enter_password"
	StageAwaitHome           StageID = "await_home"
	StageComposeOpen         StageID = "compose_open"
	StageEnterText           StageID = "enter_text"
	StageSubmit              StageID = "submit"
	StageVerify              StageID = "verify"
)

// Outcome is the terminal state of one publish attempt.
type Outcome int

const (
	OutcomeAborted Outcome = iota
	OutcomePublished
	OutcomePublishedUnconfirmed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomePublishedUnconfirmed:
		return "published_unconfirmed"
	default:
		return "aborted"
	}
}

// Result reports how an attempt ended. Artifact, when set, is the path of a
// screenshot captured at the reported stage.
type Result struct {
	Outcome  Outcome
	Stage    StageID
	Artifact string
	Err      error
}

// Credentials identify the account being driven. Email goes into the first
// login screen; Handle answers re-verification interstitials.
type Credentials struct {
	Email    string
	Handle   string
	Password string
}

// Timeouts bound every wait in the flow. Probe is the per-locator wait
// inside one polling round; Poll is the pause between rounds.
type Timeouts struct {
	LoginForm     time.Duration
	PasswordField time.Duration
	HomeRedirect  time.Duration
	VerifyDelay   time.Duration
	SettleDelay   time.Duration
	Probe         time.Duration
	Poll          time.Duration
}

// DefaultTimeouts returns production timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		LoginForm:     30 * time.Second,
		PasswordField: 30 * time.Second,
		HomeRedirect:  60 * time.Second,
		VerifyDelay:   5 * time.Second,
		SettleDelay:   3 * time.Second,
		Probe:         time.Second,
		Poll:          500 * time.Millisecond,
	}
}

// Machine executes one publish attempt over a Session. It never owns the
// session's lifecycle: the caller opens it and closes it on every exit path.
type Machine struct {
	Flow         Flow
	Timeouts     Timeouts
	ArtifactsDir string
	Log          *zap.Logger
}

// NewMachine returns a machine with the default flow and timeouts.
func NewMachine(log *zap.Logger, artifactsDir string) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		Flow:         DefaultFlow(),
		Timeouts:     DefaultTimeouts(),
		ArtifactsDir: artifactsDir,
		Log:          log,
	}
}

// Run drives the full stage sequence and publishes text. Stages run
// strictly sequentially; a liveness check gates every stage entry and a
// dead session short-circuits straight to an aborted result.
func (m *Machine) Run(ctx context.Context, s Session, creds Credentials, text string) Result {
	attemptID := uuid.NewString()[:8]
	log := m.Log.With(zap.String("attempt", attemptID))

	// NavigateLogin
	if r, ok := m.gate(log, s, StageNavigateLogin); !ok {
		return r
	}
	log.Info("opening login surface", zap.String("url", m.Flow.LoginURL))
	if err := s.Navigate(ctx, m.Flow.LoginURL); err != nil {
		log.Warn("primary login navigation failed, trying secondary", zap.Error(err))
		if err := s.Navigate(ctx, m.Flow.LoginRetryURL); err != nil {
			return m.abort(log, s, attemptID, StageNavigateLogin, err)
		}
	}

	// AwaitLoginForm
	if r, ok := m.gate(log, s, StageAwaitLoginForm); !ok {
		return r
	}
	if _, err := m.waitAnyVisible(ctx, s, m.Flow.LoginFields, m.Timeouts.LoginForm); err != nil {
		log.Warn("login form not detected, re-navigating once", zap.Error(err))
		if err := s.Navigate(ctx, m.Flow.LoginRetryURL); err != nil {
			return m.abort(log, s, attemptID, StageAwaitLoginForm, err)
		}
		if _, err := m.waitAnyVisible(ctx, s, m.Flow.LoginFields, m.Timeouts.LoginForm); err != nil {
			return m.abort(log, s, attemptID, StageAwaitLoginForm,
				&StageTimeoutError{Stage: StageAwaitLoginForm, Timeout: m.Timeouts.LoginForm})
		}
	}

	// EnterIdentifier: the account email goes into the first screen, not
	// the public handle.
	if r, ok := m.gate(log, s, StageEnterIdentifier); !ok {
		return r
	}
	if err := m.fillFirst(ctx, log, s, m.Flow.LoginFields, creds.Email); err != nil {
		return m.abort(log, s, attemptID, StageEnterIdentifier, err)
	}
	m.advance(ctx, log, s)
	m.pause(ctx, m.Timeouts.SettleDelay)

	// ObserveBranch: a re-verification interstitial may or may not appear.
	if r, ok := m.gate(log, s, StageObserveBranch); !ok {
		return r
	}
	pageText, err := s.VisibleText(ctx)
	if err != nil {
		log.Warn("could not read page text, assuming no challenge", zap.Error(err))
		pageText = ""
	}
	if LooksLikeChallenge(pageText, m.Flow.ChallengeMarkers) {
		log.Info("challenge screen detected, answering with handle")

		// ChallengeIdentifier
		if r, ok := m.gate(log, s, StageChallengeIdentifier); !ok {
			return r
		}
		if err := m.fillFirst(ctx, log, s, m.Flow.ChallengeFields, creds.Handle); err != nil {
			return m.abort(log, s, attemptID, StageChallengeIdentifier, err)
		}
		m.advance(ctx, log, s)
		m.pause(ctx, m.Timeouts.SettleDelay)
	}

	// AwaitPasswordField
	if r, ok := m.gate(log, s, StageAwaitPasswordField); !ok {
		return r
	}
	if _, err := m.waitAnyVisible(ctx, s, m.Flow.PasswordFields, m.Timeouts.PasswordField); err != nil {
		return m.abort(log, s, attemptID, StageAwaitPasswordField,
			&StageTimeoutError{Stage: StageAwaitPasswordField, Timeout: m.Timeouts.PasswordField})
	}

	// EnterPassword
	if r, ok := m.gate(log, s, StageEnterPassword); !ok {
		return r
	}
	if err := m.fillFirst(ctx, log, s, m.Flow.PasswordFields, creds.Password); err != nil {
		return m.abort(log, s, attemptID, StageEnterPassword, err)
	}
	m.advance(ctx, log, s)
	m.pause(ctx, m.Timeouts.SettleDelay)

	// AwaitHome: wait for the home route, then force-navigate if the
	// redirect never shows.
	if r, ok := m.gate(log, s, StageAwaitHome); !ok {
		return r
	}
	if err := m.waitURLContains(ctx, s, m.Flow.HomePathMarker, m.Timeouts.HomeRedirect); err != nil {
		log.Warn("home redirect not observed, navigating directly", zap.Error(err))
		if err := s.Navigate(ctx, m.Flow.HomeURL); err != nil {
			return m.abort(log, s, attemptID, StageAwaitHome, err)
		}
	}

	// ComposeOpen: from here on, failures lose generated content and are
	// critical.
	if r, ok := m.gate(log, s, StageComposeOpen); !ok {
		return r
	}
	if err := m.clickFirst(ctx, log, s, m.Flow.ComposeButtons); err != nil {
		return m.abort(log, s, attemptID, StageComposeOpen,
			&CriticalError{Stage: StageComposeOpen, Err: err})
	}

	// EnterText
	if r, ok := m.gate(log, s, StageEnterText); !ok {
		return r
	}
	if err := m.fillFirst(ctx, log, s, m.Flow.TextAreas, text); err != nil {
		return m.abort(log, s, attemptID, StageEnterText,
			&CriticalError{Stage: StageEnterText, Err: err})
	}

	// Submit: named locators first, then the structurally-last actionable
	// control on screen.
	if r, ok := m.gate(log, s, StageSubmit); !ok {
		return r
	}
	if err := m.clickFirst(ctx, log, s, m.Flow.SubmitButtons); err != nil {
		log.Warn("submit locators exhausted, trying last actionable control", zap.Error(err))
		if lastErr := s.ClickLast(ctx, m.Flow.ActionableAny); lastErr != nil {
			return m.abort(log, s, attemptID, StageSubmit,
				&CriticalError{Stage: StageSubmit, Err: errors.Join(err, lastErr)})
		}
	}

	// Verify: the submit may succeed without an observable redirect, so a
	// missing single-post URL is unconfirmed success, not failure.
	m.pause(ctx, m.Timeouts.VerifyDelay)
	if r, ok := m.gate(log, s, StageVerify); !ok {
		return r
	}
	outcome := OutcomePublishedUnconfirmed
	if url, err := s.CurrentURL(ctx); err == nil && strings.Contains(url, m.Flow.PostPathMarker) {
		outcome = OutcomePublished
	}

	artifact := m.artifactPath(attemptID, "published")
	if err := s.Screenshot(artifact); err != nil {
		log.Warn("confirmation screenshot failed", zap.Error(err))
		artifact = ""
	}
	log.Info("publish attempt finished", zap.String("outcome", outcome.String()))
	return Result{Outcome: outcome, Stage: StageVerify, Artifact: artifact}
}

// gate checks session liveness before a stage. A lost session aborts with
// no diagnostic: the page is already gone, there is nothing to capture.
func (m *Machine) gate(log *zap.Logger, s Session, stage StageID) (Result, bool) {
	if s.IsAlive() {
		return Result{}, true
	}
	log.Error("session lost, aborting", zap.String("stage", string(stage)))
	return Result{Outcome: OutcomeAborted, Stage: stage, Err: ErrSessionLost}, false
}

// abort captures a diagnostic screenshot tagged with the stage id and
// returns the terminal failure result.
func (m *Machine) abort(log *zap.Logger, s Session, attemptID string, stage StageID, err error) Result {
	artifact := m.artifactPath(attemptID, string(stage))
	if shotErr := s.Screenshot(artifact); shotErr != nil {
		log.Warn("diagnostic screenshot failed",
			zap.String("stage", string(stage)), zap.Error(shotErr))
		artifact = ""
	}
	log.Error("stage failed",
		zap.String("stage", string(stage)),
		zap.String("artifact", artifact),
		zap.Error(err))
	return Result{Outcome: OutcomeAborted, Stage: stage, Artifact: artifact, Err: err}
}

func (m *Machine) artifactPath(attemptID, name string) string {
	return filepath.Join(m.ArtifactsDir, fmt.Sprintf("%s_%s.png", attemptID, name))
}

// fillFirst tries each locator in order and fills the first that accepts
// input. The fill text is never logged.
func (m *Machine) fillFirst(ctx context.Context, log *zap.Logger, s Session, selectors []string, text string) error {
	var errs []error
	for _, sel := range selectors {
		if err := s.Fill(ctx, sel, text); err != nil {
			log.Debug("fill locator failed", zap.String("selector", sel), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sel, err))
			continue
		}
		return nil
	}
	return fmt.Errorf("all %d fill locators failed: %w", len(selectors), errors.Join(errs...))
}

// clickFirst tries each locator in order and clicks the first that works.
func (m *Machine) clickFirst(ctx context.Context, log *zap.Logger, s Session, selectors []string) error {
	var errs []error
	for _, sel := range selectors {
		if err := s.Click(ctx, sel); err != nil {
			log.Debug("click locator failed", zap.String("selector", sel), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sel, err))
			continue
		}
		return nil
	}
	return fmt.Errorf("all %d click locators failed: %w", len(selectors), errors.Join(errs...))
}

// advance moves past the current screen: click the first generic actionable
// control, or fall back to sending Enter.
func (m *Machine) advance(ctx context.Context, log *zap.Logger, s Session) {
	if err := m.clickFirst(ctx, log, s, m.Flow.AdvanceButtons); err != nil {
		log.Debug("no advance control found, sending Enter", zap.Error(err))
		if err := s.PressEnter(ctx); err != nil {
			log.Warn("failed to send Enter", zap.Error(err))
		}
	}
}

// waitAnyVisible polls the locator list until one becomes visible or the
// timeout elapses. Each round probes every locator briefly, then suspends.
func (m *Machine) waitAnyVisible(ctx context.Context, s Session, selectors []string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		for _, sel := range selectors {
			if err := s.WaitVisible(ctx, sel, m.Timeouts.Probe); err == nil {
				return sel, nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("none of %d locators visible within %s", len(selectors), timeout)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Timeouts.Poll):
		}
	}
}

// waitURLContains polls the current location until it contains marker.
func (m *Machine) waitURLContains(ctx context.Context, s Session, marker string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if url, err := s.CurrentURL(ctx); err == nil && strings.Contains(url, marker) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("location never matched %q within %s", marker, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Timeouts.Poll):
		}
	}
}

// pause suspends cooperatively, honoring context cancellation.
func (m *Machine) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
