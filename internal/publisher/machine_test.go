package publisher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fillRec struct {
	sel  string
	text string
}

// fakeSession scripts the driver surface: which locators are visible,
// fillable, and clickable, what the page says, and where the URL goes after
// submit. It records every interaction for assertions.
type fakeSession struct {
	alive     bool
	dieOnFill int // session dies after this many successful fills (0 = never)

	visible map[string]bool
	fillOK  map[string]bool
	clickOK map[string]bool

	clickLastErr error
	pageText     string
	url          string
	submitSel    string
	postURL      string

	fills  []fillRec
	clicks []string
	shots  []string
	navs   []string
	closed bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		alive: true,
		visible: map[string]bool{
			`input[autocomplete="username"]`: true,
			`input[name="password"]`:         true,
		},
		fillOK: map[string]bool{
			`input[autocomplete="username"]`:     true,
			`input[type="text"]`:                 true,
			`input[name="password"]`:             true,
			`div[data-testid="tweetTextarea_0"]`: true,
		},
		clickOK: map[string]bool{
			`div[role="button"]`:                       true,
			`a[data-testid="SideNav_NewTweet_Button"]`: true,
			`div[data-testid="tweetButton"]`:           true,
		},
		clickLastErr: errors.New("no actionable controls"),
		pageText:     "Welcome back. Sign in to continue.",
		url:          "https://twitter.com/home",
		submitSel:    `div[data-testid="tweetButton"]`,
		postURL:      "https://twitter.com/someone/status/12345",
	}
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	if !f.alive {
		return errors.New("page gone")
	}
	f.navs = append(f.navs, url)
	return nil
}

func (f *fakeSession) WaitVisible(_ context.Context, sel string, _ time.Duration) error {
	if !f.alive {
		return errors.New("page gone")
	}
	if f.visible[sel] {
		return nil
	}
	return fmt.Errorf("not visible: %s", sel)
}

func (f *fakeSession) Fill(_ context.Context, sel, text string) error {
	if !f.alive {
		return errors.New("page gone")
	}
	if !f.fillOK[sel] {
		return fmt.Errorf("no fillable element: %s", sel)
	}
	f.fills = append(f.fills, fillRec{sel: sel, text: text})
	if f.dieOnFill > 0 && len(f.fills) >= f.dieOnFill {
		f.alive = false
	}
	return nil
}

func (f *fakeSession) Click(_ context.Context, sel string) error {
	if !f.alive {
		return errors.New("page gone")
	}
	if !f.clickOK[sel] {
		return fmt.Errorf("no clickable element: %s", sel)
	}
	f.clicks = append(f.clicks, sel)
	if sel == f.submitSel {
		f.url = f.postURL
	}
	return nil
}

func (f *fakeSession) ClickLast(_ context.Context, sel string) error {
	if !f.alive {
		return errors.New("page gone")
	}
	if f.clickLastErr != nil {
		return f.clickLastErr
	}
	f.clicks = append(f.clicks, "last:"+sel)
	return nil
}

func (f *fakeSession) PressEnter(context.Context) error {
	if !f.alive {
		return errors.New("page gone")
	}
	return nil
}

func (f *fakeSession) VisibleText(context.Context) (string, error) {
	if !f.alive {
		return "", errors.New("page gone")
	}
	return f.pageText, nil
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) {
	if !f.alive {
		return "", errors.New("page gone")
	}
	return f.url, nil
}

func (f *fakeSession) IsAlive() bool { return f.alive }

func (f *fakeSession) Screenshot(path string) error {
	f.shots = append(f.shots, path)
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	f.alive = false
	return nil
}

func (f *fakeSession) filledTexts() []string {
	out := make([]string, 0, len(f.fills))
	for _, r := range f.fills {
		out = append(out, r.text)
	}
	return out
}

func testMachine(t *testing.T) *Machine {
	t.Helper()
	m := NewMachine(zap.NewNop(), t.TempDir())
	m.Timeouts = Timeouts{
		LoginForm:     50 * time.Millisecond,
		PasswordField: 50 * time.Millisecond,
		HomeRedirect:  50 * time.Millisecond,
		VerifyDelay:   0,
		SettleDelay:   0,
		Probe:         time.Millisecond,
		Poll:          time.Millisecond,
	}
	return m
}

var testCreds = Credentials{
	Email:    "account@example.com",
	Handle:   "examplehandle",
	Password: "s3cret",
}

func TestRunHappyPathNoChallenge(t *testing.T) {
	m := testMachine(t)
	s := newFakeSession()

	res := m.Run(context.Background(), s, testCreds, "post text")

	assert.Equal(t, OutcomePublished, res.Outcome)
	assert.Equal(t, StageVerify, res.Stage)
	assert.NoError(t, res.Err)
	assert.NotEmpty(t, res.Artifact, "confirmation screenshot expected")

	texts := s.filledTexts()
	assert.Contains(t, texts, testCreds.Email)
	assert.Contains(t, texts, testCreds.Password)
	assert.Contains(t, texts, "post text")
	assert.NotContains(t, texts, testCreds.Handle,
		"challenge branch must not run when no marker matches")
}

func TestRunSessionLostAfterIdentifier(t *testing.T) {
	m := testMachine(t)
	s := newFakeSession()
	s.dieOnFill = 1 // dies right after the identifier is entered

	res := m.Run(context.Background(), s, testCreds, "post text")

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrSessionLost)
	assert.Equal(t, StageObserveBranch, res.Stage)
	assert.Empty(t, res.Artifact, "a dead session has nothing to capture")

	require.Len(t, s.fills, 1, "no stage after the identifier may touch the page")
	assert.Equal(t, testCreds.Email, s.fills[0].text)
	assert.NotContains(t, s.filledTexts(), testCreds.Password)
}

func TestRunChallengeBranch(t *testing.T) {
	m := testMachine(t)
	s := newFakeSession()
	s.pageText = "We noticed unusual activity on your account. Enter your phone number or username."

	res := m.Run(context.Background(), s, testCreds, "post text")

	assert.Equal(t, OutcomePublished, res.Outcome)
	assert.Contains(t, s.filledTexts(), testCreds.Handle,
		"challenge screen is answered with the public handle")
	assert.Contains(t, s.filledTexts(), testCreds.Password)
}

func TestRunComposeOpenCriticalFailure(t *testing.T) {
	m := testMachine(t)
	s := newFakeSession()
	for _, sel := range m.Flow.ComposeButtons {
		delete(s.clickOK, sel)
	}

	res := m.Run(context.Background(), s, testCreds, "post text")

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, StageComposeOpen, res.Stage)

	var critical *CriticalError
	require.ErrorAs(t, res.Err, &critical)
	assert.Equal(t, StageComposeOpen, critical.Stage)

	require.NotEmpty(t, res.Artifact)
	assert.Contains(t, res.Artifact, string(StageComposeOpen))
	assert.Contains(t, s.shots, res.Artifact)
}

func TestRunSubmitFallsBackToLastActionable(t *testing.T) {
	m := testMachine(t)
	s := newFakeSession()
	delete(s.clickOK, `div[data-testid="tweetButton"]`)
	s.clickLastErr = nil
	s.url = "https://twitter.com/home"

	res := m.Run(context.Background(), s, testCreds, "post text")

	assert.Equal(t, OutcomePublishedUnconfirmed, res.Outcome)
	assert.Contains(t, s.clicks, "last:"+m.Flow.ActionableAny)
}

func TestRunSubmitCriticalWhenEverythingFails(t *testing.T) {
	m := testMachine(t)
	s := newFakeSession()
	delete(s.clickOK, `div[data-testid="tweetButton"]`)

	res := m.Run(context.Background(), s, testCreds, "post text")

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, StageSubmit, res.Stage)

	var critical *CriticalError
	require.ErrorAs(t, res.Err, &critical)
	assert.NotEmpty(t, res.Artifact)
}

func TestRunPasswordFieldTimeout(t *testing.T) {
	m := testMachine(t)
	s := newFakeSession()
	delete(s.visible, `input[name="password"]`)

	res := m.Run(context.Background(), s, testCreds, "post text")

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, StageAwaitPasswordField, res.Stage)

	var timeout *StageTimeoutError
	require.ErrorAs(t, res.Err, &timeout)
	assert.Equal(t, StageAwaitPasswordField, timeout.Stage)
	assert.NotEmpty(t, res.Artifact)
}

func TestRunUnconfirmedWithoutPostRedirect(t *testing.T) {
	m := testMachine(t)
	s := newFakeSession()
	s.postURL = "https://twitter.com/home" // submit works, URL never shows a post

	res := m.Run(context.Background(), s, testCreds, "post text")

	assert.Equal(t, OutcomePublishedUnconfirmed, res.Outcome)
	assert.NoError(t, res.Err)
}

func TestRunLoginFormRetryThenTimeout(t *testing.T) {
	m := testMachine(t)
	s := newFakeSession()
	delete(s.visible, `input[autocomplete="username"]`)

	res := m.Run(context.Background(), s, testCreds, "post text")

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, StageAwaitLoginForm, res.Stage)
	assert.Contains(t, s.navs, m.Flow.LoginRetryURL, "one re-navigation before giving up")

	var timeout *StageTimeoutError
	assert.ErrorAs(t, res.Err, &timeout)
}
