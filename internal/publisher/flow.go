package publisher

import "strings"

// Flow holds every locator list, URL, and screen marker the state machine
// uses. The target surface is not versioned or contracted, so each fillable
// or clickable step carries an ordered list of strategies tried
// first-success-wins; the order here is the fallback order.
type Flow struct {
	LoginURL      string
	LoginRetryURL string
	HomeURL       string

	// URL fragments observed after login and after a successful post.
	HomePathMarker string
	PostPathMarker string

	// Ordered locator fallback lists.
	LoginFields     []string
	ChallengeFields []string
	PasswordFields  []string
	AdvanceButtons  []string
	ComposeButtons  []string
	TextAreas       []string
	SubmitButtons   []string

	// ActionableAny matches every clickable control on screen; the submit
	// stage falls back to the structurally-last match.
	ActionableAny string

	// Visible-text markers for interstitial screens that may or may not
	// appear between identifier entry and the password field.
	ChallengeMarkers []string
}

// DefaultFlow returns the flow for the target site's current login and
// compose surfaces. Locators drift between cohorts and product updates;
// extend the lists rather than replacing entries.
func DefaultFlow() Flow {
	return Flow{
		LoginURL:      "https://twitter.com/i/flow/login",
		LoginRetryURL: "https://twitter.com/i/flow/login?redirect_after_login=%2F",
		HomeURL:       "https://twitter.com/home",

		HomePathMarker: "/home",
		PostPathMarker: "/status/",

		LoginFields: []string{
			`input[autocomplete="username"]`,
			`input[type="text"]`,
		},
		ChallengeFields: []string{
			`input[type="text"]`,
			`input`,
		},
		PasswordFields: []string{
			`input[name="password"]`,
			`input[type="password"]`,
		},
		AdvanceButtons: []string{
			`div[role="button"]`,
		},
		ComposeButtons: []string{
			`a[data-testid="SideNav_NewTweet_Button"]`,
			`a[aria-label="Tweet"]`,
			`a[aria-label="Post"]`,
			`div[aria-label="Tweet"]`,
		},
		TextAreas: []string{
			`div[data-testid="tweetTextarea_0"]`,
		},
		SubmitButtons: []string{
			`div[data-testid="tweetButton"]`,
			`button[data-testid="tweetButton"]`,
		},
		ActionableAny: `div[role="button"], button`,

		ChallengeMarkers: []string{
			"unusual login",
			"unusual activity",
			"Enter your phone number",
			"Enter your phone number or username",
			"Enter your username",
			"Enter your phone or username",
		},
	}
}

// LooksLikeChallenge reports whether the captured page text matches a
// re-verification interstitial. It is a pure predicate so drift can be
// debugged against saved text fixtures without a live session.
func LooksLikeChallenge(pageText string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(pageText, m) {
			return true
		}
	}
	return false
}
