package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"courtsync/pkg/browser"
	"courtsync/pkg/config"
	"courtsync/pkg/logger"
)

func extractTestConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		PlayoTabPattern:    "playo.club",
		HudleTabPattern:    "partner.hudle.in",
		HudleVenueID:       "07d910dd-7730-42ca-bc61-45fbac1019d6",
		DOMWaitTimeout:     50 * time.Millisecond,
		NetworkIdleTimeout: 50 * time.Millisecond,
	}
}

// ────────────────────────────────────────────────
// Fake browser session for testing
// ────────────────────────────────────────────────

type feedStub struct {
	status int
	body   string
}

// fakePage routes evaluated scripts by their distinctive fragments, standing
// in for a live dashboard tab.
type fakePage struct {
	html          string
	dateValue     string
	failDateFill  bool
	noPicker      bool
	noCalendarNav bool
	selected      []string
	feed          map[string]feedStub
	observed      chan browser.ObservedResponse
	observeErr    error
	stopped       bool
}

var (
	setterArg = regexp.MustCompile(`setter\.call\((?:input|select), '([^']+)'\)`)
	fetchArg  = regexp.MustCompile(`fetch\('([^']+)'`)
)

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	if p.noPicker {
		return fmt.Errorf("selector %s not visible", selector)
	}
	return nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	return p.html, nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	return "https://dashboard.playo.club/", nil
}

func (p *fakePage) Evaluate(ctx context.Context, expression string, out any) error {
	switch {
	case strings.Contains(expression, "visibleButton"):
		if p.noCalendarNav {
			setOut(out, false)
			return nil
		}
		p.noPicker = false
		setOut(out, true)
	case strings.Contains(expression, "HTMLInputElement"):
		if p.failDateFill {
			setOut(out, false)
			return nil
		}
		if m := setterArg.FindStringSubmatch(expression); m != nil {
			p.dateValue = m[1]
		}
		setOut(out, true)
	case strings.Contains(expression, "HTMLSelectElement"):
		if m := setterArg.FindStringSubmatch(expression); m != nil {
			p.selected = append(p.selected, m[1])
		}
		setOut(out, true)
	case strings.Contains(expression, "input ? input.value"):
		setOut(out, p.dateValue)
	case strings.Contains(expression, "fetch("):
		m := fetchArg.FindStringSubmatch(expression)
		if m == nil {
			return fmt.Errorf("no url in fetch script")
		}
		stub, ok := p.feed[m[1]]
		if !ok {
			setOut(out, 404)
			return nil
		}
		if stub.status >= 200 && stub.status < 300 && p.observed != nil {
			p.observed <- browser.ObservedResponse{URL: m[1], Status: int64(stub.status), Body: []byte(stub.body)}
		}
		setOut(out, stub.status)
	default:
		return fmt.Errorf("unexpected expression: %s", expression)
	}
	return nil
}

func (p *fakePage) Observe(ctx context.Context, urlFragment string) (<-chan browser.ObservedResponse, func(), error) {
	if p.observeErr != nil {
		return nil, nil, p.observeErr
	}
	return p.observed, func() { p.stopped = true }, nil
}

func setOut(out, v any) {
	switch ptr := out.(type) {
	case *bool:
		*ptr = v.(bool)
	case *string:
		*ptr = v.(string)
	case *int:
		*ptr = v.(int)
	}
}

type fakeSession struct {
	page browser.Page
	err  error
}

func (s *fakeSession) GetPage(ctx context.Context, urlPattern string) (browser.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.page, nil
}

func (s *fakeSession) Healthy(ctx context.Context) error {
	return nil
}

func (s *fakeSession) Close() error {
	return nil
}
