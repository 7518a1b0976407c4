package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"courtsync/pkg/logger"
)

// Config describes how to reach the operator's browser.
type Config struct {
	// Endpoint is the DevTools HTTP endpoint, e.g. http://127.0.0.1:9222.
	Endpoint string

	// ConnTimeout bounds the DevTools probe and attach.
	ConnTimeout time.Duration

	// NavMinInterval spaces out navigations across all tabs.
	NavMinInterval time.Duration
}

// Session attaches to a browser the operator already runs and keeps logged
// in. Tabs are borrowed, never created or closed.
type Session struct {
	cfg   Config
	log   *logger.Logger
	http  *resty.Client
	pacer *rate.Limiter

	mu          sync.Mutex
	allocCtx    context.Context
	allocStop   context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	pages       map[target.ID]*tabPage
}

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func NewSession(cfg Config, log *logger.Logger) *Session {
	httpClient := resty.New()
	if cfg.ConnTimeout > 0 {
		httpClient.SetTimeout(cfg.ConnTimeout)
	}

	interval := cfg.NavMinInterval
	if interval <= 0 {
		interval = time.Second
	}

	return &Session{
		cfg:   cfg,
		log:   log,
		http:  httpClient,
		pacer: rate.NewLimiter(rate.Every(interval), 1),
		pages: make(map[target.ID]*tabPage),
	}
}

// Healthy probes the DevTools endpoint without touching any tab.
func (s *Session) Healthy(ctx context.Context) error {
	_, err := s.probeVersion(ctx)
	return err
}

// GetPage returns a Page bound to the first open tab whose URL contains
// urlPattern, attaching to the browser first if needed.
func (s *Session) GetPage(ctx context.Context, urlPattern string) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return nil, err
	}

	infos, err := chromedp.Targets(s.browserCtx)
	if err != nil {
		s.teardownLocked()
		return nil, &UnavailableError{Endpoint: s.cfg.Endpoint, Reason: "listing tabs failed", Err: err}
	}

	info := matchTarget(infos, urlPattern)
	if info == nil {
		return nil, &UnavailableError{
			Endpoint: s.cfg.Endpoint,
			Reason:   fmt.Sprintf("no open tab matches %q", urlPattern),
		}
	}

	if p, ok := s.pages[info.TargetID]; ok {
		if p.ctx.Err() == nil {
			return p, nil
		}
		delete(s.pages, info.TargetID)
	}

	tabCtx, tabStop := chromedp.NewContext(s.browserCtx, chromedp.WithTargetID(info.TargetID))
	p := newTabPage(tabCtx, tabStop, s.pacer, s.log)
	s.pages[info.TargetID] = p

	s.log.Debug("attached to tab", "target_id", string(info.TargetID), "url", info.URL)
	return p, nil
}

// Close drops the DevTools connection. The operator's browser and tabs
// keep running.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	return nil
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.browserCtx != nil && s.browserCtx.Err() == nil {
		return nil
	}
	s.teardownLocked()

	info, err := s.probeVersion(ctx)
	if err != nil {
		return err
	}

	allocCtx, allocStop := chromedp.NewRemoteAllocator(context.Background(),
		info.WebSocketDebuggerURL, chromedp.NoModifyURL)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	// Dial now so connection failures surface here rather than mid-cycle.
	if err := chromedp.Run(browserCtx); err != nil {
		browserStop()
		allocStop()
		return &UnavailableError{Endpoint: s.cfg.Endpoint, Reason: "attach failed", Err: err}
	}

	s.allocCtx, s.allocStop = allocCtx, allocStop
	s.browserCtx, s.browserStop = browserCtx, browserStop
	s.log.Info("attached to browser", "endpoint", s.cfg.Endpoint, "browser", info.Browser)
	return nil
}

// teardownLocked drops the websocket first; attached tabs must stay open,
// so no per-tab close is ever issued.
func (s *Session) teardownLocked() {
	if s.browserStop != nil {
		s.browserStop()
	}
	if s.allocStop != nil {
		s.allocStop()
	}
	s.browserCtx, s.browserStop = nil, nil
	s.allocCtx, s.allocStop = nil, nil
	s.pages = make(map[target.ID]*tabPage)
}

func (s *Session) probeVersion(ctx context.Context) (*versionInfo, error) {
	var info versionInfo
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&info).
		Get(strings.TrimRight(s.cfg.Endpoint, "/") + "/json/version")
	if err != nil {
		return nil, &UnavailableError{Endpoint: s.cfg.Endpoint, Reason: "devtools probe failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &UnavailableError{
			Endpoint: s.cfg.Endpoint,
			Reason:   fmt.Sprintf("devtools probe returned status %d", resp.StatusCode()),
		}
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, &UnavailableError{Endpoint: s.cfg.Endpoint, Reason: "version response missing websocket url"}
	}
	return &info, nil
}

func matchTarget(infos []*target.Info, pattern string) *target.Info {
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		if strings.Contains(info.URL, pattern) {
			return info
		}
	}
	return nil
}
