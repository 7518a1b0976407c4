package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"courtsync/pkg/logger"
)

// tabPage drives one attached tab. The chromedp context lives as long as
// the session's connection; callers bound individual operations with their
// own contexts.
type tabPage struct {
	ctx   context.Context
	stop  context.CancelFunc
	pacer *rate.Limiter
	log   *logger.Logger

	netMu      sync.Mutex
	netEnabled bool

	listenOnce sync.Once
	obsMu      sync.Mutex
	obs        *observation
}

type observation struct {
	fragment string
	out      chan ObservedResponse
	done     chan struct{}
	pending  map[network.RequestID]*network.Response
}

func newTabPage(ctx context.Context, stop context.CancelFunc, pacer *rate.Limiter, log *logger.Logger) *tabPage {
	return &tabPage{
		ctx:   ctx,
		stop:  stop,
		pacer: pacer,
		log:   log,
	}
}

// run executes actions against the tab while honoring the caller's
// cancellation and deadline.
func (p *tabPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	unhook := context.AfterFunc(ctx, cancel)
	defer unhook()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *tabPage) Navigate(ctx context.Context, url string) error {
	if err := p.pacer.Wait(ctx); err != nil {
		return err
	}
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *tabPage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *tabPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *tabPage) Evaluate(ctx context.Context, expression string, out any) error {
	return p.run(ctx, chromedp.Evaluate(expression, out,
		func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithAwaitPromise(true)
		}))
}

func (p *tabPage) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Observe captures responses whose URL contains urlFragment until stop is
// called. Only one observation may be active per tab.
func (p *tabPage) Observe(ctx context.Context, urlFragment string) (<-chan ObservedResponse, func(), error) {
	if err := p.enableNetwork(ctx); err != nil {
		return nil, nil, err
	}
	p.listenOnce.Do(p.listen)

	obs := &observation{
		fragment: urlFragment,
		out:      make(chan ObservedResponse, 32),
		done:     make(chan struct{}),
		pending:  make(map[network.RequestID]*network.Response),
	}

	p.obsMu.Lock()
	if p.obs != nil {
		p.obsMu.Unlock()
		return nil, nil, fmt.Errorf("tab already has an active observer")
	}
	p.obs = obs
	p.obsMu.Unlock()

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			p.obsMu.Lock()
			p.obs = nil
			p.obsMu.Unlock()
			close(obs.done)
		})
	}

	return obs.out, stop, nil
}

func (p *tabPage) enableNetwork(ctx context.Context) error {
	p.netMu.Lock()
	defer p.netMu.Unlock()

	if p.netEnabled {
		return nil
	}
	if err := p.run(ctx, network.Enable()); err != nil {
		return err
	}
	p.netEnabled = true
	return nil
}

// listen registers the tab's single network listener. Event callbacks must
// not block, so bodies are fetched on separate goroutines.
func (p *tabPage) listen() {
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			p.obsMu.Lock()
			if obs := p.obs; obs != nil && strings.Contains(e.Response.URL, obs.fragment) {
				obs.pending[e.RequestID] = e.Response
			}
			p.obsMu.Unlock()

		case *network.EventLoadingFinished:
			p.obsMu.Lock()
			obs := p.obs
			var resp *network.Response
			if obs != nil {
				resp = obs.pending[e.RequestID]
				delete(obs.pending, e.RequestID)
			}
			p.obsMu.Unlock()

			if obs == nil || resp == nil {
				return
			}
			go p.deliverBody(obs, e.RequestID, resp)
		}
	})
}

func (p *tabPage) deliverBody(obs *observation, reqID network.RequestID, resp *network.Response) {
	c := chromedp.FromContext(p.ctx)
	body, err := network.GetResponseBody(reqID).Do(cdp.WithExecutor(p.ctx, c.Target))
	if err != nil {
		p.log.Warn("could not read observed response body", "url", resp.URL, "error", err)
		return
	}

	select {
	case obs.out <- ObservedResponse{URL: resp.URL, Status: resp.Status, Body: body}:
	case <-obs.done:
	}
}
