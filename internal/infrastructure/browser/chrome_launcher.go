// Package browser drives headless Chrome through chromedp.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"
	"kwala.backend/internal/config"
	"kwala.backend/internal/domain/services"
)

// ChromeLauncher starts one Chrome process per Launch call.
type ChromeLauncher struct {
	cfg config.HumanizeConfig
}

func NewChromeLauncher(cfg config.HumanizeConfig) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg}
}

func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.Flag("disable-features", "site-per-process"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight),
		chromedp.UserAgent(l.cfg.UserAgent),
	)
	if l.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ChromePath))
	}
	return opts
}

// Launch starts Chrome and waits until it accepts commands or LaunchTimeout passes.
func (l *ChromeLauncher) Launch(ctx context.Context) (services.Browser, error) {
	// the process must outlive ctx, so it hangs off a background context
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	timeout := l.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	launchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := runUntil(launchCtx, browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := &chromeBrowser{
		ctx:          browserCtx,
		cancel:       browserCancel,
		allocCancel:  allocCancel,
		disconnected: make(chan struct{}),
	}
	go b.watch()
	return b, nil
}

// runUntil runs actions on target, which must be a chromedp context that is not
// derived from ctx, and gives up when ctx ends.
func runUntil(ctx, target context.Context, actions ...chromedp.Action) error {
	errc := make(chan error, 1)
	go func() { errc <- chromedp.Run(target, actions...) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type chromeBrowser struct {
	ctx          context.Context
	cancel       context.CancelFunc
	allocCancel  context.CancelFunc
	disconnected chan struct{}
	closeOnce    sync.Once
}

func (b *chromeBrowser) watch() {
	var lost <-chan struct{}
	if c := chromedp.FromContext(b.ctx); c != nil && c.Browser != nil {
		lost = c.Browser.LostConnection
	}
	select {
	case <-b.ctx.Done():
	case <-lost:
	}
	close(b.disconnected)
}

func (b *chromeBrowser) Disconnected() <-chan struct{} {
	return b.disconnected
}

func (b *chromeBrowser) NewPage(ctx context.Context, opts services.PageOptions) (services.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	if err := runUntil(ctx, tabCtx, chromedp.Emulate(pageDevice(opts))); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: tabCancel}, nil
}

func (b *chromeBrowser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = chromedp.Cancel(b.ctx)
		b.cancel()
		b.allocCancel()
	})
	return err
}

// emulatedDevice applies user agent and viewport to a single tab.
type emulatedDevice device.Info

func (d emulatedDevice) Device() device.Info {
	return device.Info(d)
}

func pageDevice(opts services.PageOptions) emulatedDevice {
	return emulatedDevice{
		Name:      "kwala-desktop",
		UserAgent: opts.UserAgent,
		Width:     int64(opts.Width),
		Height:    int64(opts.Height),
		Scale:     1,
	}
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run bounds the actions by the caller's deadline and cancellation.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) Focus(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Focus(selector, chromedp.ByQuery))
}

func (p *chromePage) SendKeys(ctx context.Context, selector, keys string) error {
	return p.run(ctx, chromedp.SendKeys(selector, keys, chromedp.ByQuery))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
