package usecases

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"kwala.backend/internal/config"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/internal/domain/services"
	"kwala.backend/pkg/logger"
	"kwala.backend/pkg/metrics"
)

// Stage is a step of one humanize call.
type Stage string

const (
	StageUninitialized    Stage = "uninitialized"
	StageBrowserReady     Stage = "browser_ready"
	StagePageOpen         Stage = "page_open"
	StageContentSubmitted Stage = "content_submitted"
	StageAwaitingOutput   Stage = "awaiting_output"
	StageExtracted        Stage = "extracted"
	StageClosed           Stage = "closed"
)

const diagnosticsTimeout = 15 * time.Second

// HumanizePipeline rewrites text by driving the humanize tool in a headless browser.
// All calls share one browser process. It is launched on first use and torn down
// once the last in-flight call finishes.
type HumanizePipeline struct {
	launcher services.BrowserLauncher
	sink     services.DiagnosticSink
	cfg      config.HumanizeConfig
	onStage  func(Stage)

	mu      sync.Mutex
	browser services.Browser
	leases  int
	pages   map[services.Page]struct{}
}

// PipelineOption customises a HumanizePipeline.
type PipelineOption func(*HumanizePipeline)

// WithStageObserver is called on every stage transition of every call.
func WithStageObserver(fn func(Stage)) PipelineOption {
	return func(p *HumanizePipeline) { p.onStage = fn }
}

func NewHumanizePipeline(
	launcher services.BrowserLauncher,
	sink services.DiagnosticSink,
	cfg config.HumanizeConfig,
	opts ...PipelineOption,
) *HumanizePipeline {
	p := &HumanizePipeline{
		launcher: launcher,
		sink:     sink,
		cfg:      cfg,
		onStage:  func(Stage) {},
		pages:    make(map[services.Page]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State reports whether the shared browser is running.
func (p *HumanizePipeline) State() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser == nil {
		return StageUninitialized
	}
	return StageBrowserReady
}

// EnsureBrowser launches the shared browser unless it is already running.
// Concurrent callers wait for the same launch.
func (p *HumanizePipeline) EnsureBrowser(ctx context.Context) (services.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureBrowserLocked(ctx)
}

func (p *HumanizePipeline) ensureBrowserLocked(ctx context.Context) (services.Browser, error) {
	if p.browser != nil {
		return p.browser, nil
	}
	b, err := p.launcher.Launch(ctx)
	if err != nil {
		return nil, err
	}
	p.browser = b
	go p.watch(b)
	logger.Info(ctx, "Browser launched")
	return b, nil
}

// watch resets the pipeline when b dies so the next call launches a new one.
func (p *HumanizePipeline) watch(b services.Browser) {
	<-b.Disconnected()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.browser != b {
		return
	}
	logger.Warn(context.Background(), "Browser disconnected, resetting humanize pipeline")
	p.browser = nil
	clear(p.pages)
}

// acquire returns the shared browser and a release func that tears it down when
// no other call still holds it.
func (p *HumanizePipeline) acquire(ctx context.Context) (services.Browser, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.ensureBrowserLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	p.leases++

	var once sync.Once
	release := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.leases--
			if p.leases == 0 {
				if err := p.cleanupLocked(); err != nil {
					logger.Warn(context.Background(), "Browser cleanup failed", zap.Error(err))
				}
			}
		})
	}
	return b, release, nil
}

// Cleanup closes every open page and then the browser.
func (p *HumanizePipeline) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cleanupLocked()
}

func (p *HumanizePipeline) cleanupLocked() error {
	var errs []error
	for page := range p.pages {
		if err := page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	clear(p.pages)
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, err)
		}
		p.browser = nil
	}
	return errors.Join(errs...)
}

// OpenIsolatedPage opens a tab with its own user agent and viewport.
func (p *HumanizePipeline) OpenIsolatedPage(ctx context.Context, b services.Browser) (services.Page, error) {
	ctx, cancel := withTimeout(ctx, p.cfg.NavigationTimeout)
	defer cancel()

	page, err := b.NewPage(ctx, services.PageOptions{
		UserAgent: p.cfg.UserAgent,
		Width:     p.cfg.WindowWidth,
		Height:    p.cfg.WindowHeight,
	})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.pages[page] = struct{}{}
	p.mu.Unlock()
	return page, nil
}

func (p *HumanizePipeline) closePage(page services.Page) {
	p.mu.Lock()
	_, open := p.pages[page]
	delete(p.pages, page)
	p.mu.Unlock()

	if !open {
		return
	}
	if err := page.Close(); err != nil {
		logger.Warn(context.Background(), "Failed to close page", zap.Error(err))
	}
}

// Humanize submits text to the tool and returns its rewritten, reformatted output.
// A started run ignores cancellation of ctx; only the stage timeouts end it.
func (p *HumanizePipeline) Humanize(ctx context.Context, text string) (string, error) {
	ctx = context.WithoutCancel(ctx)
	if strings.TrimSpace(text) == "" {
		return "", domainerrors.BadRequest("Invalid content provided. Content must be a non-empty string.")
	}

	start := time.Now()
	out, err := p.humanize(ctx, text)
	metrics.HumanizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HumanizeRequests.WithLabelValues(metrics.ResultFailure).Inc()
		logger.Error(ctx, "Humanize failed", zap.Error(err))
		return "", err
	}
	metrics.HumanizeRequests.WithLabelValues(metrics.ResultSuccess).Inc()
	logger.Info(ctx, "Humanize succeeded", zap.Int("chars", len(out)))
	return out, nil
}

func (p *HumanizePipeline) humanize(ctx context.Context, text string) (string, error) {
	p.onStage(StageUninitialized)
	defer p.onStage(StageClosed)

	b, release, err := p.acquire(ctx)
	if err != nil {
		return "", unavailable("launch", "browser failed to start", err)
	}
	defer release()
	p.onStage(StageBrowserReady)

	page, err := p.OpenIsolatedPage(ctx, b)
	if err != nil {
		return "", unavailable("open page", "could not open page", err)
	}
	defer p.closePage(page)
	p.onStage(StagePageOpen)

	out, err := p.drive(ctx, page, text)
	if err != nil {
		p.captureDiagnostics(ctx, page, err)
		return "", err
	}
	p.onStage(StageExtracted)
	return out, nil
}

func (p *HumanizePipeline) drive(ctx context.Context, page services.Page, text string) (string, error) {
	navCtx, cancel := withTimeout(ctx, p.cfg.NavigationTimeout)
	err := page.Navigate(navCtx, p.cfg.TargetURL)
	cancel()
	if err != nil {
		return "", unavailable("navigate", "tool page did not load", err)
	}

	if err := p.withElementTimeout(ctx, func(ctx context.Context) error {
		if err := page.WaitVisible(ctx, p.cfg.InputSelector); err != nil {
			return err
		}
		return page.Focus(ctx, p.cfg.InputSelector)
	}); err != nil {
		return "", unavailable("input", "input control did not appear", err)
	}

	if err := p.typeText(ctx, page, text); err != nil {
		return "", unavailable("input", "typing failed", err)
	}

	if err := p.withElementTimeout(ctx, func(ctx context.Context) error {
		if err := page.WaitVisible(ctx, p.cfg.SubmitSelector); err != nil {
			return err
		}
		return page.Click(ctx, p.cfg.SubmitSelector)
	}); err != nil {
		return "", unavailable("submit", "submit control unavailable", err)
	}
	p.onStage(StageContentSubmitted)

	// the tool signals nothing while it works
	if err := sleepContext(ctx, p.cfg.SettlePeriod); err != nil {
		return "", failed("settle", "interrupted", err)
	}
	p.onStage(StageAwaitingOutput)

	outCtx, cancel := withTimeout(ctx, p.cfg.OutputTimeout)
	defer cancel()
	if err := page.WaitVisible(outCtx, p.cfg.OutputSelector); err != nil {
		return "", failed("output", "output container never appeared", err)
	}
	markup, err := page.OuterHTML(outCtx, p.cfg.OutputSelector)
	if err != nil {
		return "", failed("extract", "could not read output", err)
	}

	out, err := FormatHumanizedOutput(markup)
	if err != nil {
		return "", failed("extract", "could not parse output", err)
	}
	if out == "" {
		return "", failed("extract", "no content generated", nil)
	}
	return out, nil
}

func (p *HumanizePipeline) withElementTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := withTimeout(ctx, p.cfg.ElementTimeout)
	defer cancel()
	return fn(ctx)
}

// withTimeout leaves ctx unbounded when d is not positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// typeText sends one key at a time with a random pause between keys. TypingTimeout
// bounds the whole text and ElementTimeout bounds each key.
func (p *HumanizePipeline) typeText(ctx context.Context, page services.Page, text string) error {
	ctx, cancel := withTimeout(ctx, p.cfg.TypingTimeout)
	defer cancel()
	for _, r := range text {
		if err := p.withElementTimeout(ctx, func(ctx context.Context) error {
			return page.SendKeys(ctx, p.cfg.InputSelector, string(r))
		}); err != nil {
			return err
		}
		if err := sleepContext(ctx, typingDelay(p.cfg.TypingDelayMin, p.cfg.TypingDelayMax)); err != nil {
			return err
		}
	}
	return nil
}

func typingDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// captureDiagnostics stores the page markup and a screenshot. Failures are only logged.
func (p *HumanizePipeline) captureDiagnostics(ctx context.Context, page services.Page, cause error) {
	if p.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticsTimeout)
	defer cancel()

	var artifacts []services.Artifact
	if markup, err := page.OuterHTML(ctx, "html"); err == nil {
		artifacts = append(artifacts, services.Artifact{Name: "page.html", ContentType: "text/html", Data: []byte(markup)})
	}
	if shot, err := page.Screenshot(ctx); err == nil {
		artifacts = append(artifacts, services.Artifact{Name: "screenshot.png", ContentType: "image/png", Data: shot})
	}
	if len(artifacts) == 0 {
		return
	}

	prefix := "humanize"
	var herr *domainerrors.HumanizationError
	if errors.As(cause, &herr) {
		prefix += "-" + strings.ReplaceAll(herr.Stage, " ", "-")
	}
	if err := p.sink.Capture(ctx, prefix, artifacts...); err != nil {
		logger.Warn(ctx, "Failed to store humanize diagnostics", zap.Error(err))
	}
}

func unavailable(stage, reason string, err error) error {
	return &domainerrors.HumanizationError{Stage: stage, Reason: reason, Unavailable: true, Err: err}
}

func failed(stage, reason string, err error) error {
	return &domainerrors.HumanizationError{Stage: stage, Reason: reason, Err: err}
}
