package canvas

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Options tunes an Engine. Zero fields fall back to DefaultOptions.
type Options struct {
	// Debounce is the quiet period after the last mutation before an export.
	Debounce time.Duration
	// ExportScale multiplies the logical canvas size for the exported PNG.
	ExportScale int
	// ImageMargin is kept free on every side when fitting the main image.
	ImageMargin float64
	// GuideInset is the safety-area inset as a fraction of each dimension.
	GuideInset float64
	// MaxDimension caps width and height accepted by Initialize.
	MaxDimension int
	// PlaceholderText is shown until the first real content is added.
	PlaceholderText string
	// Brush is the initial freehand brush.
	Brush Brush
	// Fetcher resolves http(s) image sources. Defaults to an HTTP fetcher
	// restricted to public addresses and without a request timeout; cancel
	// through the LoadImage context.
	Fetcher Fetcher
	Logger  *slog.Logger
}

// DefaultOptions returns the tuning used by the storefront.
func DefaultOptions() Options {
	return Options{
		Debounce:        200 * time.Millisecond,
		ExportScale:     2,
		ImageMargin:     40,
		GuideInset:      0.1,
		MaxDimension:    4096,
		PlaceholderText: "Your design here",
		Brush:           Brush{Color: "#000000", Width: 5},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.ExportScale <= 0 {
		o.ExportScale = d.ExportScale
	}
	if o.ImageMargin < 0 {
		o.ImageMargin = d.ImageMargin
	}
	if o.GuideInset <= 0 || o.GuideInset >= 0.5 {
		o.GuideInset = d.GuideInset
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = d.MaxDimension
	}
	if o.Brush.Width <= 0 {
		o.Brush.Width = d.Brush.Width
	}
	if o.Brush.Color == "" {
		o.Brush.Color = d.Brush.Color
	}
	if o.Fetcher == nil {
		o.Fetcher = NewHTTPFetcher(nil)
	}
	if o.Logger == nil {
		o.Logger = Logger()
	}
	return o
}

// Callbacks run one at a time without the scene lock held and must not call
// back into the engine. None of them fire after Close has returned.
type Callbacks struct {
	OnReady         func(*Engine)
	OnDesignChanged func(dataURL string)
	OnImageLoaded   func()
	OnError         func(reason string)
}

// Engine is the canvas composition engine. All exported methods are safe for
// concurrent use.
type Engine struct {
	opts Options
	cb   Callbacks
	log  *slog.Logger

	// cbMu serialises callbacks against Close.
	cbMu sync.Mutex

	mu         sync.Mutex
	scene      *Scene
	frame      image.Image // cached preview, nil when stale
	readyFired bool
	closed     bool

	// inProgress is the mutation gateway lock shared by object mutations and
	// image loads. A caller that cannot take it is dropped.
	inProgress atomic.Bool

	loadGen      uint64
	lastLoaded   string
	lastExported string

	raster   *rasterizer
	notifier *notifier
}

// New creates an engine. Call Initialize before anything else.
func New(opts Options, cb Callbacks) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		opts:   opts,
		cb:     cb,
		log:    opts.Logger,
		raster: newRasterizer(),
	}
	e.notifier = newNotifier(opts.Debounce, e.flush)
	return e
}

// Initialize creates the scene with the guide overlay and placeholder and
// signals readiness once. Re-running it with the same inputs is a no-op; new
// inputs resize the live scene in place and keep user content. On error the
// engine is left exactly as it was.
func (e *Engine) Initialize(width, height int, background string) error {
	if width <= 0 || height <= 0 || width > e.opts.MaxDimension || height > e.opts.MaxDimension {
		e.reportError(fmt.Sprintf("invalid canvas size %dx%d", width, height))
		return fmt.Errorf("%w: invalid size %dx%d", ErrInitialization, width, height)
	}
	if _, err := ParseColor(background); err != nil {
		e.reportError(err.Error())
		return fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	s := e.scene
	switch {
	case s == nil:
		s = newScene(width, height, background, e.opts.Brush)
		s.installGuide(e.opts.GuideInset)
		s.installPlaceholder(e.opts.PlaceholderText)
		e.scene = s
	case s.Width == width && s.Height == height && s.Background == background:
		e.mu.Unlock()
		return nil
	default:
		s.Width, s.Height, s.Background = width, height, background
		s.installGuide(e.opts.GuideInset)
		s.recenterChrome()
	}
	e.frame = nil
	fire := !e.readyFired
	e.readyFired = true
	e.mu.Unlock()

	e.log.Debug("canvas initialized", "width", width, "height", height, "background", background)
	if fire && e.cb.OnReady != nil {
		e.emit(func() { e.cb.OnReady(e) })
	}
	return nil
}

// Close tears the engine down: pending exports are cancelled, in-flight image
// loads are discarded when they finish, and no callback fires afterwards.
func (e *Engine) Close() error {
	e.cbMu.Lock()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.cbMu.Unlock()
		return nil
	}
	e.closed = true
	e.loadGen++
	e.scene = nil
	e.frame = nil
	e.mu.Unlock()
	e.cbMu.Unlock()

	e.notifier.stop()
	return nil
}

// Ready reports whether Initialize has succeeded and Close has not been called.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene != nil && !e.closed
}

// Objects returns copies of the display list, back to front.
func (e *Engine) Objects() []*Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return nil
	}
	out := make([]*Object, len(e.scene.objects))
	for i, o := range e.scene.objects {
		out[i] = o.Clone()
	}
	return out
}

// Active returns a copy of the selected object, or nil.
func (e *Engine) Active() *Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return nil
	}
	return e.scene.active.Clone()
}

// LastExport returns the most recent data URL produced by the notifier or
// ExportNow.
func (e *Engine) LastExport() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastExported
}

// Render returns the on-screen view of the scene at logical size, guide and
// placeholder included.
func (e *Engine) Render() (image.Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usable(); err != nil {
		return nil, err
	}
	if e.frame == nil {
		img, err := e.raster.render(e.scene, 1)
		if err != nil {
			return nil, err
		}
		e.frame = img
	}
	return e.frame, nil
}

// usable must be called with mu held.
func (e *Engine) usable() error {
	if e.closed {
		return ErrClosed
	}
	if e.scene == nil {
		return ErrNotReady
	}
	return nil
}

// changed invalidates the preview; mu must be held. The caller raises the
// notification after unlocking.
func (e *Engine) changed() {
	e.frame = nil
}

func (e *Engine) alive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

// emit runs fn unless the engine is closed. Close waits for a running fn.
func (e *Engine) emit(fn func()) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	if e.alive() {
		fn()
	}
}

func (e *Engine) reportError(reason string) {
	e.log.Warn("canvas error", "reason", reason)
	if e.cb.OnError != nil {
		e.emit(func() { e.cb.OnError(reason) })
	}
}
