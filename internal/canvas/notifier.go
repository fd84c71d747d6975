package canvas

import (
	"bytes"
	"fmt"
	"image/png"
	"sync"
	"time"
)

type notifyState int

const (
	stateIdle notifyState = iota
	statePending
	stateExporting
)

func (s notifyState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateExporting:
		return "exporting"
	default:
		return "idle"
	}
}

// notifier debounces change notifications.
//
//	Idle      --touch-->  Pending (timer armed)
//	Pending   --touch-->  Pending (timer re-armed)
//	Pending   --timer-->  Exporting
//	Exporting --done--->  Idle, or Pending if touched meanwhile
//
// Only one export runs at a time because only the Pending→Exporting edge
// starts one.
type notifier struct {
	mu      sync.Mutex
	state   notifyState
	delay   time.Duration
	timer   *time.Timer
	seq     uint64
	rerun   bool
	stopped bool
	fire    func()
}

func newNotifier(delay time.Duration, fire func()) *notifier {
	return &notifier{delay: delay, fire: fire}
}

func (n *notifier) touch() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}
	switch n.state {
	case stateIdle, statePending:
		n.state = statePending
		n.arm()
	case stateExporting:
		n.rerun = true
	}
}

// arm (re)starts the timer; mu must be held. A timer that already fired
// carries a stale sequence number and is ignored.
func (n *notifier) arm() {
	if n.timer != nil {
		n.timer.Stop()
	}
	n.seq++
	seq := n.seq
	n.timer = time.AfterFunc(n.delay, func() { n.expire(seq) })
}

func (n *notifier) expire(seq uint64) {
	n.mu.Lock()
	if n.stopped || seq != n.seq || n.state != statePending {
		n.mu.Unlock()
		return
	}
	n.state = stateExporting
	n.mu.Unlock()

	n.fire()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}
	if n.rerun {
		n.rerun = false
		n.state = statePending
		n.arm()
		return
	}
	n.state = stateIdle
}

func (n *notifier) stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	if n.timer != nil {
		n.timer.Stop()
	}
}

func (n *notifier) current() notifyState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// flush is the notifier's export step. Failures are logged, never surfaced:
// the next mutation schedules another attempt.
func (e *Engine) flush() {
	dataURL, err := e.export()
	if err != nil {
		e.log.Warn("design export failed", "error", err)
		return
	}
	if dataURL == "" {
		return
	}
	if e.cb.OnDesignChanged != nil {
		e.emit(func() { e.cb.OnDesignChanged(dataURL) })
	}
}

// ExportNow flattens the scene immediately and returns the data URL, or ""
// when there is no design content. It does not invoke OnDesignChanged.
func (e *Engine) ExportNow() (string, error) {
	return e.export()
}

// export hides guide and placeholder, renders at ExportScale on a
// transparent background, encodes PNG and restores the scene. The scene lock
// is held throughout, so mutations arriving meanwhile wait for the restore.
func (e *Engine) export() (dataURL string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.usable(); err != nil {
		return "", err
	}
	if !e.scene.hasDesign() {
		return "", nil
	}

	restore := e.scene.hideChrome()
	defer restore()
	defer func() {
		if r := recover(); r != nil {
			dataURL, err = "", fmt.Errorf("%w: %v", ErrExport, r)
		}
	}()

	img, err := e.raster.render(e.scene, float64(e.opts.ExportScale))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExport, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExport, err)
	}
	dataURL = EncodeDataURL("image/png", buf.Bytes())
	e.lastExported = dataURL
	return dataURL, nil
}
