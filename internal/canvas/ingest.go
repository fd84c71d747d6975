package canvas

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/gogpu/gg"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// maxSourceBytes bounds a fetched or inlined image.
const maxSourceBytes = 20 << 20

// maxSourcePixels bounds the decoded size of an image. It is checked against
// the header before any pixels are allocated.
const maxSourcePixels = 32 << 20

// SourceOrigin says where an image source came from. Sources tagged
// OriginExport are the engine's own output travelling back and are never
// ingested.
type SourceOrigin int

const (
	OriginUser SourceOrigin = iota
	OriginGenerated
	OriginExport
)

// Source is an image to load: a data URL or an http(s) URL.
type Source struct {
	Value  string
	Origin SourceOrigin
}

// Fetcher retrieves remote image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher fetches images over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher wraps client. A nil client gets a transport that only dials
// public addresses, so user supplied URLs cannot reach loopback or private
// hosts (redirects included).
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Transport: publicTransport()}
	}
	return &HTTPFetcher{client: client}
}

var errForbiddenAddress = errors.New("address not allowed")

func publicTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			ap, err := netip.ParseAddrPort(address)
			if err != nil {
				return fmt.Errorf("dial %s: %w", address, err)
			}
			if !publicAddr(ap.Addr()) {
				return fmt.Errorf("dial %s: %w", address, errForbiddenAddress)
			}
			return nil
		},
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// cgnat is the shared address space of RFC 6598.
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// publicAddr reports whether a is a globally routable unicast address.
func publicAddr(a netip.Addr) bool {
	a = a.Unmap()
	switch {
	case !a.IsValid(),
		a.IsUnspecified(),
		a.IsLoopback(),
		a.IsPrivate(),
		a.IsLinkLocalUnicast(),
		a.IsLinkLocalMulticast(),
		a.IsInterfaceLocalMulticast(),
		a.IsMulticast(),
		cgnat.Contains(a):
		return false
	}
	return a.IsGlobalUnicast()
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSourceBytes {
		return nil, fmt.Errorf("fetching %s: image larger than %d bytes", rawURL, maxSourceBytes)
	}
	return data, nil
}

// LoadImage decodes src and makes it the scene's main image: the placeholder
// and any previous main image are removed, and the new image is fitted inside
// the canvas minus the configured margin and centred.
//
// The call blocks for the fetch and decode while holding the mutation
// gateway, so concurrent mutations and loads are rejected with ErrBusy.
// There is no timeout beyond ctx. Sources equal to the last ingested value
// (while that image is still on the canvas) or to the engine's last export
// return ErrDuplicateSource. On any failure the
// scene is left untouched and no change notification is raised.
func (e *Engine) LoadImage(ctx context.Context, src Source) error {
	if src.Origin == OriginExport {
		return ErrDuplicateSource
	}

	e.mu.Lock()
	if err := e.usable(); err != nil {
		e.mu.Unlock()
		return err
	}
	if src.Value != "" && (src.Value == e.lastLoaded || src.Value == e.lastExported) {
		e.mu.Unlock()
		e.log.Debug("skipping duplicate image source")
		return ErrDuplicateSource
	}
	if !e.inProgress.CompareAndSwap(false, true) {
		e.mu.Unlock()
		return ErrBusy
	}
	e.loadGen++
	gen := e.loadGen
	w, h := e.scene.Width, e.scene.Height
	e.mu.Unlock()
	defer e.inProgress.Store(false)

	img, err := decodeSource(ctx, e.opts.Fetcher, src.Value)
	if err != nil {
		e.log.Warn("image load failed", "error", err)
		e.reportError(err.Error())
		return fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	iw, ih := img.Bounds().Dx(), img.Bounds().Dy()
	scale := fitScale(iw, ih, w, h, e.opts.ImageMargin)
	img, iw, ih, scale = shrink(img, scale, float64(e.opts.ExportScale))

	obj := &Object{
		ID:         uuid.NewString(),
		Kind:       KindImage,
		Role:       RoleMainImage,
		Origin:     OriginCenter,
		Left:       float64(w) / 2,
		Top:        float64(h) / 2,
		Opacity:    1,
		Visible:    true,
		Selectable: true,
		Evented:    true,
		Image: &ImageProps{
			Width:  iw,
			Height: ih,
			Scale:  scale,
			Source: sourceLabel(src.Value),
			pixels: img,
			buf:    gg.ImageBufFromImage(img),
		},
	}

	e.mu.Lock()
	if e.closed || gen != e.loadGen || e.scene == nil {
		e.mu.Unlock()
		e.log.Debug("discarding stale image load", "generation", gen)
		return ErrClosed
	}
	e.scene.remove(e.scene.mainImage())
	e.scene.add(obj)
	if !e.scene.drawingMode {
		e.scene.active = obj
	}
	e.lastLoaded = src.Value
	e.changed()
	e.mu.Unlock()

	e.notifier.touch()
	e.log.Debug("image loaded", "width", iw, "height", ih, "scale", scale)
	if e.cb.OnImageLoaded != nil {
		e.emit(e.cb.OnImageLoaded)
	}
	return nil
}

// fitScale is min(availableW/imageW, availableH/imageH) where the available
// area is the canvas minus margin on every side.
func fitScale(iw, ih, cw, ch int, margin float64) float64 {
	aw, ah := float64(cw)-2*margin, float64(ch)-2*margin
	if aw <= 0 || ah <= 0 {
		aw, ah = float64(cw), float64(ch)
	}
	return min(aw/float64(iw), ah/float64(ih))
}

// shrink resamples images much larger than their largest rendered size
// (fitted size at export scale) so the scene does not pin huge bitmaps. The
// scale is adjusted so the on-canvas size is unchanged.
func shrink(img image.Image, scale, exportScale float64) (image.Image, int, int, float64) {
	iw, ih := img.Bounds().Dx(), img.Bounds().Dy()
	target := scale * exportScale
	if target >= 1 {
		return img, iw, ih, scale
	}
	nw, nh := max(1, int(float64(iw)*target+0.5)), max(1, int(float64(ih)*target+0.5))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, nw, nh, scale * float64(iw) / float64(nw)
}

func decodeSource(ctx context.Context, f Fetcher, value string) (image.Image, error) {
	var data []byte
	switch {
	case strings.HasPrefix(value, "data:"):
		b, err := decodeDataURL(value)
		if err != nil {
			return nil, err
		}
		data = b
	case strings.HasPrefix(value, "http://"), strings.HasPrefix(value, "https://"):
		if _, err := url.Parse(value); err != nil {
			return nil, err
		}
		b, err := f.Fetch(ctx, value)
		if err != nil {
			return nil, err
		}
		data = b
	default:
		return nil, fmt.Errorf("unsupported image source %q", sourceLabel(value))
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("image has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxSourcePixels {
		return nil, fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxSourcePixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, errors.New("image has no pixels")
	}
	return img, nil
}

// decodeDataURL returns the payload of a base64 data URL.
func decodeDataURL(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("data URL is not base64 encoded")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxSourceBytes {
		return nil, errors.New("data URL too large")
	}
	return base64.StdEncoding.DecodeString(payload)
}

// EncodeDataURL builds a data URL from raw bytes.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL is the exported form of decodeDataURL for callers that store
// exports.
func DecodeDataURL(s string) ([]byte, error) {
	return decodeDataURL(s)
}

// sourceLabel shortens data URLs for logs and snapshots.
func sourceLabel(v string) string {
	if strings.HasPrefix(v, "data:") {
		meta, _, _ := strings.Cut(v, ",")
		return meta + ",…"
	}
	return v
}
