package canvas

import "errors"

var (
	// ErrInitialization reports that the drawing surface could not be created.
	ErrInitialization = errors.New("canvas: initialization failed")
	// ErrImageDecode reports that an image source could not be fetched or decoded.
	ErrImageDecode = errors.New("canvas: image decode failed")
	// ErrExport reports that flattening the scene to PNG failed.
	ErrExport = errors.New("canvas: export failed")
	// ErrInvalidMutation is returned when a mutation targets something it may
	// not touch (the guide overlay, an unknown property). The scene is unchanged.
	ErrInvalidMutation = errors.New("canvas: invalid mutation")

	// ErrBusy is returned when another mutation or image load holds the
	// in-progress flag. The call was dropped, not queued.
	ErrBusy = errors.New("canvas: mutation in progress")
	// ErrNotReady is returned by operations issued before Initialize succeeded.
	ErrNotReady = errors.New("canvas: not initialized")
	// ErrClosed is returned by operations issued after Close.
	ErrClosed = errors.New("canvas: engine closed")
	// ErrDuplicateSource is returned by LoadImage when the source was already
	// ingested or is the engine's own export. Nothing was changed.
	ErrDuplicateSource = errors.New("canvas: duplicate image source")
)
