// Package canvas implements the design canvas composition engine.
//
// An Engine owns exactly one Scene: a retained list of objects drawn onto a
// garment design surface. The Scene always carries a locked guide rectangle
// marking the printable safety area and, until real content arrives, a
// placeholder prompt. Every change goes through the Engine's mutation methods,
// which serialise access with a single in-progress flag and feed a debounced
// change notifier. When a burst of edits settles, the notifier flattens the
// Scene (guide and placeholder hidden, transparent background) into a PNG data
// URL and hands it to the OnDesignChanged callback.
//
// Rasterisation is done with github.com/gogpu/gg on the CPU.
//
// Typical use:
//
//	eng := canvas.New(canvas.DefaultOptions(), canvas.Callbacks{
//	    OnDesignChanged: func(dataURL string) { publish(dataURL) },
//	})
//	defer eng.Close()
//
//	if err := eng.Initialize(300, 300, "#ffffff"); err != nil {
//	    return err
//	}
//	_ = eng.AddText(canvas.TextSpec{Content: "HELLO", FontSize: 20, Color: "#000000"})
package canvas
