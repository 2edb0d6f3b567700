//go:build !gstreamer

package decoder

import "log/slog"

// GStreamer support needs cgo and system libraries; without the
// "gstreamer" build tag the default registry carries only the ffmpeg
// backends.
func platformBackends(*slog.Logger) []Backend { return nil }
