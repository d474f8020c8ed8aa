package compress

import (
	"compress/gzip"
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// DefaultMinSize is the smallest response body worth compressing
const DefaultMinSize = 1024

// Options controls response compression
type Options struct {
	Level   int
	MinSize int
}

// DefaultOptions returns gzip at the default level for bodies of at least 1 KiB
func DefaultOptions() Options {
	return Options{Level: gzip.DefaultCompression, MinSize: DefaultMinSize}
}

// Handler wraps h so responses are gzip encoded for clients that accept it
func Handler(h http.Handler, opts Options) (http.Handler, error) {
	if opts.MinSize <= 0 {
		opts.MinSize = DefaultMinSize
	}
	wrap, err := gzhttp.NewWrapper(
		gzhttp.CompressionLevel(opts.Level),
		gzhttp.MinSize(opts.MinSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip wrapper: %w", err)
	}
	return wrap(h), nil
}
