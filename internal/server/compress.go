package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

var gzipWriterPool = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

var brotliWriterPool = sync.Pool{
	New: func() any { return brotli.NewWriter(io.Discard) },
}

type compressWriter struct {
	http.ResponseWriter
	w io.Writer
}

func (c *compressWriter) Write(p []byte) (int, error) {
	return c.w.Write(p)
}

// compressMiddleware wraps handlers with brotli or gzip response compression,
// preferring brotli when the client advertises support for both. JSON error
// and success bodies are small, but quiz lists and catalog listings can grow
// with module count, so this stays on the hot read path rather than being
// opt-in per handler.
func compressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := r.Header.Get("Accept-Encoding")
		switch {
		case strings.Contains(accept, "br"):
			bw := brotliWriterPool.Get().(*brotli.Writer)
			bw.Reset(w)
			defer func() {
				bw.Close()
				brotliWriterPool.Put(bw)
			}()
			w.Header().Set("Content-Encoding", "br")
			w.Header().Add("Vary", "Accept-Encoding")
			next.ServeHTTP(&compressWriter{ResponseWriter: w, w: bw}, r)
		case strings.Contains(accept, "gzip"):
			gw := gzipWriterPool.Get().(*gzip.Writer)
			gw.Reset(w)
			defer func() {
				gw.Close()
				gzipWriterPool.Put(gw)
			}()
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Add("Vary", "Accept-Encoding")
			next.ServeHTTP(&compressWriter{ResponseWriter: w, w: gw}, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
