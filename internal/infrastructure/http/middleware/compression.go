package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var compressibleTypes = []string{
	"application/json",
	"text/plain",
	"text/html",
}

// Compression encodes compressible responses with brotli or gzip,
// preferring brotli when the client accepts both
func (m *Middleware) Compression() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.config.Server.EnableCompression || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		encoding := negotiateEncoding(c.GetHeader("Accept-Encoding"))
		if encoding == "" {
			c.Next()
			return
		}

		w := &compressWriter{ResponseWriter: c.Writer, encoding: encoding}
		c.Writer = w
		defer func() {
			if err := w.close(); err != nil {
				m.logger.Warn("Failed to finish compressed response", zap.Error(err))
			}
			c.Writer = w.ResponseWriter
		}()

		c.Next()
	}
}

// negotiateEncoding picks br or gzip from an Accept-Encoding header
func negotiateEncoding(header string) string {
	accepted := map[string]bool{}
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		if q > 0 {
			accepted[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}

	switch {
	case accepted["br"]:
		return "br"
	case accepted["gzip"]:
		return "gzip"
	default:
		return ""
	}
}

// compressWriter decides on the first write whether the body is worth
// encoding. Handlers that set their own Content-Encoding pass through.
type compressWriter struct {
	gin.ResponseWriter
	encoding string
	enc      io.WriteCloser
	decided  bool
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.decided {
		w.decide()
	}
	if w.enc == nil {
		return w.ResponseWriter.Write(b)
	}
	return w.enc.Write(b)
}

func (w *compressWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *compressWriter) Flush() {
	if f, ok := w.enc.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *compressWriter) decide() {
	w.decided = true

	h := w.Header()
	status := w.Status()
	if h.Get("Content-Encoding") != "" || status == http.StatusNoContent || status == http.StatusNotModified {
		return
	}
	if !isCompressible(h.Get("Content-Type")) {
		return
	}

	h.Set("Content-Encoding", w.encoding)
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")

	switch w.encoding {
	case "br":
		w.enc = brotli.NewWriterLevel(w.ResponseWriter, 5)
	default:
		gz, _ := gzip.NewWriterLevel(w.ResponseWriter, gzip.DefaultCompression)
		w.enc = gz
	}
}

func (w *compressWriter) close() error {
	if w.enc == nil {
		return nil
	}
	return w.enc.Close()
}

func isCompressible(contentType string) bool {
	for _, t := range compressibleTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}
