package server

import (
	"bytes"
	"net/http"
	"strings"
)

const scriptTag = `<script async src="/livereload.js"></script>`

// injectLiveReload rewrites served HTML pages so they load the livereload
// client. Only page-like paths are considered; assets pass through untouched.
func injectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !pagePath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		inj := newInjector(w)
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// pagePath reports whether a request path can resolve to an HTML page.
func pagePath(p string) bool {
	return p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html")
}

type injectMode int

const (
	modeUndecided injectMode = iota // nothing written yet
	modeBuffer                      // HTML page, collecting the body
	modeStream                      // handing bytes straight through
)

// injector holds back an HTML response so the script tag can be placed
// before the closing body tag. Non-HTML responses and responses that
// outgrow maxSize switch to streaming untouched.
type injector struct {
	http.ResponseWriter
	mode    injectMode
	status  int
	body    bytes.Buffer
	maxSize int
	sentHdr bool
}

func newInjector(w http.ResponseWriter) *injector {
	return &injector{ResponseWriter: w, status: http.StatusOK, maxSize: 512 << 10}
}

func (in *injector) WriteHeader(code int) {
	in.status = code
	if in.mode == modeStream {
		in.forwardHeader()
	}
}

func (in *injector) Write(data []byte) (int, error) {
	if in.mode == modeUndecided {
		in.decide()
	}
	if in.mode == modeBuffer && in.body.Len()+len(data) > in.maxSize {
		if err := in.spill(); err != nil {
			return 0, err
		}
	}
	if in.mode == modeStream {
		in.forwardHeader()
		return in.ResponseWriter.Write(data)
	}
	return in.body.Write(data)
}

// decide picks the mode from the Content-Type, which is only known once
// the handler starts writing.
func (in *injector) decide() {
	ct := in.Header().Get("Content-Type")
	if ct == "" || strings.Contains(ct, "text/html") {
		in.mode = modeBuffer
		return
	}
	in.mode = modeStream
}

// spill abandons buffering for a response that outgrew the cap: whatever
// was collected streams out unmodified, followed by the rest.
func (in *injector) spill() error {
	in.mode = modeStream
	in.Header().Del("Content-Length")
	in.forwardHeader()
	if in.body.Len() == 0 {
		return nil
	}
	_, err := in.ResponseWriter.Write(in.body.Bytes())
	in.body.Reset()
	return err
}

func (in *injector) forwardHeader() {
	if !in.sentHdr {
		in.ResponseWriter.WriteHeader(in.status)
		in.sentHdr = true
	}
}

// finalize releases a buffered page with the script tag added before the
// closing body tag. A page with no </body> goes out unchanged.
func (in *injector) finalize() {
	if in.mode != modeBuffer {
		in.forwardHeader()
		return
	}
	page := in.body.Bytes()
	if i := bytes.LastIndex(page, []byte("</body>")); i >= 0 {
		var out bytes.Buffer
		out.Grow(len(page) + len(scriptTag))
		out.Write(page[:i])
		out.WriteString(scriptTag)
		out.Write(page[i:])
		page = out.Bytes()
		in.Header().Del("Content-Length")
	}
	in.forwardHeader()
	_, _ = in.ResponseWriter.Write(page)
}
