// Package healthz serves liveness and readiness probes.
package healthz

import (
	"net/http"
	"sync/atomic"
)

// Handler reports 200 OK once ready.  A handler from New is always ready.
type Handler struct {
	ready int32
}

func New() *Handler {
	return &Handler{ready: 1}
}

// NewUnready returns a handler that reports 503 until SetReady is called.
func NewUnready() *Handler {
	return &Handler{}
}

func (h *Handler) SetReady(ready bool) {
	v := int32(0)
	if ready {
		v = 1
	}
	atomic.StoreInt32(&h.ready, v)
}

func (h *Handler) Ready() bool {
	return atomic.LoadInt32(&h.ready) == 1
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("503 Service Unavailable"))
		return
	}
	w.Write([]byte("200 OK"))
}
