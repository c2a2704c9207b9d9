package abci

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/cors"
)

// eventRing is a fixed-capacity ring buffer of the most recent events,
// replayed to newly-subscribed indexers. Grounded on the teacher's
// engine.EngineAPI request/response server shape (a mutex-guarded struct
// wrapping a net/http.Server), generalized from a single-shot JSON-RPC
// handler to a long-lived Server-Sent-Events broadcast.
type eventRing struct {
	mu   sync.Mutex
	buf  []Event
	cap  int
	subs map[chan Event]struct{}
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{cap: capacity, subs: make(map[chan Event]struct{})}
}

func (r *eventRing) push(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = append(r.buf, ev)
	if len(r.buf) > r.cap {
		r.buf = r.buf[len(r.buf)-r.cap:]
	}
	for ch := range r.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than block FinalizeBlock
		}
	}
}

func (r *eventRing) subscribe() (ch chan Event, replay []Event, unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch = make(chan Event, 64)
	r.subs[ch] = struct{}{}
	replay = append([]Event(nil), r.buf...)
	return ch, replay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, ch)
		close(ch)
	}
}

// EventServer exposes the event stream over HTTP/SSE for indexers (the
// "event stream for indexers" suspension point named in spec.md §5),
// CORS-enabled for browser-based indexer dashboards and tagging every
// connection with a request id for cross-log correlation.
type EventServer struct {
	app    *Application
	server *http.Server
}

// NewEventServer wraps app's event ring in an HTTP handler.
func NewEventServer(app *Application) *EventServer {
	mux := http.NewServeMux()
	es := &EventServer{app: app}
	mux.HandleFunc("/events", es.handleStream)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)

	es.server = &http.Server{Handler: handler}
	return es
}

// ListenAndServe starts the event-stream HTTP server on addr; blocks until
// the server stops.
func (es *EventServer) ListenAndServe(addr string) error {
	es.server.Addr = addr
	if err := es.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (es *EventServer) Close() error { return es.server.Close() }

func (es *EventServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	requestID := uuid.New().String()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Request-Id", requestID)

	ch, replay, unsubscribe := es.app.events.subscribe()
	defer unsubscribe()

	for _, ev := range replay {
		writeEvent(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) {
	fmt.Fprintf(w, "event: %s\ndata: {\"hash\":\"%s\",\"height\":%d,\"code\":%d,\"info\":%q,\"gas_used\":%d}\n\n",
		ev.Type, ev.Hash.Hex(), ev.Height, ev.Code, ev.Info, ev.GasUsed)
}
