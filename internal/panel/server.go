// ABOUTME: Panel host server: chi routes for pages, the websocket transport, assets and /metrics
// ABOUTME: Runs under an errgroup; shutdown disposes every panel and closes open sockets

package panel

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	xhttp "github.com/mariosdrth/npm-explorer/internal/http"
	"github.com/mariosdrth/npm-explorer/internal/log"
)

//go:embed assets
var assetFS embed.FS

const (
	writeWait    = 10 * time.Second
	maxEventSize = 64 << 10

	// closeUnknownPanel tells the page not to reconnect.
	closeUnknownPanel = 4404
)

// Server hosts panels over HTTP.
type Server struct {
	addr     string
	opts     Options
	gatherer prometheus.Gatherer
	router   chi.Router
	upgrader websocket.Upgrader

	open   prometheus.Gauge
	events *prometheus.CounterVec

	mu     sync.Mutex
	base   context.Context
	url    string
	panels map[string]*Panel
	conns  map[*websocket.Conn]struct{}
}

// NewServer creates a server listening on addr once served. Metrics are
// registered on reg and served from it at /metrics.
func NewServer(addr string, opts Options, reg *prometheus.Registry) *Server {
	if opts.Renderer == nil {
		opts.Renderer = NewRenderer()
	}
	factory := promauto.With(reg)
	s := &Server{
		addr:     addr,
		opts:     opts,
		gatherer: reg,
		open: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "npm_explorer",
			Subsystem: "panel",
			Name:      "open",
			Help:      "Open registry panels",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "npm_explorer",
			Subsystem: "panel",
			Name:      "events_total",
			Help:      "Page events received by command",
		}, []string{"command"}),
		base:   context.Background(),
		panels: make(map[string]*Panel),
		conns:  make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
		},
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: requestLog{}, NoColor: true}))
	r.Use(middleware.Recoverer)

	assets, _ := fs.Sub(assetFS, "assets")
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(assets))))
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Post("/panels", s.handleOpen)
	r.Get("/panels/{id}", s.handlePage)
	r.Delete("/panels/{id}", s.handleClose)
	r.Get("/panels/{id}/ws", s.handleSocket)
	s.router = r
}

// requestLog sends chi's request lines to the debug log.
type requestLog struct{}

func (requestLog) Print(v ...any) {
	log.Debug("panel: %s", strings.TrimSpace(fmt.Sprint(v...)))
}

// Open creates a panel for target, or a search for search when target is
// nil, and starts loading it.
func (s *Server) Open(target *Target, search string) *Panel {
	p := New(uuid.NewString(), s.opts, target, search)
	s.mu.Lock()
	s.panels[p.ID] = p
	base := s.base
	s.mu.Unlock()
	s.open.Inc()
	go p.Refresh(base)
	return p
}

// OpenDependency opens name, taking its declared state from the manifest.
func (s *Server) OpenDependency(name string) *Panel {
	t := Target{Name: name}
	if s.opts.Dependencies != nil {
		if d, ok := s.opts.Dependencies.Dependency(name, nil); ok {
			t = Target{Name: d.Name, Installed: true, Version: d.Version, Dev: d.Dev}
		}
	}
	return s.Open(&t, "")
}

// Panel returns an open panel.
func (s *Server) Panel(id string) (*Panel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.panels[id]
	return p, ok
}

// Close disposes a panel.
func (s *Server) Close(id string) bool {
	s.mu.Lock()
	p, ok := s.panels[id]
	delete(s.panels, id)
	s.mu.Unlock()
	if ok {
		p.Dispose()
		s.open.Dec()
	}
	return ok
}

// URL is the base URL once listening, e.g. http://127.0.0.1:38211.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// PanelURL is the page address of p.
func (s *Server) PanelURL(p *Panel) string {
	return s.URL() + "/panels/" + p.ID
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.url = "http://" + ln.Addr().String()
	s.mu.Unlock()
	return ln, nil
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.base = ctx
	if s.url == "" {
		s.url = "http://" + ln.Addr().String()
	}
	s.mu.Unlock()

	srv := xhttp.SecureHTTPServer(s.router, ln.Addr().String())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving panels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ListenAndServe listens on the configured address and serves until ctx
// is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	panels := s.panels
	s.panels = make(map[string]*Panel)
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, p := range panels {
		p.Dispose()
		s.open.Dec()
	}
	for _, c := range conns {
		_ = c.Close()
	}
}

type openResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dep := strings.TrimSpace(q.Get("dependency"))
	search := strings.TrimSpace(q.Get("search"))

	var p *Panel
	switch {
	case dep != "":
		p = s.OpenDependency(dep)
	case search != "":
		p = s.Open(nil, search)
	default:
		http.Error(w, "dependency or search is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/panels/"+p.ID)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(openResponse{ID: p.ID, URL: s.PanelURL(p)})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Panel(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	fragment, _ := p.Snapshot()
	doc, err := s.opts.Renderer.Document(p.ID, "ws://"+r.Host, fragment)
	if err != nil {
		log.Error("panel %s: %v", p.ID, err)
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(doc))
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if !s.Close(chi.URLParam(r, "id")) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("panel: upgrade: %v", err)
		return
	}
	defer conn.Close()

	p, ok := s.Panel(chi.URLParam(r, "id"))
	if !ok {
		msg := websocket.FormatCloseMessage(closeUnknownPanel, "unknown panel")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	var writeMu sync.Mutex
	send := func(m Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(m); err != nil {
			log.Debug("panel %s: write: %v", p.ID, err)
		}
	}
	unsubscribe := p.Subscribe(send)
	defer unsubscribe()

	fragment, graph := p.Snapshot()
	send(htmlMessage(fragment))
	if graph != nil {
		send(*graph)
	}

	conn.SetReadLimit(maxEventSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("panel %s: read: %v", p.ID, err)
			}
			return
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Debug("panel %s: bad event: %v", p.ID, err)
			continue
		}
		label := ev.Command
		if !knownEvent(label) {
			label = "unknown"
		}
		s.events.WithLabelValues(label).Inc()
		s.mu.Lock()
		base := s.base
		s.mu.Unlock()
		p.HandleEvent(base, ev)
	}
}
