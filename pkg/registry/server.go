package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/lockmirror/pkg/config"
	lmerrors "github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/observability"
)

// Server is the local registry.
type Server struct {
	host  string
	port  int
	ext   string
	roots []string

	index   atomic.Pointer[Index]
	reindex sync.Mutex

	hooks  observability.RegistryHooks
	logger *log.Logger

	server  *http.Server
	baseURL string
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHooks sets the request and reindex hooks.
func WithHooks(h observability.RegistryHooks) Option {
	return func(s *Server) { s.hooks = h }
}

// NewServer creates a server for roots. The index starts empty; call
// [Server.Reindex] or [Server.Start] to populate it.
func NewServer(cfg config.RegistryConfig, roots []string, opts ...Option) *Server {
	s := &Server{
		host:  cfg.Host,
		port:  cfg.Port,
		ext:   cfg.Extension,
		roots: roots,
		hooks: observability.NoopRegistryHooks{},
	}
	if s.host == "" {
		s.host = "127.0.0.1"
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.index.Store(NewIndex(nil))
	return s
}

// Index returns the current snapshot.
func (s *Server) Index() *Index { return s.index.Load() }

// Reindex rescans every root and swaps in the new index. Concurrent calls
// are serialized so an older scan never replaces a newer one.
func (s *Server) Reindex(ctx context.Context) (*Index, error) {
	s.reindex.Lock()
	defer s.reindex.Unlock()

	start := time.Now()
	ix, err := Scan(s.ext, s.roots...)
	if err != nil {
		return nil, fmt.Errorf("scan artifact store: %w", err)
	}
	s.index.Store(ix)
	s.hooks.OnReindex(ctx, ix.Packages(), ix.Len(), time.Since(start))
	return ix, nil
}

// Handler returns the HTTP handler of the registry.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/-/rescan", s.handleRescan)
	r.Head("/-/rescan", s.handleRescan)
	r.Get("/*", s.handleGet)
	r.Head("/*", s.handleGet)
	return r
}

// Start reindexes, binds the configured address and serves in the
// background. It returns the base URL the installer should use.
func (s *Server) Start(ctx context.Context) (string, error) {
	if _, err := s.Reindex(ctx); err != nil {
		return "", err
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return "", fmt.Errorf("listen on %s:%d: %w", s.host, s.port, err)
	}
	s.baseURL = "http://" + ln.Addr().String()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 60 * time.Second,
		// Clients abort transfers routinely; keep those out of the error log.
		ErrorLog: s.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel}),
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("registry stopped", "err", err)
		}
	}()
	s.logger.Debug("registry listening", "url", s.baseURL, "packages", s.Index().Len())
	return s.baseURL, nil
}

// URL returns the base URL after [Server.Start], or "".
func (s *Server) URL() string { return s.baseURL }

// Shutdown stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.hooks.OnRequest(r.Context(), r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	ix, err := s.Reindex(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "rescan ok, %d packages\n", ix.Len())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p := strings.Trim(r.URL.Path, "/")
	if p == "" {
		http.NotFound(w, r)
		return
	}
	if name, file, ok := strings.Cut(p, "/-/"); ok {
		name, file = strings.Trim(name, "/"), strings.TrimSpace(file)
		if err := validateRequest(name, file); err != nil {
			http.Error(w, lmerrors.UserMessage(err), http.StatusBadRequest)
			return
		}
		s.serveTarball(w, r, name, file)
		return
	}
	name := strings.TrimSpace(p)
	if err := lmerrors.ValidateNpmPackageName(name); err != nil {
		http.Error(w, lmerrors.UserMessage(err), http.StatusBadRequest)
		return
	}
	s.servePackument(w, r, name)
}

// validateRequest checks the package name and file name of a tarball path
// before either reaches the index.
func validateRequest(name, file string) error {
	if err := lmerrors.ValidateNpmPackageName(name); err != nil {
		return err
	}
	return lmerrors.ValidateFileName(file)
}

func (s *Server) servePackument(w http.ResponseWriter, r *http.Request, name string) {
	if name == "" {
		http.NotFound(w, r)
		return
	}
	doc, ok := BuildPackument(s.Index(), s.base(r), name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	body, err := json.Marshal(doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

func (s *Server) serveTarball(w http.ResponseWriter, r *http.Request, name, file string) {
	_, version, ok := ParseTarballName(file, s.ext)
	if !ok || name == "" {
		http.NotFound(w, r)
		return
	}
	entry, ok := s.Index().Lookup(name, version)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(entry.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/gzip")
	http.ServeContent(w, r, file, info.ModTime(), f)
}

// base returns the URL prefix for tarball links: the started server's URL,
// or the scheme and host of the request when serving through [Server.Handler]
// alone.
func (s *Server) base(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
