// Package proxy runs a small local reverse proxy used when exercising the
// pipeline against recorded or substituted upstreams. Requests are routed by
// path shape to the social surface, the generation endpoint, or a default
// origin, so the rest of the system can point every base URL at one address.
package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config names the three upstream origins.
type Config struct {
	Addr             string
	SocialOrigin     string
	GenerationOrigin string
	DefaultOrigin    string
}

// Server routes incoming requests to one of the configured origins.
type Server struct {
	cfg Config
	log *zap.Logger

	social     *httputil.ReverseProxy
	generation *httputil.ReverseProxy
	fallback   *httputil.ReverseProxy
}

// New builds the router. All three origins must be absolute URLs.
func New(cfg Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	social, err := upstream(cfg.SocialOrigin, true)
	if err != nil {
		return nil, fmt.Errorf("social origin: %w", err)
	}
	generation, err := upstream(cfg.GenerationOrigin, false)
	if err != nil {
		return nil, fmt.Errorf("generation origin: %w", err)
	}
	fallback, err := upstream(cfg.DefaultOrigin, false)
	if err != nil {
		return nil, fmt.Errorf("default origin: %w", err)
	}

	return &Server{
		cfg:        cfg,
		log:        log,
		social:     social,
		generation: generation,
		fallback:   fallback,
	}, nil
}

// upstream builds a reverse proxy for one origin. The social surface rejects
// requests without a language preference, so one is pinned there.
func upstream(origin string, social bool) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("origin %q is not an absolute URL", origin)
	}

	p := httputil.NewSingleHostReverseProxy(target)
	director := p.Director
	p.Director = func(req *http.Request) {
		director(req)
		req.Host = target.Host
		if social {
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		}
	}
	return p, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/proxy-status" {
		s.status(w)
		return
	}

	route, p := s.route(r)
	s.log.Debug("proxying request",
		zap.String("route", route),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path))
	p.ServeHTTP(w, r)
}

func (s *Server) route(r *http.Request) (string, *httputil.ReverseProxy) {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/i/flow/"),
		strings.HasPrefix(path, "/home"),
		strings.Contains(path, "/status/"):
		return "social", s.social
	case strings.HasPrefix(path, "/api/v1/"),
		strings.HasPrefix(path, "/chat/completions"):
		return "generation", s.generation
	default:
		return "default", s.fallback
	}
}

func (s *Server) status(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe blocks serving on cfg.Addr until the server fails.
func (s *Server) ListenAndServe() error {
	s.log.Info("proxy listening",
		zap.String("addr", s.cfg.Addr),
		zap.String("social", s.cfg.SocialOrigin),
		zap.String("generation", s.cfg.GenerationOrigin),
		zap.String("default", s.cfg.DefaultOrigin))

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
