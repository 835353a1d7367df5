package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"snigexport/pkg/config"
	"snigexport/pkg/logger"
)

// Server serves the local viewer and relays requests to the SNIG services
// so the browser never hits their missing CORS headers directly. Only the
// relay plumbing lives here; the export pipeline does not depend on it.
type Server struct {
	cfg        *config.Config
	logger     logger.Logger
	httpClient *http.Client
	handler    http.Handler
}

// New creates a Server
func New(cfg *config.Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}

	s := &Server{
		cfg:        cfg,
		logger:     log,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	r := mux.NewRouter()
	r.PathPrefix("/proxy/mapserver/").Handler(s.proxyHandler("/proxy/mapserver/", cfg.Service.BaseURL)).Methods(http.MethodGet, http.MethodPost)
	r.PathPrefix("/proxy/geocode/").Handler(s.proxyHandler("/proxy/geocode/", cfg.Service.GeocodeURL)).Methods(http.MethodGet, http.MethodPost)
	r.Path("/proxy/nominatim/search").HandlerFunc(s.nominatimHandler).Methods(http.MethodGet)
	r.PathPrefix("/outputs/").Handler(http.StripPrefix("/outputs/", http.FileServer(http.Dir(cfg.Export.OutputDir))))
	r.Path("/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, filepath.Join(cfg.Server.WebDir, "index.html"))
	})
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.Server.WebDir)))

	s.handler = cors.AllowAll().Handler(r)
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks serving on the configured port
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.logger.WithFields(map[string]interface{}{
		"addr":    addr,
		"web_dir": filepath.Clean(s.cfg.Server.WebDir),
	}).Info("server listening")
	return http.ListenAndServe(addr, s.handler)
}

// proxyHandler relays a request under prefix to the upstream base URL,
// passing query parameters and form data through
func (s *Server) proxyHandler(prefix, upstreamBase string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, prefix)
		target := strings.TrimRight(upstreamBase, "/") + "/" + endpoint

		resp, err := s.relay(r, target)
		if err != nil {
			s.logger.WithError(err).WithField("target", target).Warn("proxy request failed")
			s.writeProxyError(w, err)
			return
		}
		defer resp.Body.Close()

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			s.logger.WithError(err).Debug("proxy response copy interrupted")
		}
	})
}

// nominatimHandler relays a search to the OpenStreetMap geocoder, scoped
// to Uruguay: the country is appended to the query text when absent and
// results are restricted by country code
func (s *Server) nominatimHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if !strings.Contains(strings.ToLower(q), "uruguay") {
		q = q + ", Uruguay"
	}
	limit := r.URL.Query().Get("limit")
	if limit == "" {
		limit = "8"
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", limit)
	params.Set("countrycodes", "uy")
	params.Set("addressdetails", "1")
	target := s.cfg.Service.NominatimURL + "?" + params.Encode()

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		s.writeProxyError(w, err)
		return
	}
	req.Header.Set("User-Agent", s.cfg.Service.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("target", target).Warn("nominatim request failed")
		s.writeProxyError(w, err)
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.WithError(err).Debug("nominatim response copy interrupted")
	}
}

// writeProxyError answers 502 with a JSON body. The message goes through
// the JSON encoder because transport errors routinely contain quoted URLs.
func (s *Server) writeProxyError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": fmt.Sprintf("proxy error: %s", err),
	})
}

func (s *Server) relay(r *http.Request, target string) (*http.Response, error) {
	if q := r.URL.RawQuery; q != "" {
		target = target + "?" + q
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form data: %w", err)
		}
		return s.httpClient.PostForm(target, r.PostForm)
	}
	return s.httpClient.Get(target)
}
