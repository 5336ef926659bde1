package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/anyone-dns-service/common"
	"github.com/ruteri/anyone-dns-service/interfaces"
)

// Handler serves the cached domain mappings and live resolutions over HTTP.
type Handler struct {
	cache    interfaces.DomainCache
	resolver interfaces.DomainResolver
	tlds     interfaces.TLDSet
	log      *slog.Logger
}

// NewHandler creates a new HTTP request handler.
//
// Parameters:
//   - cache: snapshot of resolved domains served by the read endpoints
//   - resolver: used by the live resolution endpoint, bypassing the cache
//   - tlds: TLDs accepted by the hosts endpoint
//   - log: structured logger
func NewHandler(cache interfaces.DomainCache, resolver interfaces.DomainResolver, tlds interfaces.TLDSet, log *slog.Logger) *Handler {
	return &Handler{
		cache:    cache,
		resolver: resolver,
		tlds:     tlds,
		log:      log,
	}
}

// HandleHealthcheck reports the service version.
//
// URL format: GET /
func (h *Handler) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Anyone DNS Service version %s", common.Version)
}

// HandleHosts returns the hosts list of resolved domains, one
// "<domain> <address>" line each, in inventory order.
//
// URL format: GET /tld/{tld}
func (h *Handler) HandleHosts(w http.ResponseWriter, r *http.Request) {
	tld := strings.TrimPrefix(chi.URLParam(r, "tld"), ".")
	if !h.tlds.Contains(tld) {
		http.Error(w, fmt.Sprintf("TLD .%s is not supported", tld), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.cache.HostsText()))
}

// HandleDomains returns the cached domain list as a JSON array.
//
// URL format: GET /domains
func (h *Handler) HandleDomains(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cache.ListDomains())
}

// HandleDomain returns the cached resolution of a single domain.
// A domain missing from the snapshot yields 404; a failed resolution is still a 200.
//
// URL format: GET /domains/{name}
func (h *Handler) HandleDomain(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, ok := h.cache.Domain(name)
	if !ok {
		http.Error(w, fmt.Sprintf("domain %s not found", name), http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleMappings returns every cached resolution result in inventory order.
//
// URL format: GET /mappings
func (h *Handler) HandleMappings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cache.Mappings())
}

// HandleRefresh runs a cache refresh synchronously and returns the resulting status.
//
// URL format: POST /refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.log.Info("manual cache refresh requested")
	h.cache.Refresh(r.Context())
	h.writeJSON(w, http.StatusOK, h.cache.Status())
}

// HandleStatus returns the cache status.
//
// URL format: GET /status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cache.Status())
}

// HandleResolve resolves a domain against the registry, bypassing the cache.
//
// URL format: GET /resolve/{name}
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h.writeJSON(w, http.StatusOK, h.resolver.Resolve(r.Context(), name))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
