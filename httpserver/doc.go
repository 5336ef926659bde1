/*
Package httpserver implements the HTTP front door of the Anyone DNS service.

It exposes the cached mapping of Anyone domains to hidden service addresses,
a live resolution endpoint that goes straight to the registry, and the usual
health and drain endpoints used by load balancers.

# Endpoints

  - GET /                  version healthcheck
  - GET /tld/{tld}         hosts list, one "<domain> <address>" line per resolved domain
  - GET /domains           cached domain names, inventory order
  - GET /domains/{name}    cached resolution result of one domain, 404 when not cached
  - GET /mappings          every cached resolution result
  - POST /refresh          synchronous cache refresh, returns the cache status
  - GET /status            cache status
  - GET /resolve/{name}    live resolution bypassing the cache
  - GET /livez, /readyz, /drain, /undrain

Resolution results are encoded as

	{"result":"success","domain":"a.anyone","hiddenServiceAddress":"<56 chars>.anyone"}
	{"result":"error","domain":"b.anyone","error":{"kind":"RecordNotFound","message":"..."}}

/readyz only reports ready once the cache holds a snapshot and the server is not draining.
Request logging uses go-utils' slog middleware; pprof is mounted under /debug when enabled.
*/
package httpserver
