// Package main (cmd/dnsservice) runs the Anyone DNS service.
//
// On start it binds the UNS ProxyReader contract over JSON-RPC and launches the
// cache refresh loop: the domain list is fetched from the Anyone API, each domain
// is resolved against the registry in paced batches, and the resulting snapshot
// replaces the previous one. A failed refresh keeps serving the last snapshot.
//
// The cache is served over HTTP (see package httpserver) and, when
// --dns-listen-addr is set, over DNS (see package dnsserver). Prometheus metrics
// are exposed on --metrics-addr.
//
// Every registry and inventory setting can also be provided through the
// environment: JSON_RPC_URL, UNS_PROXY_READER_ADDRESS, ANYONE_API_BASE_URL and
// ANYONE_DOMAINS_CACHE_TTL_MS.
package main
