// Package dnsserver answers DNS queries for Anyone domains from the domain cache.
package dnsserver

import (
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/miekg/dns"

	"github.com/ruteri/anyone-dns-service/interfaces"
)

// DefaultTTL is the TTL, in seconds, of every answer record.
const DefaultTTL = 60

// Server serves TXT and CNAME answers for cached domains over UDP and TCP.
//
// For "<label>.<tld>." it answers:
//   - TXT with the hidden service address
//   - CNAME, A, AAAA with a CNAME pointing at "<address>."
//   - ANY with both
//
// Names missing from the cache and domains without a record get NXDOMAIN,
// other resolution failures SERVFAIL, and names outside the served TLDs REFUSED.
type Server struct {
	// Addr is the address the server is listening on.
	Addr string

	cache interfaces.DomainCache
	tlds  interfaces.TLDSet
	ttl   uint32
	log   *slog.Logger

	udp *dns.Server
	tcp *dns.Server
}

// New creates a server answering from cache for names under tlds.
// It does not listen until ListenAndServe is called.
func New(cache interfaces.DomainCache, tlds interfaces.TLDSet, log *slog.Logger) *Server {
	return &Server{
		cache: cache,
		tlds:  tlds,
		ttl:   DefaultTTL,
		log:   log,
	}
}

// ListenAndServe binds addr for both UDP and TCP and serves in the background.
// If the port in addr is "0" an available port is chosen and recorded in Addr.
func (s *Server) ListenAndServe(addr string) error {
	udpConn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	tcpListener, err := net.Listen("tcp", udpConn.LocalAddr().String())
	if err != nil {
		_ = udpConn.Close()
		return err
	}

	s.Addr = udpConn.LocalAddr().String()
	s.udp = &dns.Server{PacketConn: udpConn, Handler: s}
	s.tcp = &dns.Server{Listener: tcpListener, Handler: s}

	for _, srv := range []*dns.Server{s.udp, s.tcp} {
		go func(srv *dns.Server) {
			if err := srv.ActivateAndServe(); err != nil {
				s.log.Error("DNS server failed", "err", err)
			}
		}(srv)
	}

	s.log.Info("Starting DNS server", "listenAddress", s.Addr)
	return nil
}

// Shutdown stops both listeners.
func (s *Server) Shutdown() {
	for _, srv := range []*dns.Server{s.udp, s.tcp} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(); err != nil {
			s.log.Error("DNS server shutdown failed", "err", err)
		}
	}
	s.log.Info("DNS server stopped")
}

// ServeDNS implements dns.Handler.
func (s *Server) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	m := s.answer(req)
	if err := w.WriteMsg(m); err != nil {
		s.log.Debug("Failed to write DNS response", "err", err)
	}
}

func (s *Server) answer(req *dns.Msg) *dns.Msg {
	m := new(dns.Msg)
	if len(req.Question) != 1 {
		m.SetRcode(req, dns.RcodeFormatError)
		return m
	}

	q := req.Question[0]
	name := strings.TrimSuffix(dns.CanonicalName(q.Name), ".")

	if !s.tlds.Contains(interfaces.TLD(name)) {
		m.SetRcode(req, dns.RcodeRefused)
		return m
	}

	result, ok := s.cache.Domain(name)
	if !ok {
		m.SetRcode(req, dns.RcodeNameError)
		m.Authoritative = true
		return m
	}

	if !result.OK() {
		rcode := dns.RcodeServerFailure
		if errors.Is(result.Err, interfaces.ErrRecordNotFound) {
			rcode = dns.RcodeNameError
		}
		m.SetRcode(req, rcode)
		m.Authoritative = rcode == dns.RcodeNameError
		s.log.Debug("DNS query for unresolved domain", "domain", name, "kind", interfaces.KindName(result.Kind()))
		return m
	}

	m.SetReply(req)
	m.Authoritative = true

	hdr := func(rrtype uint16) dns.RR_Header {
		return dns.RR_Header{Name: q.Name, Rrtype: rrtype, Class: dns.ClassINET, Ttl: s.ttl}
	}
	cname := &dns.CNAME{Hdr: hdr(dns.TypeCNAME), Target: dns.Fqdn(result.Address)}
	txt := &dns.TXT{Hdr: hdr(dns.TypeTXT), Txt: []string{result.Address}}

	switch q.Qtype {
	case dns.TypeTXT:
		m.Answer = append(m.Answer, txt)
	case dns.TypeCNAME, dns.TypeA, dns.TypeAAAA:
		m.Answer = append(m.Answer, cname)
	case dns.TypeANY:
		m.Answer = append(m.Answer, cname, txt)
	}
	return m
}
