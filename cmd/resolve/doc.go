// Package main (cmd/resolve) is an operator CLI for Anyone domains.
//
// Usage:
//
//	resolve resolve --rpc-addr <url> --proxy-reader-address <addr> a.anyone b.anyone
//	resolve namehash a.anyone
//	resolve validate <56 chars>.anyone
package main
