// Package transport builds the HTTP client pagemirror fetches through.
//
// The default client talks to the network directly. When a SOCKS5 proxy
// address is configured, every connection is dialled through it instead;
// the embedded Tor daemon (EmbeddedTor) is just a proxy that pagemirror
// starts and stops itself.
//
// Site configuration is applied here too: a cookie and extra headers can
// be injected into every request, redirects included, by a wrapping
// RoundTripper.
//
// Onion hosts need special care. A .onion URL cannot be reached without
// Tor, so CheckTarget rejects it up front unless the client is proxied,
// and malformed v3 addresses are rejected before any request is made.
package transport
