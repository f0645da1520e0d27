// Package transport builds the HTTP clients page analyzers use: direct
// connections, an explicit SOCKS5 proxy, or an embedded Tor daemon
// started on demand. Per-site cookies, headers and the User-Agent are
// injected by a RoundTripper so redirects carry them too.
package transport
