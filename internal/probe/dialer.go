package probe

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

// dialFunc opens the TCP (or tunneled) connection to one exchanger.
type dialFunc func(ctx context.Context, addr string) (net.Conn, error)

// directDialer speaks TCP straight to the exchanger.
func directDialer() dialFunc {
	d := &net.Dialer{}
	return func(ctx context.Context, addr string) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	}
}

// socksDialer tunnels the SMTP connection through a SOCKS5 proxy.
// Credentials ride in the URL when configured; otherwise the handshake
// is NOAUTH. Handshake, refusal and auth failures come back wrapped in
// errProxy, since the exchanger itself was never reached.
func socksDialer(proxyURL string) (dialFunc, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}

	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("proxy dialer: %w", err)
	}
	ctxDialer, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy dialer for %s does not support contexts", u.Scheme)
	}

	return func(ctx context.Context, addr string) (net.Conn, error) {
		conn, err := ctxDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, errProxy{err}
		}
		return conn, nil
	}, nil
}

// errProxy marks failures on the proxy leg. They never consume the MX
// retry budget because no exchanger was spoken to.
type errProxy struct{ err error }

func (e errProxy) Error() string { return "socks5 proxy: " + e.err.Error() }
func (e errProxy) Unwrap() error { return e.err }
