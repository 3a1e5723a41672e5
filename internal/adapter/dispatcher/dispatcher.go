package dispatcher

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// Dispatcher executes one HTTP attempt through one proxy endpoint, per
// §4.6's contract: one attempt, no redirects, no retries, TLS verification
// on by default, proxy credentials never touch the target URL.
type Dispatcher struct {
	// AttemptTimeout bounds one dial+request+response round trip when
	// req.AttemptTimeout is zero.
	AttemptTimeout time.Duration
	// InsecureSkipVerify disables TLS verification for every attempt; it
	// must default false (§4.6 "TLS verification on by default") and
	// exists only for operator-controlled test/staging overrides.
	InsecureSkipVerify bool
}

// Dispatch implements ports.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.Request, proxyEndpoint domain.Endpoint) (domain.Response, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return domain.Response{}, &domain.DispatchError{Kind: domain.ErrKindProtocol, ProxyID: proxyEndpoint.ID(), Err: err}
	}

	timeout := req.AttemptTimeout
	if timeout <= 0 {
		timeout = d.AttemptTimeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	destination := hostport(target)

	start := time.Now()
	conn, errKind, err := dial(attemptCtx, proxyEndpoint, destination)
	if err != nil {
		return domain.Response{}, &domain.DispatchError{Kind: mapDialDeadline(attemptCtx, errKind), ProxyID: proxyEndpoint.ID(), Err: err}
	}
	defer conn.Close()

	if target.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         target.Hostname(),
			InsecureSkipVerify: d.InsecureSkipVerify,
		})
		if deadline, ok := attemptCtx.Deadline(); ok {
			_ = tlsConn.SetDeadline(deadline)
		}
		if err := tlsConn.HandshakeContext(attemptCtx); err != nil {
			return domain.Response{}, &domain.DispatchError{Kind: domain.ErrKindTLS, ProxyID: proxyEndpoint.ID(), Err: err}
		}
		conn = tlsConn
	}

	if deadline, ok := attemptCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	httpReq, err := http.NewRequest(req.Method, target.String(), bodyReader(req.Body))
	if err != nil {
		return domain.Response{}, &domain.DispatchError{Kind: domain.ErrKindProtocol, ProxyID: proxyEndpoint.ID(), Err: err}
	}
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Host = target.Host

	if err := httpReq.Write(conn); err != nil {
		return domain.Response{}, &domain.DispatchError{Kind: domain.ErrKindWriteTimeout, ProxyID: proxyEndpoint.ID(), Err: err}
	}

	reader := bufio.NewReader(conn)
	httpResp, err := http.ReadResponse(reader, httpReq)
	if err != nil {
		return domain.Response{}, &domain.DispatchError{Kind: domain.ErrKindReadTimeout, ProxyID: proxyEndpoint.ID(), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return domain.Response{}, &domain.DispatchError{Kind: domain.ErrKindReadTimeout, ProxyID: proxyEndpoint.ID(), Err: err}
	}

	return domain.Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
		ElapsedMs:  time.Since(start).Milliseconds(),
		ProxyID:    proxyEndpoint.ID(),
	}, nil
}

func hostport(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}

func bodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}

func mapDialDeadline(ctx context.Context, fallback domain.ErrorKind) domain.ErrorKind {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.ErrKindConnect
	}
	return fallback
}
