// Package dispatcher executes one HTTP attempt through one proxy endpoint
// (§4.6): HTTP CONNECT tunnelling for http/https upstream proxies,
// golang.org/x/net/proxy.SOCKS5 for socks5, and a hand-rolled SOCKS4/4A
// handshake (x/net/proxy only exports a SOCKS5 dialer) for socks4.
package dispatcher

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/net/proxy"

	"github.com/proxywhirl/proxywhirl/internal/core/domain"
)

// dial opens a raw TCP pipe to destination ("host:port") tunneled through
// proxyEndpoint, classifying failures into the §4.6 error-kind taxonomy.
func dial(ctx context.Context, proxyEndpoint domain.Endpoint, destination string) (net.Conn, domain.ErrorKind, error) {
	switch proxyEndpoint.Scheme {
	case domain.SchemeHTTP, domain.SchemeHTTPS:
		return dialHTTPConnect(ctx, proxyEndpoint, destination)
	case domain.SchemeSOCKS5:
		return dialSOCKS5(ctx, proxyEndpoint, destination)
	case domain.SchemeSOCKS4:
		return dialSOCKS4(ctx, proxyEndpoint, destination)
	default:
		return nil, domain.ErrKindProtocol, fmt.Errorf("unsupported upstream scheme: %s", proxyEndpoint.Scheme)
	}
}

func dialHTTPConnect(ctx context.Context, proxyEndpoint domain.Endpoint, destination string) (net.Conn, domain.ErrorKind, error) {
	proxyHostport := fmt.Sprintf("%s:%d", proxyEndpoint.Host, proxyEndpoint.Port)

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", proxyHostport)
	if err != nil {
		return nil, domain.ErrKindConnect, fmt.Errorf("dial upstream proxy %s: %w", proxyHostport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodConnect, "//"+destination, nil)
	if err != nil {
		conn.Close()
		return nil, domain.ErrKindProtocol, fmt.Errorf("build CONNECT request: %w", err)
	}
	req.Host = destination

	if proxyEndpoint.Username != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(proxyEndpoint.Username + ":" + proxyEndpoint.Password))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, domain.ErrKindWriteTimeout, fmt.Errorf("write CONNECT: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, domain.ErrKindReadTimeout, fmt.Errorf("read CONNECT response: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusProxyAuthRequired || resp.StatusCode >= 500 {
		conn.Close()
		return nil, domain.ErrKindProxy5xx, fmt.Errorf("upstream proxy CONNECT failed: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, domain.ErrKindProtocol, fmt.Errorf("upstream proxy CONNECT failed: %s", resp.Status)
	}

	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, "", nil
	}
	return conn, "", nil
}

func dialSOCKS5(ctx context.Context, proxyEndpoint domain.Endpoint, destination string) (net.Conn, domain.ErrorKind, error) {
	proxyHostport := fmt.Sprintf("%s:%d", proxyEndpoint.Host, proxyEndpoint.Port)

	var auth *proxy.Auth
	if proxyEndpoint.Username != "" {
		auth = &proxy.Auth{User: proxyEndpoint.Username, Password: proxyEndpoint.Password}
	}

	dialer, err := proxy.SOCKS5("tcp", proxyHostport, auth, proxy.Direct)
	if err != nil {
		return nil, domain.ErrKindConnect, fmt.Errorf("create socks5 dialer: %w", err)
	}

	type contextDialer interface {
		DialContext(ctx context.Context, network, addr string) (net.Conn, error)
	}
	if cd, ok := dialer.(contextDialer); ok {
		conn, err := cd.DialContext(ctx, "tcp", destination)
		if err != nil {
			return nil, classifyDialErr(err), fmt.Errorf("socks5 dial %s: %w", destination, err)
		}
		return conn, "", nil
	}

	conn, err := dialer.Dial("tcp", destination)
	if err != nil {
		return nil, classifyDialErr(err), fmt.Errorf("socks5 dial %s: %w", destination, err)
	}
	return conn, "", nil
}

const (
	socks4Version      = 0x04
	socks4CommandConn  = 0x01
	socks4ReplyGranted = 0x5a
)

// dialSOCKS4 speaks the SOCKS4/4A CONNECT handshake directly: x/net/proxy
// has no SOCKS4 dialer, and the protocol is small enough to hand-roll in
// the same manual-framing style dialHTTPConnect already uses. Hostnames
// that don't resolve to a literal IPv4 address fall back to the SOCKS4A
// extension (DSTIP 0.0.0.x, hostname appended after the null-terminated
// user id).
func dialSOCKS4(ctx context.Context, proxyEndpoint domain.Endpoint, destination string) (net.Conn, domain.ErrorKind, error) {
	proxyHostport := fmt.Sprintf("%s:%d", proxyEndpoint.Host, proxyEndpoint.Port)

	destHost, destPortStr, err := net.SplitHostPort(destination)
	if err != nil {
		return nil, domain.ErrKindProtocol, fmt.Errorf("split destination %s: %w", destination, err)
	}
	destPort, err := strconv.Atoi(destPortStr)
	if err != nil || destPort <= 0 || destPort > 0xffff {
		return nil, domain.ErrKindProtocol, fmt.Errorf("invalid destination port %q", destPortStr)
	}

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", proxyHostport)
	if err != nil {
		return nil, domain.ErrKindConnect, fmt.Errorf("dial upstream proxy %s: %w", proxyHostport, err)
	}

	ip4 := net.ParseIP(destHost).To4()
	socks4a := ip4 == nil
	if socks4a {
		ip4 = net.IPv4(0, 0, 0, 1).To4()
	}

	req := make([]byte, 0, 32)
	req = append(req, socks4Version, socks4CommandConn, byte(destPort>>8), byte(destPort))
	req = append(req, ip4...)
	if proxyEndpoint.Username != "" {
		req = append(req, []byte(proxyEndpoint.Username)...)
	}
	req = append(req, 0x00)
	if socks4a {
		req = append(req, []byte(destHost)...)
		req = append(req, 0x00)
	}

	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, domain.ErrKindWriteTimeout, fmt.Errorf("write socks4 request: %w", err)
	}

	reply := make([]byte, 8)
	if _, err := io.ReadFull(conn, reply); err != nil {
		conn.Close()
		return nil, domain.ErrKindReadTimeout, fmt.Errorf("read socks4 reply: %w", err)
	}
	if reply[1] != socks4ReplyGranted {
		conn.Close()
		return nil, domain.ErrKindProtocol, fmt.Errorf("socks4 request rejected, code=0x%02x", reply[1])
	}

	return conn, "", nil
}

func classifyDialErr(err error) domain.ErrorKind {
	var dnsErr *net.DNSError
	if asDNSError(err, &dnsErr) {
		return domain.ErrKindDNS
	}
	return domain.ErrKindConnect
}

func asDNSError(err error, target **net.DNSError) bool {
	for err != nil {
		if e, ok := err.(*net.DNSError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// bufferedConn wraps a net.Conn, replaying bytes bufio.Reader already
// consumed past the CONNECT response (rare, but possible on a pipelined
// proxy reply).
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(b []byte) (int, error) {
	return c.r.Read(b)
}
