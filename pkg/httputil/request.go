package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/Aniket2927/Renx-sub004/pkg/contextkeys"
)

const (
	// SessionHeader carries the caller's session id
	SessionHeader = "X-Session-ID"
	// SessionCookie is the fallback when the header is absent
	SessionCookie = "session_id"
)

// TrustedProxies is the set of networks allowed to report the client
// address through X-Forwarded-For or X-Real-IP
type TrustedProxies []netip.Prefix

// ParseTrustedProxies parses CIDRs or bare addresses
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Contains reports whether ip belongs to a trusted proxy
func (t TrustedProxies) Contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range t {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve returns the caller's address. Forwarding headers are only read
// when the peer is a trusted proxy; X-Forwarded-For is walked from the right
// and the first hop that is not itself a trusted proxy wins.
func (t TrustedProxies) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	if !t.Contains(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			client = hop
			if !t.Contains(hop) {
				break
			}
		}
		if client != "" {
			return client
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

// ClientIPMiddleware resolves the caller's address once and stores it on
// the request context for ClientIP
func ClientIPMiddleware(trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := contextkeys.WithClientIP(r.Context(), trusted.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the address resolved by ClientIPMiddleware, else the host
// part of RemoteAddr. Forwarding headers are never read here.
func ClientIP(r *http.Request) string {
	if ip := contextkeys.GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SessionID returns the session id from the X-Session-ID header or the
// session_id cookie
func SessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// IsJSON reports whether the request declares a JSON body
func IsJSON(r *http.Request) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	return strings.HasPrefix(ct, "application/json")
}

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ReadBody reads the whole body and replaces r.Body so later handlers can
// read it again
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PeekJSONObject returns the body as a JSON object without consuming it.
// ok is false when the request is not JSON or the body is not an object.
func PeekJSONObject(r *http.Request) (obj map[string]interface{}, ok bool, err error) {
	if !IsJSON(r) {
		return nil, false, nil
	}
	data, err := ReadBody(r)
	if err != nil {
		return nil, false, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, false, nil
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false, nil
	}
	return obj, obj != nil, nil
}

// ReplaceJSONBody re-encodes obj as the request body and fixes Content-Length
func ReplaceJSONBody(r *http.Request, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	r.ContentLength = int64(len(data))
	r.Header.Set("Content-Length", fmt.Sprintf("%d", len(data)))
	return nil
}
