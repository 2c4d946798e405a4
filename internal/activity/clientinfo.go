package activity

import (
	"context"
	"encoding/json"
	"net/http"

	"libris/pkg/platform/circuit"
	"libris/pkg/requestcontext"
)

// UnknownValue fills client-info fields that could not be resolved.
const UnknownValue = "Unknown"

// ClientInfo enriches every emitted record. Both fields default to
// UnknownValue; resolution is best-effort and never fails.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// Probe resolves client info for one write attempt. Lookup never returns
// an error; callers only ever consume the defaulted values.
type Probe interface {
	Lookup(ctx context.Context) ClientInfo
}

// HTTPProbe reads the user agent and client IP from the request context
// when middleware has populated them, and otherwise falls back to a
// configured service identity and a third-party IP lookup endpoint. The
// lookup runs once per invocation; nothing is cached across calls.
type HTTPProbe struct {
	client    *http.Client
	lookupURL string
	userAgent string
	breaker   *circuit.Breaker
}

// NewHTTPProbe builds a probe. lookupURL is an endpoint answering
// {"ip": "..."}; empty disables the remote lookup. userAgent is the value
// reported when the context carries none; empty means UnknownValue.
func NewHTTPProbe(lookupURL, userAgent string) *HTTPProbe {
	return &HTTPProbe{
		client:    &http.Client{},
		lookupURL: lookupURL,
		userAgent: userAgent,
		breaker:   circuit.New("ip-lookup", circuit.WithFailureThreshold(3)),
	}
}

func (p *HTTPProbe) Lookup(ctx context.Context) ClientInfo {
	info := ClientInfo{UserAgent: UnknownValue, IPAddress: UnknownValue}

	if ua := requestcontext.UserAgent(ctx); ua != "" {
		info.UserAgent = ua
	} else if p.userAgent != "" {
		info.UserAgent = p.userAgent
	}

	if ip := requestcontext.ClientIP(ctx); ip != "" {
		info.IPAddress = ip
		return info
	}
	info.IPAddress = p.lookupIP(ctx)
	return info
}

// lookupIP asks the third-party endpoint for our public address. Every
// failure mode (no endpoint, network, status, parse, open breaker) yields
// UnknownValue. A run of failures opens the breaker so a dead endpoint
// stops delaying writes.
func (p *HTTPProbe) lookupIP(ctx context.Context) string {
	if p.lookupURL == "" || p.breaker.IsOpen() {
		return UnknownValue
	}
	ip := p.fetchIP(ctx)
	if ip == UnknownValue {
		p.breaker.RecordFailure()
	} else {
		p.breaker.RecordSuccess()
	}
	return ip
}

func (p *HTTPProbe) fetchIP(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.lookupURL, nil)
	if err != nil {
		return UnknownValue
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return UnknownValue
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UnknownValue
	}
	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.IP == "" {
		return UnknownValue
	}
	return payload.IP
}

type noopProbe struct{}

func (noopProbe) Lookup(context.Context) ClientInfo {
	return ClientInfo{UserAgent: UnknownValue, IPAddress: UnknownValue}
}
