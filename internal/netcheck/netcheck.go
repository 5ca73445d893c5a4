// Package netcheck answers "is a round trip to the remote backend
// currently viable?".
//
// The check is fail-closed: any failure to determine connectivity
// reports offline. A negative answer is a normal state, not an error.
package netcheck

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Checker reports whether the remote backend is reachable right now.
type Checker interface {
	Online(ctx context.Context) bool
}

// Static is a fixed-answer Checker for tests and forced-offline mode.
type Static bool

// Online implements Checker.
func (s Static) Online(ctx context.Context) bool { return bool(s) }

// Probe checks both link connectivity and actual internet
// reachability: a device can be associated with a local network that
// has no upstream route, so an interface being up is not enough.
type Probe struct {
	// URL is probed with a HEAD request. Any 2xx-4xx response counts
	// as reachable (the server answered); transport errors do not.
	URL string

	// Timeout bounds the probe round trip.
	Timeout time.Duration

	client *http.Client
}

// NewProbe creates a Probe against url with the given timeout.
func NewProbe(url string, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Probe{
		URL:     url,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Online implements Checker.
func (p *Probe) Online(ctx context.Context) bool {
	if !linkUp() {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 500
}

// linkUp reports whether any non-loopback interface is up with an
// address assigned.
func linkUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}
