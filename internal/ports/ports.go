package ports

import (
	"fmt"
	"net"
	"strconv"
	"sync"
)

// Default scan range for application ports. End is exclusive.
const (
	DefaultStart = 8000
	DefaultEnd   = 9000
)

// NoFreePortsError is returned when every port in the scanned range is either
// reserved or already bound on loopback.
type NoFreePortsError struct {
	Start int
	End   int
}

func (e *NoFreePortsError) Error() string {
	return fmt.Sprintf("No free ports available between %d and %d", e.Start, e.End)
}

// Allocator hands out TCP ports from [start, end). Ports it has handed out
// stay reserved until Release, so concurrent callers never receive the same
// port even though the probe listener is closed before the caller's child
// process binds it. Freeness against programs outside this allocator is only
// checked at probe time.
type Allocator struct {
	mu       sync.Mutex
	start    int
	end      int
	reserved map[int]bool
}

// NewAllocator builds an allocator over [start, end). End is exclusive.
func NewAllocator(start, end int) (*Allocator, error) {
	if start <= 0 || end <= start {
		return nil, fmt.Errorf("invalid port range: start %d, end %d", start, end)
	}
	return &Allocator{start: start, end: end, reserved: make(map[int]bool)}, nil
}

// Allocate scans ascending from the start of the range and reserves the first
// port that is not already reserved and accepts a loopback bind.
func (a *Allocator) Allocate() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for port := a.start; port < a.end; port++ {
		if a.reserved[port] {
			continue
		}
		if !probe(port) {
			continue
		}
		a.reserved[port] = true
		return port, nil
	}
	return 0, &NoFreePortsError{Start: a.start, End: a.end}
}

// Release returns a port to the pool. Ports outside the reserved set are
// ignored.
func (a *Allocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.reserved, port)
}

// Reserved reports whether the allocator currently holds the port.
func (a *Allocator) Reserved(port int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserved[port]
}

// Range returns the allocator's scan range. End is exclusive.
func (a *Allocator) Range() (start, end int) { return a.start, a.end }

func probe(port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// FindFree probes ports ascending in [start, end) and returns the first one
// free on loopback. It reserves nothing.
func FindFree(start, end int) (int, error) {
	for port := start; port < end; port++ {
		if probe(port) {
			return port, nil
		}
	}
	return 0, &NoFreePortsError{Start: start, End: end}
}
