// Package netinfo resolves the panel's public and local IP addresses.
// Lookups are user-triggered and repeatable, so each slot is protected by a
// sequence guard: a slow earlier lookup that resolves after a newer one was
// issued discards its result instead of clobbering it. The cached values
// live here, not in any view, so they survive page navigation.
package netinfo

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"kestrel/internal/seq"
)

const (
	publicIPURL   = "https://api.ipify.org?format=json"
	lookupTimeout = 5 * time.Second
)

// Info is the current lookup state of one IP slot.
type Info struct {
	Value   string
	Pending bool
	Err     error
}

// Service performs IP lookups and caches the latest results.
type Service struct {
	client *http.Client

	mu        sync.Mutex
	publicSeq seq.Guard
	localSeq  seq.Guard
	public    Info
	local     Info
	onChange  func()
}

// NewService creates a Service. onChange, when non-nil, fires after any slot
// updates.
func NewService(onChange func()) *Service {
	return &Service{
		client:   &http.Client{Timeout: lookupTimeout},
		onChange: onChange,
	}
}

// SetOnChange replaces the change observer.
func (s *Service) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Public returns the public IP slot.
func (s *Service) Public() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.public
}

// Local returns the local IP slot.
func (s *Service) Local() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// RefreshPublic starts a public IP lookup. Safe to call repeatedly; only the
// newest outstanding lookup's result is kept.
func (s *Service) RefreshPublic(ctx context.Context) {
	s.mu.Lock()
	token := s.publicSeq.Issue()
	s.public.Pending = true
	s.mu.Unlock()
	s.changed()

	go func() {
		value, err := s.fetchPublicIP(ctx)

		s.mu.Lock()
		if !s.publicSeq.Current(token) {
			// A newer lookup superseded this one; drop the result.
			s.mu.Unlock()
			return
		}
		s.public = Info{Value: value, Err: err}
		s.mu.Unlock()
		s.changed()
	}()
}

// RefreshLocal starts a local IP lookup.
func (s *Service) RefreshLocal(ctx context.Context) {
	s.mu.Lock()
	token := s.localSeq.Issue()
	s.local.Pending = true
	s.mu.Unlock()
	s.changed()

	go func() {
		value, err := localIP()

		s.mu.Lock()
		if !s.localSeq.Current(token) {
			s.mu.Unlock()
			return
		}
		s.local = Info{Value: value, Err: err}
		s.mu.Unlock()
		s.changed()
	}()
}

func (s *Service) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Service) fetchPublicIP(ctx context.Context) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", publicIPURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.IP, nil
}

// localIP finds the preferred outbound address without sending packets.
func localIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
