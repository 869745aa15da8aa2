// Package memory is a process-local registration store for single-host
// deployments and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

type Store struct {
	mu   sync.RWMutex
	regs map[string]*registration.Registration
}

var _ registration.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{regs: make(map[string]*registration.Registration)}
}

func (s *Store) RegisterFCM(_ context.Context, installation urn.URN, token string) error {
	s.update(installation, func(r *registration.Registration) {
		if !slices.Contains(r.FCMTokens, token) {
			r.FCMTokens = append(r.FCMTokens, token)
		}
	})
	return nil
}

func (s *Store) RegisterAPNS(_ context.Context, installation urn.URN, token string) error {
	s.update(installation, func(r *registration.Registration) {
		if !slices.Contains(r.APNSTokens, token) {
			r.APNSTokens = append(r.APNSTokens, token)
		}
	})
	return nil
}

// RegisterWeb replaces any subscription with the same endpoint.
func (s *Store) RegisterWeb(_ context.Context, installation urn.URN, sub registration.WebSubscription) error {
	s.update(installation, func(r *registration.Registration) {
		r.WebSubscriptions = slices.DeleteFunc(r.WebSubscriptions, func(w registration.WebSubscription) bool {
			return w.Endpoint == sub.Endpoint
		})
		r.WebSubscriptions = append(r.WebSubscriptions, sub)
	})
	return nil
}

func (s *Store) UnregisterFCM(_ context.Context, installation urn.URN, token string) error {
	s.update(installation, func(r *registration.Registration) {
		r.FCMTokens = slices.DeleteFunc(r.FCMTokens, func(t string) bool { return t == token })
	})
	return nil
}

func (s *Store) UnregisterAPNS(_ context.Context, installation urn.URN, token string) error {
	s.update(installation, func(r *registration.Registration) {
		r.APNSTokens = slices.DeleteFunc(r.APNSTokens, func(t string) bool { return t == token })
	})
	return nil
}

func (s *Store) UnregisterWeb(_ context.Context, installation urn.URN, endpoint string) error {
	s.update(installation, func(r *registration.Registration) {
		r.WebSubscriptions = slices.DeleteFunc(r.WebSubscriptions, func(w registration.WebSubscription) bool {
			return w.Endpoint == endpoint
		})
	})
	return nil
}

// Fetch returns a copy; an unknown installation yields an empty registration.
func (s *Store) Fetch(_ context.Context, installation urn.URN) (*registration.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &registration.Registration{Installation: installation}
	if r, ok := s.regs[installation.String()]; ok {
		out.FCMTokens = slices.Clone(r.FCMTokens)
		out.APNSTokens = slices.Clone(r.APNSTokens)
		out.WebSubscriptions = slices.Clone(r.WebSubscriptions)
	}
	return out, nil
}

func (s *Store) update(installation urn.URN, fn func(r *registration.Registration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := installation.String()
	r, ok := s.regs[key]
	if !ok {
		r = &registration.Registration{Installation: installation}
		s.regs[key] = r
	}
	fn(r)
}
