// Package registrar implements the token registration hook.
package registrar

import (
	"context"
	"errors"
	"fmt"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

// StoreRegistrar records the installation's FCM token in a registration.Store.
type StoreRegistrar struct {
	store        registration.Store
	installation urn.URN
}

func NewStoreRegistrar(store registration.Store, installation urn.URN) *StoreRegistrar {
	return &StoreRegistrar{store: store, installation: installation}
}

func (r *StoreRegistrar) RegisterToken(ctx context.Context, token string) error {
	if token == "" {
		return push.ErrEmptyToken
	}
	if err := r.store.RegisterFCM(ctx, r.installation, token); err != nil {
		return fmt.Errorf("failed to store token for %s: %w", r.installation.String(), err)
	}
	return nil
}

// Multi calls every registrar and joins their errors.
type Multi []push.TokenRegistrar

func (m Multi) RegisterToken(ctx context.Context, token string) error {
	var errs []error
	for _, r := range m {
		if err := r.RegisterToken(ctx, token); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
