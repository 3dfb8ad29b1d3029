package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	storage    CalendarStorage
	acquireErr error
	releaseErr error
	acquired   int
	released   int
	lastTenant int
}

func (p *stubProvider) AcquireStorage(_ context.Context, tenantID int) (CalendarStorage, ReleaseFunc, error) {
	p.lastTenant = tenantID
	if p.acquireErr != nil {
		return nil, nil, p.acquireErr
	}
	p.acquired++
	return p.storage, func() error {
		p.released++
		return p.releaseErr
	}, nil
}

func TestWithTenantStorageReleasesHandle(t *testing.T) {
	provider := &stubProvider{storage: new(MockStorage)}

	var seen CalendarStorage
	err := WithTenantStorage(context.Background(), provider, 7, func(st CalendarStorage) error {
		seen = st
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, provider.storage, seen)
	assert.Equal(t, 7, provider.lastTenant)
	assert.Equal(t, 1, provider.released)
}

func TestWithTenantStorageAcquireFailure(t *testing.T) {
	provider := &stubProvider{acquireErr: ErrStorageUnavailable}

	err := WithTenantStorage(context.Background(), provider, 7, func(CalendarStorage) error {
		t.Fatal("fn must not run when acquisition fails")
		return nil
	})
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Zero(t, provider.released)
}

func TestWithTenantStorageReleasesOnFnError(t *testing.T) {
	provider := &stubProvider{storage: new(MockStorage), releaseErr: errors.New("release failed")}
	fnErr := errors.New("query failed")

	err := WithTenantStorage(context.Background(), provider, 7, func(CalendarStorage) error {
		return fnErr
	})
	// The handle is released, but fn's error wins over the release error.
	assert.ErrorIs(t, err, fnErr)
	assert.Equal(t, 1, provider.released)
}

func TestWithTenantStorageSurfacesReleaseError(t *testing.T) {
	releaseErr := errors.New("release failed")
	provider := &stubProvider{storage: new(MockStorage), releaseErr: releaseErr}

	err := WithTenantStorage(context.Background(), provider, 7, func(CalendarStorage) error {
		return nil
	})
	assert.ErrorIs(t, err, releaseErr)
}
