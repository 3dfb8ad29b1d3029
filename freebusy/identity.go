package freebusy

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/mo"

	"github.com/chronos-cal/chronos/calendar"
)

// ReplyCode is the outcome class reported by the identity-resolution service
// for one address.
type ReplyCode int

const (
	ReplyUnknown ReplyCode = iota
	ReplyAccept
	ReplyDenied
)

// ResolvedIdentity pairs a contact address with its resolution outcome. Only
// ReplyAccept entries with positive tenant and user ids are usable.
type ResolvedIdentity struct {
	Address  string
	TenantID int
	UserID   int
	Code     ReplyCode
}

// IdentityResolutionService maps external contact addresses to internal
// tenant/user identities. Implementations answer with exactly one result per
// requested address, in any order.
type IdentityResolutionService interface {
	ResolveBatch(ctx context.Context, addresses []string) ([]ResolvedIdentity, error)
}

// IdentityResolver batch-resolves external attendee addresses and groups the
// outcomes by tenant. The resolution service is optional; without one every
// lookup degrades to an empty result.
type IdentityResolver struct {
	service mo.Option[IdentityResolutionService]
}

// NewIdentityResolver creates an IdentityResolver over the given service.
func NewIdentityResolver(service mo.Option[IdentityResolutionService]) *IdentityResolver {
	return &IdentityResolver{service: service}
}

// Resolve maps the given address-keyed attendees to internal identities and
// groups them by tenant. Within each tenant the inner map associates the
// resolved attendee with the originally supplied one, so callers can map
// results back. Unresolvable addresses are dropped silently; a result count
// differing from the request fails with ErrProtocolMismatch.
func (r *IdentityResolver) Resolve(ctx context.Context, byAddress map[string]calendar.Attendee) (map[int]map[calendar.Attendee]calendar.Attendee, error) {
	grouped := make(map[int]map[calendar.Attendee]calendar.Attendee)
	service, ok := r.service.Get()
	if !ok || len(byAddress) == 0 {
		return grouped, nil
	}
	addresses := make([]string, 0, len(byAddress))
	for address := range byAddress {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	results, err := service.ResolveBatch(ctx, addresses)
	if err != nil {
		return nil, fmt.Errorf("resolve %d addresses: %w", len(addresses), err)
	}
	if len(results) != len(addresses) {
		return nil, fmt.Errorf("%w: sent %d, received %d", ErrProtocolMismatch, len(addresses), len(results))
	}
	for _, result := range results {
		if result.Code != ReplyAccept || result.TenantID <= 0 || result.UserID <= 0 {
			continue
		}
		original, ok := byAddress[result.Address]
		if !ok {
			continue
		}
		// Cross-tenant resolution always yields an individual user bound to
		// the foreign tenant.
		resolved := original
		resolved.Entity = result.UserID
		resolved.CUType = calendar.UserIndividual
		resolved.Internal = true
		perTenant := grouped[result.TenantID]
		if perTenant == nil {
			perTenant = make(map[calendar.Attendee]calendar.Attendee)
			grouped[result.TenantID] = perTenant
		}
		perTenant[resolved] = original
	}
	return grouped, nil
}
