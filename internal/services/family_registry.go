package services

import (
	"context"
	"fmt"

	"famledger/internal/amqp"
	"famledger/internal/core"
	"famledger/internal/log"
	"famledger/internal/store"
)

// RegistryOptions selects the authorization behaviour of the registry.
type RegistryOptions struct {
	// EnforceOwnership restricts update and delete to the principal that
	// created the family.
	EnforceOwnership bool
}

// FamilyRegistry stores Family records keyed by id.
type FamilyRegistry struct {
	rt       *Runtime
	families store.Map[core.Family]
	opts     RegistryOptions
}

func NewFamilyRegistry(rt *Runtime, families store.Map[core.Family], opts RegistryOptions) *FamilyRegistry {
	return &FamilyRegistry{rt: rt, families: families, opts: opts}
}

// ListFamilies returns every family in store key order.
func (r *FamilyRegistry) ListFamilies(ctx context.Context) (out []core.Family, err error) {
	r.rt.mu.Lock()
	defer r.rt.mu.Unlock()
	defer func() { r.rt.observe("getFamilies", err) }()

	families, err := r.families.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	for i := range families {
		families[i] = families[i].Clone()
	}
	return families, nil
}

// GetFamily returns the family with the given id or core.ErrNotFound.
func (r *FamilyRegistry) GetFamily(ctx context.Context, id string) (f core.Family, err error) {
	r.rt.mu.Lock()
	defer r.rt.mu.Unlock()
	defer func() { r.rt.observe("getFamily", err) }()

	f, err = r.lookup(ctx, id)
	if err != nil {
		return core.Family{}, fmt.Errorf("get family: %w", err)
	}
	return f.Clone(), nil
}

// lookup must be called with rt.mu held.
func (r *FamilyRegistry) lookup(ctx context.Context, id string) (core.Family, error) {
	f, ok, err := r.families.Get(ctx, id)
	if err != nil {
		return core.Family{}, fmt.Errorf("get family %s: %w", id, err)
	}
	if !ok {
		return core.Family{}, fmt.Errorf("family with id=%s: %w", id, core.ErrNotFound)
	}
	return f, nil
}

// AddFamily stores a new family owned by the calling principal.
func (r *FamilyRegistry) AddFamily(ctx context.Context, payload core.FamilyPayload) (f core.Family, err error) {
	r.rt.mu.Lock()
	defer r.rt.mu.Unlock()
	defer func() { r.rt.observe("addFamily", err) }()

	payload.Normalize()
	f = core.Family{
		ID:        r.rt.newID(),
		Name:      payload.Name,
		Members:   append([]string{}, payload.Members...),
		Address:   payload.Address,
		CreatedBy: core.PrincipalFromContext(ctx),
		CreatedAt: r.rt.now(),
	}
	if err := r.families.Insert(ctx, f.ID, f); err != nil {
		return core.Family{}, fmt.Errorf("add family %s: %w", f.ID, err)
	}

	logger(ctx, log.ComponentRegistry).InfoContext(ctx, "Family created",
		log.FieldID, f.ID, log.FieldPrincipal, f.CreatedBy)
	r.rt.publish(ctx, amqp.FamilyCreated, f.ID, f.ID)
	return f.Clone(), nil
}

// UpdateFamily replaces name, members and address. The caller must own the
// family when ownership is enforced; on refusal the record is untouched.
func (r *FamilyRegistry) UpdateFamily(ctx context.Context, id string, payload core.FamilyPayload) (f core.Family, err error) {
	r.rt.mu.Lock()
	defer r.rt.mu.Unlock()
	defer func() { r.rt.observe("updateFamily", err) }()

	f, err = r.lookup(ctx, id)
	if err != nil {
		return core.Family{}, fmt.Errorf("update family: %w", err)
	}
	if err := r.authorize(ctx, f); err != nil {
		return core.Family{}, fmt.Errorf("update family %s: %w", id, err)
	}

	payload.Normalize()
	now := r.rt.now()
	f.Name = payload.Name
	f.Members = append([]string{}, payload.Members...)
	f.Address = payload.Address
	f.UpdatedAt = &now
	if err := r.families.Insert(ctx, f.ID, f); err != nil {
		return core.Family{}, fmt.Errorf("update family %s: %w", id, err)
	}

	logger(ctx, log.ComponentRegistry).InfoContext(ctx, "Family updated", log.FieldID, f.ID)
	r.rt.publish(ctx, amqp.FamilyUpdated, f.ID, f.ID)
	return f.Clone(), nil
}

// DeleteFamily removes the family and returns it. Expenses that reference the
// family are kept.
func (r *FamilyRegistry) DeleteFamily(ctx context.Context, id string) (f core.Family, err error) {
	r.rt.mu.Lock()
	defer r.rt.mu.Unlock()
	defer func() { r.rt.observe("deleteFamily", err) }()

	f, err = r.lookup(ctx, id)
	if err != nil {
		return core.Family{}, fmt.Errorf("delete family: %w", err)
	}
	if err := r.authorize(ctx, f); err != nil {
		return core.Family{}, fmt.Errorf("delete family %s: %w", id, err)
	}

	removed, ok, err := r.families.Remove(ctx, id)
	if err != nil {
		return core.Family{}, fmt.Errorf("delete family %s: %w", id, err)
	}
	if !ok {
		return core.Family{}, fmt.Errorf("delete family: family with id=%s: %w", id, core.ErrNotFound)
	}

	logger(ctx, log.ComponentRegistry).InfoContext(ctx, "Family deleted", log.FieldID, id)
	r.rt.publish(ctx, amqp.FamilyDeleted, id, id)
	return removed, nil
}

func (r *FamilyRegistry) authorize(ctx context.Context, f core.Family) error {
	if !r.opts.EnforceOwnership {
		return nil
	}
	caller := core.PrincipalFromContext(ctx)
	if caller != f.CreatedBy {
		logger(ctx, log.ComponentRegistry).WarnContext(ctx, "Family mutation refused",
			log.FieldID, f.ID, log.FieldPrincipal, caller)
		return core.ErrPermissionDenied
	}
	return nil
}
