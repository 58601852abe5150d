package auth

import "context"

// OwnerPredicate restricts a query to rows owned by one account.
// Repositories append Clause to their WHERE and bind Args.
type OwnerPredicate struct {
	OwnerID string
}

// Clause returns the SQL condition for the predicate.
func (p OwnerPredicate) Clause() string {
	return "owner_id = ?"
}

// Args returns the bind arguments for Clause.
func (p OwnerPredicate) Args() []any {
	return []any{p.OwnerID}
}

// Filter is the authorization gate applied to every protected operation.
//
// A call moves Unauthenticated -> Identified via Identify, then each
// operation either receives an ownership predicate (Permitted) or an
// error (Denied). Decisions use only the verified identity and the
// target, so Filter holds no state.
type Filter struct{}

// NewFilter returns the authorization filter.
func NewFilter() Filter {
	return Filter{}
}

// Identify returns the identity attached to ctx by the session middleware.
func (Filter) Identify(ctx context.Context) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// Owned returns the predicate for list, read, update and delete of
// owner-scoped rows.
func (Filter) Owned(id Identity) OwnerPredicate {
	return OwnerPredicate{OwnerID: id.AccountID}
}

// AssignOwner returns the owner for a new row. Any owner the caller
// supplied is ignored.
func (Filter) AssignOwner(id Identity) string {
	return id.AccountID
}

// AuthorizeAccountDelete denies deleting one's own account.
func (Filter) AuthorizeAccountDelete(id Identity, targetID string) error {
	if id.IsZero() {
		return ErrUnauthenticated
	}
	if targetID == id.AccountID {
		return ErrForbidden
	}
	return nil
}

// AccountUpdateTarget returns the only account id may update: its own.
func (Filter) AccountUpdateTarget(id Identity) string {
	return id.AccountID
}
