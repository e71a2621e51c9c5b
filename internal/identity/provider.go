// Package identity declares the external user-identity and contact-relation
// collaborator. The communication core consumes this contract; it never owns
// or mutates identity data.
package identity

import (
	"context"

	"eldercare-comm/internal/domain"
)

// Provider resolves user ids to profile data and exposes the friend/contact
// relation. Implementations are expected to surface
// repository.ErrContactNotFound for unknown ids.
type Provider interface {
	// FindByID resolves a single user id to its contact profile.
	FindByID(ctx context.Context, id uint) (*domain.Contact, error)

	// ContactsOf lists the contacts of the given user.
	ContactsOf(ctx context.Context, userID uint) ([]domain.Contact, error)
}
