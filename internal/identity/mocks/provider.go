// Package mocks contains a testify mock for the identity provider contract.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"eldercare-comm/internal/domain"
)

// Provider is a mock of identity.Provider.
type Provider struct {
	mock.Mock
}

func (m *Provider) FindByID(ctx context.Context, id uint) (*domain.Contact, error) {
	args := m.Called(ctx, id)
	var contact *domain.Contact
	if args.Get(0) != nil {
		contact = args.Get(0).(*domain.Contact)
	}
	return contact, args.Error(1)
}

func (m *Provider) ContactsOf(ctx context.Context, userID uint) ([]domain.Contact, error) {
	args := m.Called(ctx, userID)
	var contacts []domain.Contact
	if args.Get(0) != nil {
		contacts = args.Get(0).([]domain.Contact)
	}
	return contacts, args.Error(1)
}
