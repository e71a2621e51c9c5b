package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"eldercare-comm/internal/domain"
	"eldercare-comm/internal/repository"
)

// GormIdentityProvider implements identity.Provider against the
// externally-owned users and contacts tables. The communication core only
// reads these tables; the identity service owns their schema and writes.
type GormIdentityProvider struct {
	db *gorm.DB
}

// NewGormIdentityProvider creates the provider.
func NewGormIdentityProvider(db *gorm.DB) *GormIdentityProvider {
	if db == nil {
		panic("database connection cannot be nil for GormIdentityProvider")
	}
	return &GormIdentityProvider{db: db}
}

// FindByID resolves a user id to its contact profile.
func (p *GormIdentityProvider) FindByID(ctx context.Context, id uint) (*domain.Contact, error) {
	var contact domain.Contact
	err := p.db.WithContext(ctx).
		Table("users").
		Select("id, name, username, phone").
		Where("id = ?", id).
		Take(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrContactNotFound
		}
		return nil, fmt.Errorf("gorm: find user %d: %w", id, err)
	}
	return &contact, nil
}

// ContactsOf lists the contacts of a user through the relation table.
func (p *GormIdentityProvider) ContactsOf(ctx context.Context, userID uint) ([]domain.Contact, error) {
	var contacts []domain.Contact
	err := p.db.WithContext(ctx).
		Table("users").
		Select("users.id, users.name, users.username, users.phone").
		Joins("JOIN contacts ON contacts.contact_id = users.id").
		Where("contacts.user_id = ?", userID).
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: contacts of user %d: %w", userID, err)
	}
	return contacts, nil
}
