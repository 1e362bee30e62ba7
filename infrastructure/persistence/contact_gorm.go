package persistence

import (
	"context"
	"errors"

	"github.com/AzielCF/az-wap-ingest/domains/contact"
	"gorm.io/gorm"
)

type ContactGormRepository struct {
	db *gorm.DB
}

func NewContactGormRepository(db *gorm.DB) *ContactGormRepository {
	return &ContactGormRepository{db: db}
}

func (r *ContactGormRepository) FindByPhone(ctx context.Context, phone string) (*contact.Contact, error) {
	var m contactModel
	if err := r.db.WithContext(ctx).First(&m, "phone_number = ?", phone).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	c := fromContactModel(m)
	return &c, nil
}

func (r *ContactGormRepository) Create(ctx context.Context, c *contact.Contact) error {
	m := toContactModel(*c)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return contact.ErrAlreadyExists
		}
		return err
	}
	c.CreatedAt = m.CreatedAt
	return nil
}

func toContactModel(c contact.Contact) contactModel {
	return contactModel{
		ID:            c.ID,
		PhoneNumber:   c.PhoneNumber,
		Name:          c.Name,
		ProfilePicURL: nullable(c.ProfilePicURL),
		BypassBots:    c.BypassBots,
		CreatedAt:     c.CreatedAt,
	}
}

func fromContactModel(m contactModel) contact.Contact {
	return contact.Contact{
		ID:            m.ID,
		PhoneNumber:   m.PhoneNumber,
		Name:          m.Name,
		ProfilePicURL: deref(m.ProfilePicURL),
		BypassBots:    m.BypassBots,
		CreatedAt:     m.CreatedAt,
	}
}
