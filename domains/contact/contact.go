package contact

import (
	"context"
	"errors"
	"time"
)

// ErrAlreadyExists is returned by Create when the phone number is taken.
var ErrAlreadyExists = errors.New("contact already exists")

type Contact struct {
	ID            string    `json:"id"`
	PhoneNumber   string    `json:"phone_number"`
	Name          string    `json:"name"`
	ProfilePicURL string    `json:"profile_pic_url,omitempty"`
	BypassBots    bool      `json:"bypass_bots"`
	CreatedAt     time.Time `json:"created_at"`
}

type IContactRepository interface {
	// FindByPhone returns (nil, nil) when no contact has that number.
	FindByPhone(ctx context.Context, phone string) (*Contact, error)
	Create(ctx context.Context, c *Contact) error
}
