package cache

import (
	"context"

	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/contact"
)

// IEntityCache is a best-effort read-through cache in front of the contact and
// connection repositories. Only repository errors are returned; cache failures
// degrade to a miss.
type IEntityCache interface {
	GetCachedContact(ctx context.Context, phone string) (*contact.Contact, error)
	GetCachedConnection(ctx context.Context, id string) (*connection.Projection, error)
	// GetCachedConnectionByToken also fills the by-ID entry.
	GetCachedConnectionByToken(ctx context.Context, token string) (*connection.Projection, error)
	GetCachedConnectionByCloudPhoneID(ctx context.Context, phoneNumberID string) (*connection.Projection, error)

	UpdateContactCache(ctx context.Context, c contact.Contact)
	InvalidateContactCache(ctx context.Context, phone string)
	InvalidateConnectionCache(ctx context.Context, id, token string)
}
