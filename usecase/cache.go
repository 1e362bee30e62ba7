package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AzielCF/az-wap-ingest/core/config"
	domainCache "github.com/AzielCF/az-wap-ingest/domains/cache"
	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/contact"
	"github.com/AzielCF/az-wap-ingest/infrastructure/kvstore"
	"github.com/sirupsen/logrus"
)

const (
	contactKeyPrefix         = "contact:"
	connectionKeyPrefix      = "connection:"
	connectionTokenKeyPrefix = "connection:token:"
	connectionCloudKeyPrefix = "connection:cloud:"
)

type entityCache struct {
	store         kvstore.Store
	contacts      contact.IContactRepository
	connections   connection.IConnectionRepository
	contactTTL    time.Duration
	connectionTTL time.Duration
}

func NewEntityCache(store kvstore.Store, contacts contact.IContactRepository, connections connection.IConnectionRepository, cfg config.CacheConfig) domainCache.IEntityCache {
	return &entityCache{
		store:         store,
		contacts:      contacts,
		connections:   connections,
		contactTTL:    cfg.ContactTTL,
		connectionTTL: cfg.ConnectionTTL,
	}
}

func (c *entityCache) GetCachedContact(ctx context.Context, phone string) (*contact.Contact, error) {
	key := contactKeyPrefix + phone
	if cached, ok := readCache[contact.Contact](ctx, c.store, key); ok {
		return &cached, nil
	}

	found, err := c.contacts.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact %s: %w", phone, err)
	}
	if found == nil {
		return nil, nil
	}
	writeCache(ctx, c.store, key, c.contactTTL, found)
	return found, nil
}

func (c *entityCache) GetCachedConnection(ctx context.Context, id string) (*connection.Projection, error) {
	key := connectionKeyPrefix + id
	if cached, ok := readCache[connection.Projection](ctx, c.store, key); ok {
		return &cached, nil
	}

	found, err := c.connections.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection %s: %w", id, err)
	}
	return c.storeConnection(ctx, found, key), nil
}

func (c *entityCache) GetCachedConnectionByToken(ctx context.Context, token string) (*connection.Projection, error) {
	key := connectionTokenKeyPrefix + hashToken(token)
	if cached, ok := readCache[connection.Projection](ctx, c.store, key); ok {
		return &cached, nil
	}

	found, err := c.connections.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection by token: %w", err)
	}
	return c.storeConnection(ctx, found, key), nil
}

func (c *entityCache) GetCachedConnectionByCloudPhoneID(ctx context.Context, phoneNumberID string) (*connection.Projection, error) {
	key := connectionCloudKeyPrefix + phoneNumberID
	if cached, ok := readCache[connection.Projection](ctx, c.store, key); ok {
		return &cached, nil
	}

	found, err := c.connections.FindByCloudPhoneNumberID(ctx, phoneNumberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection by phone number id %s: %w", phoneNumberID, err)
	}
	return c.storeConnection(ctx, found, key), nil
}

// storeConnection caches the projection under lookupKey and, when that is an
// alias, under the by-ID key as well.
func (c *entityCache) storeConnection(ctx context.Context, found *connection.Connection, lookupKey string) *connection.Projection {
	if found == nil {
		return nil
	}
	p := found.Projection()
	writeCache(ctx, c.store, lookupKey, c.connectionTTL, p)
	if idKey := connectionKeyPrefix + p.ID; idKey != lookupKey {
		writeCache(ctx, c.store, idKey, c.connectionTTL, p)
	}
	return &p
}

func (c *entityCache) UpdateContactCache(ctx context.Context, ct contact.Contact) {
	writeCache(ctx, c.store, contactKeyPrefix+ct.PhoneNumber, c.contactTTL, ct)
}

func (c *entityCache) InvalidateContactCache(ctx context.Context, phone string) {
	key := contactKeyPrefix + phone
	if err := c.store.Del(ctx, key); err != nil {
		ignoreCacheError("del", key, err)
	}
}

// InvalidateConnectionCache drops every alias of the connection it can name.
// The Cloud API alias is found through the by-ID entry, if that is cached.
func (c *entityCache) InvalidateConnectionCache(ctx context.Context, id, token string) {
	keys := []string{connectionKeyPrefix + id}
	if cached, ok := readCache[connection.Projection](ctx, c.store, keys[0]); ok && cached.CloudAPIPhoneNumberID != "" {
		keys = append(keys, connectionCloudKeyPrefix+cached.CloudAPIPhoneNumberID)
	}
	if token != "" {
		keys = append(keys, connectionTokenKeyPrefix+hashToken(token))
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		ignoreCacheError("del", keys[0], err)
	}
}

// readCache returns the decoded entry. Store errors and corrupt entries count
// as a miss.
func readCache[T any](ctx context.Context, store kvstore.Store, key string) (T, bool) {
	var v T
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		ignoreCacheError("get", key, err)
		return v, false
	}
	if !ok {
		return v, false
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		ignoreCacheError("decode", key, err)
		return v, false
	}
	return v, true
}

func writeCache(ctx context.Context, store kvstore.Store, key string, ttl time.Duration, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ignoreCacheError("encode", key, err)
		return
	}
	if err := store.SetEx(ctx, key, ttl, string(raw)); err != nil {
		ignoreCacheError("set", key, err)
	}
}

// ignoreCacheError is the single place where cache failures are dropped. The
// repositories stay authoritative, so a failed cache operation is never
// returned to the caller.
func ignoreCacheError(op, key string, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"op":  op,
		"key": key,
	}).Debug("[CACHE] Ignoring cache error")
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
