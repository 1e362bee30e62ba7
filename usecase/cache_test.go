package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AzielCF/az-wap-ingest/core/config"
	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/contact"
	"github.com/AzielCF/az-wap-ingest/infrastructure/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testCacheConfig = config.CacheConfig{ContactTTL: 5 * time.Minute, ConnectionTTL: 10 * time.Minute}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("valkey down")
}
func (brokenStore) SetEx(context.Context, string, time.Duration, string) error {
	return errors.New("valkey down")
}
func (brokenStore) Del(context.Context, ...string) error { return errors.New("valkey down") }

func newTestCache(store kvstore.Store) (*entityCache, *MockContactRepo, *MockConnectionRepo) {
	contacts := &MockContactRepo{}
	connections := &MockConnectionRepo{}
	return NewEntityCache(store, contacts, connections, testCacheConfig).(*entityCache), contacts, connections
}

func TestEntityCache_UpdateThenGetSkipsRepository(t *testing.T) {
	cache, contacts, _ := newTestCache(kvstore.NewMemoryStore())
	ctx := context.Background()

	c := contact.Contact{
		ID:          "c-1",
		PhoneNumber: "5511999",
		Name:        "Maria",
		BypassBots:  true,
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	cache.UpdateContactCache(ctx, c)

	got, err := cache.GetCachedContact(ctx, "5511999")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c, *got)
	contacts.AssertNotCalled(t, "FindByPhone", mock.Anything, mock.Anything)
}

func TestEntityCache_ContactReadThrough(t *testing.T) {
	cache, contacts, _ := newTestCache(kvstore.NewMemoryStore())
	ctx := context.Background()

	contacts.On("FindByPhone", mock.Anything, "5511999").
		Return(&contact.Contact{ID: "c-1", PhoneNumber: "5511999", Name: "Ana"}, nil).Once()

	first, err := cache.GetCachedContact(ctx, "5511999")
	require.NoError(t, err)
	second, err := cache.GetCachedContact(ctx, "5511999")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	contacts.AssertNumberOfCalls(t, "FindByPhone", 1)
}

func TestEntityCache_MissingContactIsNotCached(t *testing.T) {
	store := kvstore.NewMemoryStore()
	cache, contacts, _ := newTestCache(store)

	contacts.On("FindByPhone", mock.Anything, "000").Return(nil, nil)

	got, err := cache.GetCachedContact(context.Background(), "000")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, store.Len())
}

func TestEntityCache_CorruptEntryFallsBackToRepository(t *testing.T) {
	store := kvstore.NewMemoryStore()
	cache, contacts, _ := newTestCache(store)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "contact:5511999", time.Minute, "{not-json"))
	contacts.On("FindByPhone", mock.Anything, "5511999").
		Return(&contact.Contact{ID: "c-1", PhoneNumber: "5511999"}, nil).Once()

	got, err := cache.GetCachedContact(ctx, "5511999")
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.ID)

	_, err = cache.GetCachedContact(ctx, "5511999")
	require.NoError(t, err)
	contacts.AssertNumberOfCalls(t, "FindByPhone", 1)
}

func TestEntityCache_StoreFailuresAreSwallowed(t *testing.T) {
	cache, contacts, connections := newTestCache(brokenStore{})
	ctx := context.Background()

	contacts.On("FindByPhone", mock.Anything, "5511999").Return(&contact.Contact{ID: "c-1"}, nil)
	connections.On("FindByID", mock.Anything, "conn-1").Return(&connection.Connection{ID: "conn-1"}, nil)

	got, err := cache.GetCachedContact(ctx, "5511999")
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.ID)

	conn, err := cache.GetCachedConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "conn-1", conn.ID)

	assert.NotPanics(t, func() {
		cache.UpdateContactCache(ctx, contact.Contact{PhoneNumber: "1"})
		cache.InvalidateContactCache(ctx, "1")
		cache.InvalidateConnectionCache(ctx, "conn-1", "tok")
	})
}

func TestEntityCache_RepositoryErrorIsReturned(t *testing.T) {
	cache, contacts, _ := newTestCache(kvstore.NewMemoryStore())
	dbErr := errors.New("db down")
	contacts.On("FindByPhone", mock.Anything, "1").Return(nil, dbErr)

	_, err := cache.GetCachedContact(context.Background(), "1")
	assert.ErrorIs(t, err, dbErr)
}

func TestEntityCache_ByTokenAlsoFillsByID(t *testing.T) {
	store := kvstore.NewMemoryStore()
	cache, _, connections := newTestCache(store)
	ctx := context.Background()

	connections.On("FindByToken", mock.Anything, "secret-token").Return(&connection.Connection{
		ID:             "conn-1",
		OrganizationID: "org-1",
		ProviderToken:  "secret-token",
		Status:         connection.StatusConnected,
	}, nil).Once()

	byToken, err := cache.GetCachedConnectionByToken(ctx, "secret-token")
	require.NoError(t, err)
	assert.Equal(t, "org-1", byToken.OrganizationID)

	byID, err := cache.GetCachedConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, byToken, byID)
	connections.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)

	raw, ok, _ := store.Get(ctx, "connection:token:"+hashToken("secret-token"))
	require.True(t, ok)
	assert.NotContains(t, raw, "secret-token")
	_, ok, _ = store.Get(ctx, "connection:token:secret-token")
	assert.False(t, ok)
}

func TestEntityCache_InvalidateConnection(t *testing.T) {
	store := kvstore.NewMemoryStore()
	cache, _, connections := newTestCache(store)
	ctx := context.Background()

	conn := &connection.Connection{ID: "conn-1", CloudAPIPhoneNumberID: "PNID"}
	connections.On("FindByCloudPhoneNumberID", mock.Anything, "PNID").Return(conn, nil)
	connections.On("FindByToken", mock.Anything, "tok").Return(conn, nil)
	connections.On("FindByID", mock.Anything, "conn-1").Return(conn, nil)

	_, err := cache.GetCachedConnectionByCloudPhoneID(ctx, "PNID")
	require.NoError(t, err)
	_, err = cache.GetCachedConnectionByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	cache.InvalidateConnectionCache(ctx, "conn-1", "tok")
	assert.Equal(t, 0, store.Len())

	_, err = cache.GetCachedConnection(ctx, "conn-1")
	require.NoError(t, err)
	connections.AssertNumberOfCalls(t, "FindByID", 1)
}

func TestEntityCache_InvalidateContact(t *testing.T) {
	cache, contacts, _ := newTestCache(kvstore.NewMemoryStore())
	ctx := context.Background()
	contacts.On("FindByPhone", mock.Anything, "1").Return(&contact.Contact{ID: "c-1", PhoneNumber: "1"}, nil)

	cache.UpdateContactCache(ctx, contact.Contact{ID: "c-1", PhoneNumber: "1"})
	cache.InvalidateContactCache(ctx, "1")

	_, err := cache.GetCachedContact(ctx, "1")
	require.NoError(t, err)
	contacts.AssertNumberOfCalls(t, "FindByPhone", 1)
}
