package usecase

import (
	"context"

	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/contact"
	"github.com/AzielCF/az-wap-ingest/domains/message"
	"github.com/AzielCF/az-wap-ingest/domains/session"
	"github.com/AzielCF/az-wap-ingest/infrastructure/eventbus"
	"github.com/stretchr/testify/mock"
)

type MockContactRepo struct {
	mock.Mock
}

func (m *MockContactRepo) FindByPhone(ctx context.Context, phone string) (*contact.Contact, error) {
	args := m.Called(ctx, phone)
	c, _ := args.Get(0).(*contact.Contact)
	return c, args.Error(1)
}

func (m *MockContactRepo) Create(ctx context.Context, c *contact.Contact) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

type MockConnectionRepo struct {
	mock.Mock
}

func (m *MockConnectionRepo) FindByID(ctx context.Context, id string) (*connection.Connection, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*connection.Connection)
	return c, args.Error(1)
}

func (m *MockConnectionRepo) FindByToken(ctx context.Context, token string) (*connection.Connection, error) {
	args := m.Called(ctx, token)
	c, _ := args.Get(0).(*connection.Connection)
	return c, args.Error(1)
}

func (m *MockConnectionRepo) FindByCloudPhoneNumberID(ctx context.Context, id string) (*connection.Connection, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*connection.Connection)
	return c, args.Error(1)
}

func (m *MockConnectionRepo) UpdateStatus(ctx context.Context, id string, update connection.StatusUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *message.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) UpdateStatusByWaMessageID(ctx context.Context, id string, status message.Status) (int64, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepo) ExistsByWaMessageID(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockSessionManager struct {
	mock.Mock
}

func (m *MockSessionManager) GetOrCreateSession(ctx context.Context, req session.GetOrCreateRequest) (session.Session, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(session.Session), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, env eventbus.Envelope) error {
	args := m.Called(ctx, routingKey, env)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return nil
}
