package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AzielCF/az-wap-ingest/domains/connection"
	"github.com/AzielCF/az-wap-ingest/domains/contact"
	"github.com/AzielCF/az-wap-ingest/domains/message"
	"github.com/AzielCF/az-wap-ingest/domains/session"
	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	"github.com/AzielCF/az-wap-ingest/infrastructure/eventbus"
	"github.com/AzielCF/az-wap-ingest/infrastructure/kvstore"
	"github.com/AzielCF/az-wap-ingest/infrastructure/lock"
	"github.com/AzielCF/az-wap-ingest/pkg/tracectx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSignature = "\u200b\u200d\u200b"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type processorFixture struct {
	processor   *webhookProcessor
	contacts    *MockContactRepo
	connections *MockConnectionRepo
	messages    *MockMessageRepo
	sessions    *MockSessionManager
	publisher   *MockPublisher
	locker      *lock.MemoryLocker
}

func newProcessorFixture() *processorFixture {
	f := &processorFixture{
		contacts:    &MockContactRepo{},
		connections: &MockConnectionRepo{},
		messages:    &MockMessageRepo{},
		sessions:    &MockSessionManager{},
		publisher:   &MockPublisher{},
		locker:      lock.NewMemoryLocker(),
	}
	cache := NewEntityCache(kvstore.NewMemoryStore(), f.contacts, f.connections, testCacheConfig)
	f.processor = NewWebhookProcessor(ProcessorDeps{
		Cache:        cache,
		Contacts:     f.contacts,
		Connections:  f.connections,
		Messages:     f.messages,
		Sessions:     f.sessions,
		Locks:        lock.NewManager(f.locker, time.Second),
		Publisher:    f.publisher,
		BotSignature: testSignature,
		Producer:     "test",
	}).(*webhookProcessor)
	f.processor.now = func() time.Time { return fixedNow }
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

// withKnownParties registers contact 5511999 and connection conn-1 (token tok-1).
func (f *processorFixture) withKnownParties() {
	f.contacts.On("FindByPhone", mock.Anything, "5511999").
		Return(&contact.Contact{ID: "contact-1", PhoneNumber: "5511999", Name: "Ana"}, nil)
	conn := &connection.Connection{ID: "conn-1", OrganizationID: "org-1", ProviderToken: "tok-1", Status: connection.StatusConnected}
	f.connections.On("FindByToken", mock.Anything, "tok-1").Return(conn, nil)
	f.connections.On("FindByID", mock.Anything, "conn-1").Return(conn, nil)
	f.sessions.On("GetOrCreateSession", mock.Anything, session.GetOrCreateRequest{
		ContactID: "contact-1", ConnectionID: "conn-1", OrganizationID: "org-1",
	}).Return(session.Session{ID: "session-1", Status: session.StatusQueued}, nil)
}

func inbound(id string, content webhook.MessageContent) *webhook.NormalizedWebhook {
	return &webhook.NormalizedWebhook{
		Event:         webhook.EventMessageReceived,
		InstanceID:    "inst-1",
		InstanceToken: "tok-1",
		Timestamp:     fixedNow,
		Data: webhook.MessageData{Message: webhook.NormalizedMessage{
			ID:         id,
			From:       "5511999",
			SenderName: "Ana",
			Type:       webhook.MessageTypeText,
			Content:    content,
			Timestamp:  fixedNow.Add(-time.Minute),
		}},
	}
}

func TestProcess_StoresInboundMessage(t *testing.T) {
	f := newProcessorFixture()
	f.withKnownParties()
	f.messages.On("ExistsByWaMessageID", mock.Anything, "abc").Return(false, nil)

	var stored *message.Message
	f.messages.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*message.Message)
	}).Return(nil).Once()

	w := inbound("abc", webhook.MessageContent{Text: "<b>Olá</b><script>alert(1)</script>"})
	res, err := f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderUAZapi, tracectx.New())

	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, "abc", res.MessageID)
	require.NotNil(t, stored)
	assert.Equal(t, "abc", stored.WaMessageID)
	assert.Equal(t, "Olá", stored.Content)
	assert.Equal(t, "text", stored.Type)
	assert.Equal(t, message.DirectionInbound, stored.Direction)
	assert.Equal(t, message.StatusDelivered, stored.Status)
	assert.Equal(t, "session-1", stored.SessionID)
	assert.Equal(t, "conn-1", stored.ConnectionID)
	assert.Equal(t, "contact-1", stored.ContactID)
	assert.Equal(t, fixedNow.Add(-time.Minute), stored.Timestamp)

	f.publisher.AssertCalled(t, "Publish", mock.Anything, "webhook.message.received", mock.Anything)
	assert.False(t, f.locker.IsHeld("lock:msg:abc"))
}

func TestProcess_SanitizesMedia(t *testing.T) {
	f := newProcessorFixture()
	f.withKnownParties()
	f.messages.On("ExistsByWaMessageID", mock.Anything, mock.Anything).Return(false, nil)

	var stored []*message.Message
	f.messages.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = append(stored, args.Get(1).(*message.Message))
	}).Return(nil)

	ctx := context.Background()
	_, err := f.processor.ProcessWebhookEvent(ctx, inbound("m1", webhook.MessageContent{
		MediaURL: "javascript:alert(1)",
		FileName: "../../etc/passwd",
		Caption:  `<img src=x onerror="x">hi`,
	}), webhook.ProviderUAZapi, nil)
	require.NoError(t, err)
	_, err = f.processor.ProcessWebhookEvent(ctx, inbound("m2", webhook.MessageContent{
		MediaURL: "https://cdn.example.com/a.jpg",
	}), webhook.ProviderUAZapi, nil)
	require.NoError(t, err)

	require.Len(t, stored, 2)
	assert.Empty(t, stored[0].MediaURL)
	assert.Equal(t, "______etc_passwd", stored[0].FileName)
	assert.Equal(t, "hi", stored[0].Caption)
	assert.Equal(t, "https://cdn.example.com/a.jpg", stored[1].MediaURL)
}

// Two concurrent deliveries of the same provider id create one message; the
// loser reports the lock contention.
func TestProcess_ConcurrentDuplicateCreatesOnce(t *testing.T) {
	f := newProcessorFixture()
	f.withKnownParties()
	f.messages.On("ExistsByWaMessageID", mock.Anything, "abc").Return(false, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.messages.On("Create", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil)

	ctx := context.Background()
	var (
		wg       sync.WaitGroup
		firstRes webhook.ProcessResult
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstRes, firstErr = f.processor.ProcessWebhookEvent(ctx, inbound("abc", webhook.MessageContent{Text: "hi"}), webhook.ProviderUAZapi, nil)
	}()
	<-entered

	second, err := f.processor.ProcessWebhookEvent(ctx, inbound("abc", webhook.MessageContent{Text: "hi"}), webhook.ProviderUAZapi, nil)
	require.NoError(t, err)
	assert.False(t, second.Processed)
	assert.Equal(t, lock.MessageReasonLocked, second.Reason)

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.True(t, firstRes.Processed)
	f.messages.AssertNumberOfCalls(t, "Create", 1)
}

func TestProcess_PublishesSanitizedMessage(t *testing.T) {
	f := newProcessorFixture()
	f.withKnownParties()
	f.messages.On("ExistsByWaMessageID", mock.Anything, "abc").Return(false, nil)
	f.messages.On("Create", mock.Anything, mock.Anything).Return(nil)

	var env eventbus.Envelope
	capture := &MockPublisher{}
	capture.On("Publish", mock.Anything, "webhook.message.received", mock.Anything).Run(func(args mock.Arguments) {
		env = args.Get(2).(eventbus.Envelope)
	}).Return(nil).Once()
	f.processor.publisher = capture

	w := inbound("abc", webhook.MessageContent{
		Text:     `<img src=x onerror="steal()">hi` + testSignature,
		MediaURL: "javascript:alert(1)",
		FileName: "../../etc/passwd",
		Caption:  "<b>look</b>",
	})
	_, err := f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderUAZapi, nil)
	require.NoError(t, err)
	capture.AssertExpectations(t)

	published, ok := env.Data.(eventbus.EventData).Payload.(webhook.MessageData)
	require.True(t, ok)
	assert.Equal(t, "hi", published.Message.Content.Text)
	assert.Empty(t, published.Message.Content.MediaURL)
	assert.Equal(t, "______etc_passwd", published.Message.Content.FileName)
	assert.Equal(t, "look", published.Message.Content.Caption)

	// The webhook itself is left as received.
	original := w.Data.(webhook.MessageData)
	assert.Equal(t, "javascript:alert(1)", original.Message.Content.MediaURL)
}

func TestProcess_StoresMessageTypedOnPhone(t *testing.T) {
	f := newProcessorFixture()
	f.withKnownParties()
	f.messages.On("ExistsByWaMessageID", mock.Anything, "own-1").Return(false, nil)

	var stored *message.Message
	f.messages.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*message.Message)
	}).Return(nil).Once()

	w := inbound("own-1", webhook.MessageContent{Text: "typed on phone"})
	d := w.Data.(webhook.MessageData)
	d.Message.IsFromMe = true
	d.Message.From = "5511888"
	d.Message.To = "5511999"
	d.Message.SenderName = "Store owner"
	w.Data = d

	res, err := f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderUAZapi, nil)

	require.NoError(t, err)
	assert.True(t, res.Processed)
	require.NotNil(t, stored)
	assert.Equal(t, "contact-1", stored.ContactID)
	assert.Equal(t, message.DirectionOutbound, stored.Direction)
	assert.Equal(t, message.StatusSent, stored.Status)
	assert.Equal(t, "typed on phone", stored.Content)
	f.contacts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcess_MessagesWithoutIDAreAllStored(t *testing.T) {
	f := newProcessorFixture()
	f.withKnownParties()
	f.messages.On("Create", mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	for _, text := range []string{"first", "second"} {
		res, err := f.processor.ProcessWebhookEvent(ctx, inbound("", webhook.MessageContent{Text: text}), webhook.ProviderUAZapi, nil)
		require.NoError(t, err)
		assert.True(t, res.Processed, text)
	}

	f.messages.AssertNumberOfCalls(t, "Create", 2)
	f.messages.AssertNotCalled(t, "ExistsByWaMessageID", mock.Anything, mock.Anything)
}

func TestProcess_SequentialRedeliveryIsIdempotent(t *testing.T) {
	f := newProcessorFixture()
	f.withKnownParties()
	f.messages.On("ExistsByWaMessageID", mock.Anything, "abc").Return(false, nil).Once()
	f.messages.On("ExistsByWaMessageID", mock.Anything, "abc").Return(true, nil)
	f.messages.On("Create", mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	_, err := f.processor.ProcessWebhookEvent(ctx, inbound("abc", webhook.MessageContent{Text: "hi"}), webhook.ProviderUAZapi, nil)
	require.NoError(t, err)
	res, err := f.processor.ProcessWebhookEvent(ctx, inbound("abc", webhook.MessageContent{Text: "hi"}), webhook.ProviderUAZapi, nil)
	require.NoError(t, err)

	assert.False(t, res.Processed)
	assert.Equal(t, ReasonDuplicate, res.Reason)
	f.messages.AssertNumberOfCalls(t, "Create", 1)
}

func TestProcess_LockBackendFailureSkips(t *testing.T) {
	f := newProcessorFixture()
	f.processor.locks = lock.NewManager(failingLocker{}, time.Second)

	res, err := f.processor.ProcessWebhookEvent(context.Background(), inbound("abc", webhook.MessageContent{Text: "hi"}), webhook.ProviderUAZapi, nil)

	require.NoError(t, err)
	assert.False(t, res.Processed)
	assert.Equal(t, lock.MessageReasonError, res.Reason)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_DropsBotEcho(t *testing.T) {
	f := newProcessorFixture()

	res, err := f.processor.ProcessWebhookEvent(context.Background(),
		inbound("abc", webhook.MessageContent{Text: "auto reply" + testSignature}), webhook.ProviderUAZapi, nil)

	require.NoError(t, err)
	assert.False(t, res.Processed)
	assert.Equal(t, ReasonBotEcho, res.Reason)
	f.contacts.AssertNotCalled(t, "FindByPhone", mock.Anything, mock.Anything)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcess_UnknownConnectionAborts(t *testing.T) {
	f := newProcessorFixture()
	f.contacts.On("FindByPhone", mock.Anything, "5511999").Return(&contact.Contact{ID: "contact-1"}, nil)
	f.connections.On("FindByToken", mock.Anything, "tok-1").Return(nil, nil)
	f.connections.On("FindByID", mock.Anything, "inst-1").Return(nil, nil)

	res, err := f.processor.ProcessWebhookEvent(context.Background(), inbound("abc", webhook.MessageContent{Text: "hi"}), webhook.ProviderUAZapi, nil)

	require.NoError(t, err)
	assert.False(t, res.Processed)
	assert.Equal(t, ReasonConnectionNotFound, res.Reason)
	f.sessions.AssertNotCalled(t, "GetOrCreateSession", mock.Anything, mock.Anything)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcess_CreatesContactOnFirstMessage(t *testing.T) {
	f := newProcessorFixture()
	f.contacts.On("FindByPhone", mock.Anything, "5511999").Return(nil, nil).Once()

	var created *contact.Contact
	f.contacts.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*contact.Contact)
	}).Return(nil).Once()
	f.connections.On("FindByToken", mock.Anything, "tok-1").Return(&connection.Connection{ID: "conn-1", OrganizationID: "org-1"}, nil)
	f.sessions.On("GetOrCreateSession", mock.Anything, mock.Anything).Return(session.Session{ID: "session-1"}, nil)
	f.messages.On("ExistsByWaMessageID", mock.Anything, mock.Anything).Return(false, nil)
	f.messages.On("Create", mock.Anything, mock.Anything).Return(nil)

	w := inbound("abc", webhook.MessageContent{Text: "hi"})
	d := w.Data.(webhook.MessageData)
	d.Message.SenderName = "<i>Maria</i>"
	w.Data = d
	_, err := f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderUAZapi, nil)
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "Maria", created.Name)
	assert.Equal(t, "5511999", created.PhoneNumber)

	// The second message finds the contact in the cache.
	_, err = f.processor.ProcessWebhookEvent(context.Background(), inbound("def", webhook.MessageContent{Text: "again"}), webhook.ProviderUAZapi, nil)
	require.NoError(t, err)
	f.contacts.AssertNumberOfCalls(t, "FindByPhone", 1)
	f.contacts.AssertNumberOfCalls(t, "Create", 1)
}

func TestProcess_ContactCreateRaceRereads(t *testing.T) {
	f := newProcessorFixture()
	f.contacts.On("FindByPhone", mock.Anything, "5511999").Return(nil, nil).Once()
	f.contacts.On("Create", mock.Anything, mock.Anything).Return(contact.ErrAlreadyExists)
	f.contacts.On("FindByPhone", mock.Anything, "5511999").Return(&contact.Contact{ID: "winner", PhoneNumber: "5511999"}, nil).Once()
	f.connections.On("FindByToken", mock.Anything, "tok-1").Return(&connection.Connection{ID: "conn-1"}, nil)
	f.sessions.On("GetOrCreateSession", mock.Anything, mock.Anything).Return(session.Session{ID: "session-1"}, nil)
	f.messages.On("ExistsByWaMessageID", mock.Anything, mock.Anything).Return(false, nil)

	var stored *message.Message
	f.messages.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*message.Message)
	}).Return(nil)

	_, err := f.processor.ProcessWebhookEvent(context.Background(), inbound("abc", webhook.MessageContent{Text: "hi"}), webhook.ProviderUAZapi, nil)

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "winner", stored.ContactID)
}

func TestProcess_PersistenceErrorPropagates(t *testing.T) {
	f := newProcessorFixture()
	f.withKnownParties()
	dbErr := errors.New("insert failed")
	f.messages.On("ExistsByWaMessageID", mock.Anything, "abc").Return(false, nil)
	f.messages.On("Create", mock.Anything, mock.Anything).Return(dbErr)

	_, err := f.processor.ProcessWebhookEvent(context.Background(), inbound("abc", webhook.MessageContent{Text: "hi"}), webhook.ProviderUAZapi, nil)

	assert.ErrorIs(t, err, dbErr)
	assert.False(t, f.locker.IsHeld("lock:msg:abc"))
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_MessageSentUpdatesStatus(t *testing.T) {
	f := newProcessorFixture()
	f.messages.On("UpdateStatusByWaMessageID", mock.Anything, "out-1", message.StatusSent).Return(int64(0), nil).Once()

	w := &webhook.NormalizedWebhook{
		Event: webhook.EventMessageSent,
		Data:  webhook.MessageData{Message: webhook.NormalizedMessage{ID: "out-1", IsFromMe: true}},
	}
	res, err := f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderEvolution, nil)

	require.NoError(t, err)
	assert.True(t, res.Processed)
	f.messages.AssertExpectations(t)
}

func TestProcess_MessageUpdated(t *testing.T) {
	t.Run("known status", func(t *testing.T) {
		f := newProcessorFixture()
		f.messages.On("UpdateStatusByWaMessageID", mock.Anything, "WAID", message.StatusRead).Return(int64(1), nil).Once()

		res, err := f.processor.ProcessWebhookEvent(context.Background(), &webhook.NormalizedWebhook{
			Event: webhook.EventMessageUpdated,
			Data:  webhook.StatusData{MessageID: "WAID", Status: message.StatusRead, RawStatus: "READ"},
		}, webhook.ProviderCloudAPI, nil)

		require.NoError(t, err)
		assert.Equal(t, "WAID", res.MessageID)
		f.messages.AssertExpectations(t)
		f.publisher.AssertCalled(t, "Publish", mock.Anything, "webhook.message.updated", mock.Anything)
	})

	t.Run("untracked status is ignored", func(t *testing.T) {
		f := newProcessorFixture()

		_, err := f.processor.ProcessWebhookEvent(context.Background(), &webhook.NormalizedWebhook{
			Event: webhook.EventMessageUpdated,
			Data:  webhook.StatusData{MessageID: "WAID", RawStatus: "PENDING"},
		}, webhook.ProviderEvolution, nil)

		require.NoError(t, err)
		f.messages.AssertNotCalled(t, "UpdateStatusByWaMessageID", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProcess_InstanceEvents(t *testing.T) {
	conn := &connection.Connection{ID: "conn-1", OrganizationID: "org-1", ProviderToken: "tok-1"}

	cases := []struct {
		name     string
		event    webhook.EventKind
		data     webhook.InstanceData
		expected connection.Status
		stamped  bool
	}{
		{"connected", webhook.EventInstanceConnected, webhook.InstanceData{Status: connection.StatusConnected}, connection.StatusConnected, true},
		{"disconnected", webhook.EventInstanceDisconnected, webhook.InstanceData{Status: connection.StatusDisconnected}, connection.StatusDisconnected, false},
		{"connecting", webhook.EventInstanceDisconnected, webhook.InstanceData{Status: connection.StatusConnecting}, connection.StatusConnecting, false},
		{"qr", webhook.EventInstanceQR, webhook.InstanceData{Status: connection.StatusQRCode, QRCode: "2@abc"}, connection.StatusConnecting, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newProcessorFixture()
			f.connections.On("FindByToken", mock.Anything, "tok-1").Return(conn, nil)

			var update connection.StatusUpdate
			f.connections.On("UpdateStatus", mock.Anything, "conn-1", mock.Anything).Run(func(args mock.Arguments) {
				update = args.Get(2).(connection.StatusUpdate)
			}).Return(nil)

			w := &webhook.NormalizedWebhook{Event: tc.event, InstanceID: "inst-1", InstanceToken: "tok-1", Data: tc.data}
			res, err := f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderUAZapi, nil)
			require.NoError(t, err)
			assert.True(t, res.Processed)
			assert.Equal(t, tc.expected, update.Status)
			if tc.stamped {
				require.NotNil(t, update.LastConnected)
				assert.Equal(t, fixedNow, *update.LastConnected)
			} else {
				assert.Nil(t, update.LastConnected)
			}

			// The cache was invalidated, so the next lookup hits the repository again.
			_, err = f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderUAZapi, nil)
			require.NoError(t, err)
			f.connections.AssertNumberOfCalls(t, "FindByToken", 2)
		})
	}
}

func TestProcess_InstanceEventForUnknownConnection(t *testing.T) {
	f := newProcessorFixture()
	f.connections.On("FindByID", mock.Anything, "inst-9").Return(nil, nil)

	res, err := f.processor.ProcessWebhookEvent(context.Background(), &webhook.NormalizedWebhook{
		Event:      webhook.EventInstanceConnected,
		InstanceID: "inst-9",
		Data:       webhook.InstanceData{Status: connection.StatusConnected},
	}, webhook.ProviderEvolution, nil)

	require.NoError(t, err)
	assert.False(t, res.Processed)
	f.connections.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_CloudAPIResolvesByPhoneNumberID(t *testing.T) {
	f := newProcessorFixture()
	f.contacts.On("FindByPhone", mock.Anything, "5511999").Return(&contact.Contact{ID: "contact-1"}, nil)
	f.connections.On("FindByCloudPhoneNumberID", mock.Anything, "PNID").
		Return(&connection.Connection{ID: "conn-cloud", CloudAPIPhoneNumberID: "PNID"}, nil)
	f.sessions.On("GetOrCreateSession", mock.Anything, mock.Anything).Return(session.Session{ID: "s"}, nil)
	f.messages.On("ExistsByWaMessageID", mock.Anything, mock.Anything).Return(false, nil)

	var stored *message.Message
	f.messages.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*message.Message)
	}).Return(nil)

	w := inbound("wamid.1", webhook.MessageContent{Text: "hi"})
	w.InstanceID = "PNID"
	w.InstanceToken = ""
	_, err := f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderCloudAPI, nil)

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "conn-cloud", stored.ConnectionID)
}

func TestProcess_ConnectionHintWins(t *testing.T) {
	f := newProcessorFixture()
	f.contacts.On("FindByPhone", mock.Anything, "5511999").Return(&contact.Contact{ID: "contact-1"}, nil)
	f.connections.On("FindByID", mock.Anything, "conn-route").Return(&connection.Connection{ID: "conn-route"}, nil)
	f.sessions.On("GetOrCreateSession", mock.Anything, mock.Anything).Return(session.Session{ID: "s"}, nil)
	f.messages.On("ExistsByWaMessageID", mock.Anything, mock.Anything).Return(false, nil)
	f.messages.On("Create", mock.Anything, mock.Anything).Return(nil)

	w := inbound("abc", webhook.MessageContent{Text: "hi"})
	w.ConnectionID = "conn-route"
	_, err := f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderUAZapi, nil)

	require.NoError(t, err)
	f.connections.AssertNotCalled(t, "FindByToken", mock.Anything, mock.Anything)
}

func TestProcess_InformationalEvents(t *testing.T) {
	events := []*webhook.NormalizedWebhook{
		{Event: webhook.EventCallReceived, Data: webhook.CallData{CallID: "c1", Status: "ringing"}},
		{Event: webhook.EventPresenceUpdate, Data: webhook.PresenceData{ChatID: "1", Presence: "composing"}},
		{Event: webhook.EventGroupUpdate, Data: webhook.GroupData{GroupID: "g", Action: webhook.GroupActionParticipantAdd}},
		{Event: webhook.EventUnmapped, Data: webhook.UnmappedData{ProviderEvent: "labels.edit"}},
	}
	for _, w := range events {
		t.Run(string(w.Event), func(t *testing.T) {
			f := newProcessorFixture()
			res, err := f.processor.ProcessWebhookEvent(context.Background(), w, webhook.ProviderEvolution, nil)
			require.NoError(t, err)
			assert.True(t, res.Processed)
			f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			f.connections.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestProcess_PublishFailureIsNotAnError(t *testing.T) {
	f := newProcessorFixture()
	var env eventbus.Envelope
	failing := &MockPublisher{}
	failing.On("Publish", mock.Anything, "webhook.call.received", mock.Anything).Run(func(args mock.Arguments) {
		env = args.Get(2).(eventbus.Envelope)
	}).Return(errors.New("broker down"))
	f.processor.publisher = failing

	tc := tracectx.New()
	res, err := f.processor.ProcessWebhookEvent(context.Background(), &webhook.NormalizedWebhook{
		Event: webhook.EventCallReceived,
		Data:  webhook.CallData{CallID: "c1"},
	}, webhook.ProviderUAZapi, tc)

	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, tc.TraceID, env.Meta.CorrelationID)
}

type failingLocker struct{}

func (failingLocker) Acquire(context.Context, string, time.Duration) (lock.Lease, error) {
	return nil, errors.New("valkey unreachable")
}
