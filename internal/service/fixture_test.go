package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailflow/backend/internal/cache"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/monitoring"
	"mailflow/backend/internal/storage/memory"
)

// mockTransport 模拟出站邮件通道
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(ctx context.Context, subject, body, from string, to []string) error {
	args := m.Called(ctx, subject, body, from, to)
	return args.Error(0)
}

type fixture struct {
	now       time.Time
	store     *memory.Store
	cache     *cache.LocalCache
	locker    *cache.LocalLocker
	metrics   *monitoring.Metrics
	transport *mockTransport

	ledger   *Ledger
	sender   *SendService
	stats    *StatsService
	clients  *ClientService
	messages *MessageService
	mailings *MailingService
	admin    *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		store:     memory.NewStore(),
		cache:     cache.NewLocalCache(0, 5*time.Minute),
		locker:    cache.NewLocalLocker(),
		metrics:   monitoring.NewMetrics(prometheus.NewRegistry()),
		transport: &mockTransport{},
	}
	t.Cleanup(f.cache.Close)
	clock := func() time.Time { return f.now }
	f.store.SetClock(clock)

	logger := zap.NewNop()
	inv := cache.NewInvalidator(f.cache, logger)
	ttl := 300 * time.Second

	f.ledger = NewLedger(f.store, inv, f.metrics, logger)
	f.ledger.now = clock
	f.sender = NewSendService(f.store, f.ledger, f.transport, f.locker, inv, f.metrics, logger,
		SendOptions{From: "noreply@example.com", LockTTL: time.Minute})
	f.sender.now = clock
	f.stats = NewStatsService(f.store, f.cache, ttl, f.metrics, logger)
	f.clients = NewClientService(f.store, f.cache, ttl, inv, logger)
	f.messages = NewMessageService(f.store, f.cache, ttl, inv, logger)
	f.mailings = NewMailingService(f.store, f.cache, ttl, inv, f.metrics, logger)
	f.admin = NewAdminService(f.store, logger)
	return f
}

func (f *fixture) user(t *testing.T, email string, role domain.UserRole) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:       uuid.NewString(),
		Email:    email,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, f.store.CreateUser(u))
	return u
}

func (f *fixture) client(t *testing.T, owner *domain.User, email string) *domain.Client {
	t.Helper()
	c, err := f.clients.Create(context.Background(), owner, domain.ClientInput{Email: email, FullName: email})
	require.NoError(t, err)
	return c
}

func (f *fixture) message(t *testing.T, owner *domain.User) *domain.Message {
	t.Helper()
	m, err := f.messages.Create(context.Background(), owner, domain.MessageInput{Subject: "Spring sale", Body: "Hello"})
	require.NoError(t, err)
	return m
}

// mailing 创建时间窗口为 [now+start, now+end) 的群发
func (f *fixture) mailing(t *testing.T, owner *domain.User, start, end time.Duration, recipients ...*domain.Client) *domain.Mailing {
	t.Helper()
	msg := f.message(t, owner)
	ids := make([]string, 0, len(recipients))
	for _, c := range recipients {
		ids = append(ids, c.ID)
	}
	m, err := f.mailings.Create(context.Background(), owner, domain.MailingInput{
		StartAt:      f.now.Add(start),
		EndAt:        f.now.Add(end),
		MessageID:    msg.ID,
		RecipientIDs: ids,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) attempts(t *testing.T, mailingID string) []domain.Attempt {
	t.Helper()
	attempts, err := f.store.ListAttempts(mailingID)
	require.NoError(t, err)
	return attempts
}
