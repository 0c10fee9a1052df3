package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailflow/backend/internal/cache"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/mail"
	"mailflow/backend/internal/service"
	"mailflow/backend/internal/storage/memory"
)

type cliFixture struct {
	store    *memory.Store
	sender   *service.SendService
	mailings *service.MailingService
	messages *service.MessageService
	owner    *domain.User
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	c := cache.NewLocalCache(0, time.Minute)
	t.Cleanup(c.Close)
	inv := cache.NewInvalidator(c, logger)

	owner := &domain.User{ID: "owner-1", Email: "owner@example.com", Role: domain.RoleUser, IsActive: true}
	require.NoError(t, store.CreateUser(owner))

	return &cliFixture{
		store: store,
		sender: service.NewSendService(store, service.NewLedger(store, inv, nil, logger), mail.NewConsoleTransport(logger),
			nil, inv, nil, logger, service.SendOptions{From: "noreply@example.com"}),
		mailings: service.NewMailingService(store, c, time.Minute, inv, nil, logger),
		messages: service.NewMessageService(store, c, time.Minute, inv, logger),
		owner:    owner,
	}
}

func (f *cliFixture) mailing(t *testing.T, start, end time.Duration) *domain.Mailing {
	t.Helper()
	ctx := context.Background()
	msg, err := f.messages.Create(ctx, f.owner, domain.MessageInput{Subject: "S", Body: "B"})
	require.NoError(t, err)
	m, err := f.mailings.Create(ctx, f.owner, domain.MailingInput{
		StartAt:   time.Now().Add(start),
		EndAt:     time.Now().Add(end),
		MessageID: msg.ID,
	})
	require.NoError(t, err)
	return m
}

func TestSendMailing(t *testing.T) {
	ctx := context.Background()

	t.Run("以系统身份发送", func(t *testing.T) {
		f := newCLIFixture(t)
		m := f.mailing(t, -time.Hour, time.Hour)

		var out bytes.Buffer
		err := sendMailing(ctx, f.sender, f.store, m.ID, "", &out, zap.NewNop())
		require.NoError(t, err)
		assert.Contains(t, out.String(), "completed")
		assert.Contains(t, out.String(), "started")
	})

	t.Run("群发不存在", func(t *testing.T) {
		f := newCLIFixture(t)
		err := sendMailing(ctx, f.sender, f.store, "missing", "", &bytes.Buffer{}, zap.NewNop())
		require.ErrorIs(t, err, errRejected)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("群发已结束", func(t *testing.T) {
		f := newCLIFixture(t)
		m := f.mailing(t, -2*time.Hour, -time.Hour)
		err := sendMailing(ctx, f.sender, f.store, m.ID, "", &bytes.Buffer{}, zap.NewNop())
		require.ErrorIs(t, err, errRejected)
		assert.Contains(t, err.Error(), "already finished")
	})

	t.Run("以其他用户身份发送被拒绝", func(t *testing.T) {
		f := newCLIFixture(t)
		m := f.mailing(t, -time.Hour, time.Hour)
		other := &domain.User{ID: "other-1", Email: "other@example.com", Role: domain.RoleUser, IsActive: true}
		require.NoError(t, f.store.CreateUser(other))

		err := sendMailing(ctx, f.sender, f.store, m.ID, "Other@Example.com", &bytes.Buffer{}, zap.NewNop())
		require.ErrorIs(t, err, errRejected)
		assert.Contains(t, err.Error(), "not allowed")
	})

	t.Run("发起人不存在", func(t *testing.T) {
		f := newCLIFixture(t)
		m := f.mailing(t, -time.Hour, time.Hour)
		err := sendMailing(ctx, f.sender, f.store, m.ID, "ghost@example.com", &bytes.Buffer{}, zap.NewNop())
		require.Error(t, err)
		assert.NotErrorIs(t, err, errRejected)
	})
}
