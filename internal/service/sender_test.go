package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mailflow/backend/internal/cache"
	"mailflow/backend/internal/domain"
	"mailflow/backend/internal/mail"
)

func (f *fixture) expectSend(to string, err error) *mock.Call {
	return f.transport.On("Send", mock.Anything, "Spring sale", "Hello", "noreply@example.com", []string{to}).Return(err)
}

func TestSendService_PartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	b := f.client(t, owner, "b@x.com")
	m := f.mailing(t, owner, -time.Hour, 24*time.Hour, a, b)

	f.expectSend("a@x.com", nil)
	f.expectSend("b@x.com", &mail.TransportError{Detail: "mailbox full"})

	result, err := f.sender.Execute(ctx, m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
	assert.Equal(t, domain.MailingStarted, result.Status)
	f.transport.AssertExpectations(t)

	attempts := f.attempts(t, m.ID)
	require.Len(t, attempts, 2)
	byClient := map[string]domain.Attempt{}
	for _, at := range attempts {
		byClient[at.ClientID] = at
	}
	assert.Equal(t, domain.AttemptSuccess, byClient[a.ID].Status)
	assert.Contains(t, byClient[a.ID].ServerResponse, "a@x.com")
	assert.Equal(t, domain.AttemptFailure, byClient[b.ID].Status)
	assert.Equal(t, "mailbox full", byClient[b.ID].ServerResponse)

	stats, err := f.stats.GetOwnerStats(ctx, owner)
	require.NoError(t, err)
	require.Len(t, stats.Mailings, 1)
	assert.Equal(t, int64(1), stats.Mailings[0].SuccessCount)
	assert.Equal(t, int64(1), stats.Mailings[0].FailCount)

	stored, err := f.store.GetMailing(m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MailingStarted, stored.Status)
}

func TestSendService_KFailuresOfN(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", domain.RoleUser)

	const n, k = 6, 4
	recipients := make([]*domain.Client, 0, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("r%d@x.com", i)
		recipients = append(recipients, f.client(t, owner, email))
		if i < k {
			f.expectSend(email, &mail.TransportError{Detail: "550 rejected"})
		} else {
			f.expectSend(email, nil)
		}
	}
	m := f.mailing(t, owner, -time.Hour, time.Hour, recipients...)

	result, err := f.sender.Execute(context.Background(), m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)

	attempts := f.attempts(t, m.ID)
	require.Len(t, attempts, n)
	var failures int
	for _, at := range attempts {
		if at.Status == domain.AttemptFailure {
			failures++
		}
	}
	assert.Equal(t, k, failures)
}

func TestSendService_AllRecipientsFail(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	m := f.mailing(t, owner, -time.Hour, time.Hour, a)
	f.expectSend("a@x.com", &mail.TransportError{Detail: "connection refused"})

	result, err := f.sender.Execute(context.Background(), m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
	assert.Equal(t, domain.MailingStarted, result.Status)
}

func TestSendService_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	stranger := f.user(t, "stranger@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")

	finished := f.mailing(t, owner, -2*time.Hour, -time.Hour, a)
	future := f.mailing(t, owner, 24*time.Hour, 48*time.Hour, a)
	disabled := f.mailing(t, owner, -time.Hour, time.Hour, a)
	manager := f.user(t, "manager@example.com", domain.RoleManager)
	_, err := f.mailings.Disable(ctx, manager, disabled.ID)
	require.NoError(t, err)
	open := f.mailing(t, owner, -time.Hour, time.Hour, a)

	tests := []struct {
		name    string
		id      string
		actor   *domain.User
		outcome domain.SendOutcome
		status  domain.MailingStatus
	}{
		{"不存在", "missing", owner, domain.OutcomeNotFound, ""},
		{"非所有者", open.ID, stranger, domain.OutcomeForbidden, domain.MailingCreated},
		{"未登录", open.ID, nil, domain.OutcomeForbidden, domain.MailingCreated},
		{"已结束", finished.ID, owner, domain.OutcomeAlreadyFinished, domain.MailingFinished},
		{"尚未开始", future.ID, owner, domain.OutcomeNotStarted, domain.MailingCreated},
		{"已停用", disabled.ID, owner, domain.OutcomeDisabled, domain.MailingDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.sender.Execute(ctx, tt.id, tt.actor)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, result.Outcome)
			assert.True(t, result.Outcome.Rejected())

			if tt.status != "" {
				stored, err := f.store.GetMailing(tt.id)
				require.NoError(t, err)
				assert.Equal(t, tt.status, stored.Status)
				assert.Empty(t, f.attempts(t, tt.id))
			}
		})
	}
	f.transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendService_StartTomorrow(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	m := f.mailing(t, owner, 24*time.Hour, 72*time.Hour, a)

	result, err := f.sender.Execute(context.Background(), m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNotStarted, result.Outcome)
	assert.Empty(t, f.attempts(t, m.ID))

	stored, err := f.store.GetMailing(m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MailingCreated, stored.Status)
}

func TestSendService_PostPassTransition(t *testing.T) {
	t.Run("结束时间在未来变为 started", func(t *testing.T) {
		f := newFixture(t)
		owner := f.user(t, "owner@example.com", domain.RoleUser)
		a := f.client(t, owner, "a@x.com")
		m := f.mailing(t, owner, -time.Hour, time.Hour, a)
		f.expectSend("a@x.com", nil)

		result, err := f.sender.Execute(context.Background(), m.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, domain.MailingStarted, result.Status)
	})

	t.Run("结束时间恰为当前变为 finished", func(t *testing.T) {
		f := newFixture(t)
		owner := f.user(t, "owner@example.com", domain.RoleUser)
		a := f.client(t, owner, "a@x.com")
		m := f.mailing(t, owner, -time.Hour, 0, a)
		f.expectSend("a@x.com", nil)

		result, err := f.sender.Execute(context.Background(), m.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
		assert.Equal(t, domain.MailingFinished, result.Status)

		stored, err := f.store.GetMailing(m.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MailingFinished, stored.Status)
	})

	t.Run("发送期间越过结束时间变为 finished", func(t *testing.T) {
		f := newFixture(t)
		owner := f.user(t, "owner@example.com", domain.RoleUser)
		a := f.client(t, owner, "a@x.com")
		m := f.mailing(t, owner, -time.Hour, time.Minute, a)
		f.expectSend("a@x.com", nil).Run(func(mock.Arguments) {
			f.now = f.now.Add(2 * time.Minute)
		})

		result, err := f.sender.Execute(context.Background(), m.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, domain.MailingFinished, result.Status)
	})
}

func TestSendService_RepeatedPasses(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	m := f.mailing(t, owner, -time.Hour, time.Hour, a)
	f.expectSend("a@x.com", nil)

	for i := 0; i < 2; i++ {
		result, err := f.sender.Execute(context.Background(), m.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
	}
	assert.Len(t, f.attempts(t, m.ID), 2)
}

func TestSendService_ManagerCanSendAnyMailing(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	manager := f.user(t, "manager@example.com", domain.RoleManager)
	a := f.client(t, owner, "a@x.com")
	m := f.mailing(t, owner, -time.Hour, time.Hour, a)
	f.expectSend("a@x.com", nil)

	result, err := f.sender.Execute(context.Background(), m.ID, manager)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
}

func TestSendService_BlockedOwnerIsForbidden(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	m := f.mailing(t, owner, -time.Hour, time.Hour, a)

	owner.IsActive = false
	result, err := f.sender.Execute(context.Background(), m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeForbidden, result.Outcome)
}

func TestSendService_ClaimPreventsConcurrentPass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	m := f.mailing(t, owner, -time.Hour, time.Hour, a)

	release, ok, err := f.locker.TryLock(ctx, cache.SendLockKey(m.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	result, err := f.sender.Execute(ctx, m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeInProgress, result.Outcome)
	assert.Empty(t, f.attempts(t, m.ID))

	release()
	f.expectSend("a@x.com", nil)
	result, err = f.sender.Execute(ctx, m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)

	// 轮次结束后占用已释放
	release, ok, err = f.locker.TryLock(ctx, cache.SendLockKey(m.ID), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestSendService_CallerCancelDoesNotInterruptPass(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	b := f.client(t, owner, "b@x.com")
	m := f.mailing(t, owner, -time.Hour, time.Hour, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			// 第一次投递时调用方断开
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Times(2)

	result, err := f.sender.Execute(ctx, m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
	assert.Equal(t, domain.MailingStarted, result.Status)
	assert.Len(t, f.attempts(t, m.ID), 2)
	f.transport.AssertExpectations(t)

	stored, err := f.store.GetMailing(m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MailingStarted, stored.Status)
}

func TestSendService_KeepsConcurrentOwnerEdit(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	m := f.mailing(t, owner, -time.Hour, time.Hour, a)

	newEnd := f.now.Add(72 * time.Hour)
	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Run(func(mock.Arguments) {
			// 轮次进行中所有者延长了结束时间
			edited, err := f.store.GetMailing(m.ID)
			require.NoError(t, err)
			edited.EndAt = newEnd
			require.NoError(t, f.store.SaveMailing(edited))
		}).
		Once()

	result, err := f.sender.Execute(context.Background(), m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.MailingStarted, result.Status)

	stored, err := f.store.GetMailing(m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MailingStarted, stored.Status)
	assert.True(t, stored.EndAt.Equal(newEnd))
}

func TestSendService_DisabledMidPassStaysDisabled(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	m := f.mailing(t, owner, -time.Hour, time.Hour, a)

	f.transport.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Run(func(mock.Arguments) {
			edited, err := f.store.GetMailing(m.ID)
			require.NoError(t, err)
			edited.Disable()
			require.NoError(t, f.store.SaveMailing(edited))
		}).
		Once()

	result, err := f.sender.Execute(context.Background(), m.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, result.Outcome)
	assert.Equal(t, domain.MailingDisabled, result.Status)

	stored, err := f.store.GetMailing(m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MailingDisabled, stored.Status)
}

func TestSendService_InvalidatesOwnerCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", domain.RoleUser)
	a := f.client(t, owner, "a@x.com")
	m := f.mailing(t, owner, -time.Hour, time.Hour, a)

	_, err := f.stats.GetOwnerStats(ctx, owner)
	require.NoError(t, err)
	_, err = f.mailings.List(ctx, owner)
	require.NoError(t, err)
	_, err = f.stats.GetHomeSummary(ctx)
	require.NoError(t, err)

	f.expectSend("a@x.com", nil)
	_, err = f.sender.Execute(ctx, m.ID, owner)
	require.NoError(t, err)

	for _, key := range []string{cache.StatsKey(owner.ID), cache.MailingListKey(owner.ID), cache.HomeKey} {
		_, ok, err := f.cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}

	list, err := f.mailings.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.MailingStarted, list[0].Status)
}
