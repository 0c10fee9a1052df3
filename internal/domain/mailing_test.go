package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMailingNormalize(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	statuses := []MailingStatus{MailingCreated, MailingStarted, MailingDisabled, MailingFinished}
	for _, st := range statuses {
		t.Run("过期群发强制完成/"+string(st), func(t *testing.T) {
			m := &Mailing{Status: st, StartAt: now.Add(-2 * time.Hour), EndAt: now.Add(-time.Minute)}
			m.Normalize(now)
			assert.Equal(t, MailingFinished, m.Status)
		})
	}

	t.Run("未过期保持原状态", func(t *testing.T) {
		m := &Mailing{Status: MailingStarted, EndAt: now.Add(time.Hour)}
		m.Normalize(now)
		assert.Equal(t, MailingStarted, m.Status)
	})

	t.Run("结束时间等于当前时间不强制", func(t *testing.T) {
		m := &Mailing{Status: MailingCreated, EndAt: now}
		m.Normalize(now)
		assert.Equal(t, MailingCreated, m.Status)
	})

	t.Run("停用豁免只生效一次", func(t *testing.T) {
		m := &Mailing{Status: MailingStarted, EndAt: now.Add(-time.Minute)}
		m.Disable()
		m.Normalize(now)
		assert.Equal(t, MailingDisabled, m.Status)

		m.Normalize(now)
		assert.Equal(t, MailingFinished, m.Status)
	})
}

func TestMailingCompletePass(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		endAt    time.Time
		expected MailingStatus
	}{
		{"结束时间在未来", now.Add(time.Hour), MailingStarted},
		{"结束时间等于当前", now, MailingFinished},
		{"结束时间已过", now.Add(-time.Hour), MailingFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mailing{Status: MailingCreated, EndAt: tt.endAt}
			m.CompletePass(now)
			assert.Equal(t, tt.expected, m.Status)
		})
	}
}

func TestMailingCheckSendable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		mailing Mailing
		err     error
	}{
		{"已完成", Mailing{Status: MailingFinished, StartAt: now.Add(-time.Hour)}, ErrMailingFinished},
		{"已停用", Mailing{Status: MailingDisabled, StartAt: now.Add(-time.Hour)}, ErrMailingDisabled},
		{"尚未开始", Mailing{Status: MailingCreated, StartAt: now.Add(24 * time.Hour)}, ErrMailingNotStarted},
		{"已完成优先于未开始", Mailing{Status: MailingFinished, StartAt: now.Add(time.Hour)}, ErrMailingFinished},
		{"开始时间等于当前", Mailing{Status: MailingCreated, StartAt: now}, nil},
		{"进行中", Mailing{Status: MailingStarted, StartAt: now.Add(-time.Hour)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.mailing
			before := m.Status
			err := m.CheckSendable(now)
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
			assert.Equal(t, before, m.Status)
		})
	}
}

func TestSendOutcomeRejected(t *testing.T) {
	assert.False(t, OutcomeCompleted.Rejected())
	for _, o := range []SendOutcome{OutcomeForbidden, OutcomeAlreadyFinished, OutcomeDisabled, OutcomeNotStarted, OutcomeInProgress, OutcomeNotFound} {
		assert.True(t, o.Rejected(), o)
	}
}
