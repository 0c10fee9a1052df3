package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected bool
	}{
		{"Valid email", "test@example.com", true},
		{"Valid email with subdomain", "user@mail.example.com", true},
		{"Valid email with plus", "user+tag@example.com", true},
		{"Invalid email - no @", "testexample.com", false},
		{"Invalid email - no domain", "test@", false},
		{"Invalid email - no local part", "@example.com", false},
		{"Invalid email - empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			assert.Equal(t, tt.expected, err == nil)
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("password123"))
	assert.ErrorIs(t, ValidatePassword("short"), ErrPasswordTooShort)

	long := make([]byte, MaxPasswordLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidatePassword(string(long)), ErrPasswordTooLong)
}

func TestValidateInputs(t *testing.T) {
	t.Run("联系人缺少邮箱", func(t *testing.T) {
		err := Validate(ClientInput{FullName: "Alice"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "email")
	})

	t.Run("合法联系人", func(t *testing.T) {
		assert.NoError(t, Validate(ClientInput{Email: "a@x.com", FullName: "Alice"}))
	})

	t.Run("群发结束时间早于开始时间", func(t *testing.T) {
		now := time.Now()
		err := Validate(MailingInput{StartAt: now, EndAt: now.Add(-time.Hour), MessageID: "m1"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []string{"gtfield"}, verr.Fields["endAt"])
	})

	t.Run("模板缺少主题", func(t *testing.T) {
		err := Validate(MessageInput{Body: "hi"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}
