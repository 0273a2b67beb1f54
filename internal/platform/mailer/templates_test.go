package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseConfirmation_NewAccount(t *testing.T) {
	msg, err := PurchaseConfirmation(PurchaseData{
		Name:         "Asha",
		Email:        "asha@example.com",
		TempPassword: "Xy7pQ2rT9kLm",
		CourseTitles: []string{"Go Basics", "SQL <Joins>"},
		AmountMinor:  99900,
		Currency:     "INR",
		OrderID:      "order_1",
	})
	require.NoError(t, err)

	assert.Equal(t, "asha@example.com", msg.ToEmail)
	assert.Contains(t, msg.HTML, "Xy7pQ2rT9kLm")
	assert.Contains(t, msg.Text, "INR 999.00")
	assert.Contains(t, msg.HTML, "SQL &lt;Joins&gt;", "titles are escaped")
}

func TestPurchaseConfirmation_ExistingAccount(t *testing.T) {
	msg, err := PurchaseConfirmation(PurchaseData{Name: "Ravi", Email: "r@example.com", CourseTitles: []string{"Go"}, AmountMinor: 1, Currency: "inr"})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "Password")
	assert.NotContains(t, msg.Text, "Password")
}

func TestGuestWelcome(t *testing.T) {
	msg, err := GuestWelcome(WelcomeData{Name: "Asha", Email: "a@b.co", TempPassword: "pw123456abcd"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome to ProdemyX!", msg.Subject)
	assert.True(t, strings.Contains(msg.Text, "pw123456abcd"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "INR 999.00", FormatAmount(99900, "INR"))
	assert.Equal(t, "USD 0.05", FormatAmount(5, "usd"))
	assert.Equal(t, "INR 12.34", FormatAmount(1234, "INR"))
}

func TestDevMailer_RejectsEmptyRecipient(t *testing.T) {
	assert.ErrorIs(t, NewDevMailer().Send(context.Background(), Message{}), ErrEmptyRecipient)
	assert.NoError(t, NewDevMailer().Send(context.Background(), Message{ToEmail: "a@b.co"}))
}

func TestSMTPMailer_Build(t *testing.T) {
	s := NewSMTPMailer("localhost", 1025, "ProdemyX", "noreply@prodemyx.local", "", "", false)
	raw := string(s.build("a@b.co", Message{Subject: "Hi", Text: "plain", HTML: "<p>html</p>"}))

	assert.Contains(t, raw, "To: a@b.co\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "plain")
	assert.Contains(t, raw, "<p>html</p>")
}
