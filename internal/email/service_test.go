package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(sendErr error) (*Service, *[]sentMail) {
	var sent []sentMail
	svc := NewService(Config{Host: "localhost", Port: "1025", From: "receipts@example.com"})
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if sendErr != nil {
			return sendErr
		}
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return svc, &sent
}

func testReceipt() Receipt {
	return Receipt{
		OrderID:      "3f2a9c1e-7b44-4d0a-9c1e-000000000001",
		CustomerName: "Ada <script>",
		PlanName:     "Standard",
		Minutes:      10,
		FileName:     "interview.mp3",
		Lines: []ReceiptLine{
			{Name: "Standard", Rate: "1.00", Amount: "10.00"},
			{Name: "Timestamps", Rate: "0.10", Amount: "1.00"},
		},
		Subtotal:  "11.00",
		PromoCode: "SAVE20",
		Discount:  "2.20",
		Total:     "8.80",
		Currency:  "USD",
		Guest:     true,
	}
}

// ============================================
// Template Tests
// ============================================

func TestBuildReceiptBody(t *testing.T) {
	body, err := BuildReceiptBody(testReceipt())

	require.NoError(t, err)
	assert.Contains(t, body, "3f2a9c1e-7b44-4d0a-9c1e-000000000001")
	assert.Contains(t, body, "Timestamps")
	assert.Contains(t, body, "Discount (SAVE20): -2.20 USD")
	assert.Contains(t, body, "Total: 8.80 USD")
	assert.Contains(t, body, "order lookup page")
	assert.Contains(t, body, "Ada &lt;script&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestBuildReceiptBody_NoDiscountNoGuestNote(t *testing.T) {
	r := testReceipt()
	r.PromoCode = ""
	r.Discount = "0.00"
	r.Guest = false

	body, err := BuildReceiptBody(r)

	require.NoError(t, err)
	assert.NotContains(t, body, "Discount (")
	assert.NotContains(t, body, "order lookup page")
}

// ============================================
// Service Tests
// ============================================

func TestService_SendReceipt(t *testing.T) {
	svc, sent := newTestService(nil)

	require.NoError(t, svc.SendReceipt("Ada Lovelace <ada@example.com>", testReceipt()))

	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "localhost:1025", mail.addr)
	assert.Equal(t, "receipts@example.com", mail.from)
	assert.Equal(t, []string{"ada@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Your transcription order receipt (#3f2a9c1e)\r\n")
	assert.True(t, strings.Contains(mail.msg, "Content-Type: text/html; charset=UTF-8"))
}

func TestService_SendReceipt_InvalidRecipient(t *testing.T) {
	svc, sent := newTestService(nil)

	err := svc.SendReceipt("ada@example.com\r\nBcc: eve@example.com", testReceipt())

	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.Empty(t, *sent)
}

func TestService_SendReceipt_SMTPError(t *testing.T) {
	svc, _ := newTestService(errors.New("connection refused"))

	err := svc.SendReceipt("ada@example.com", testReceipt())

	assert.ErrorContains(t, err, "connection refused")
}
