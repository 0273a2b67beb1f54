package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func TestSign_MatchesHMAC(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("order_1|pay_1"))
	want := hex.EncodeToString(mac.Sum(nil))

	if got := Sign("secret", "order_1", "pay_1"); got != want {
		t.Fatalf("Sign() = %s, want %s", got, want)
	}
}

func TestVerifySignature(t *testing.T) {
	valid := Sign("secret", "order_1", "pay_1")

	tests := []struct {
		name      string
		secret    string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid", "secret", "order_1", "pay_1", valid, true},
		{"uppercase hex", "secret", "order_1", "pay_1", strings.ToUpper(valid), true},
		{"wrong secret", "other", "order_1", "pay_1", valid, false},
		{"swapped ids", "secret", "pay_1", "order_1", valid, false},
		{"other payment", "secret", "order_1", "pay_2", valid, false},
		{"corrupted", "secret", "order_1", "pay_1", corrupt(valid), false},
		{"truncated", "secret", "order_1", "pay_1", valid[:10], false},
		{"not hex", "secret", "order_1", "pay_1", "zzzz", false},
		{"empty signature", "secret", "order_1", "pay_1", "", false},
		{"empty secret", "", "order_1", "pay_1", Sign("", "order_1", "pay_1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, tt.orderID, tt.paymentID, tt.signature); got != tt.want {
				t.Fatalf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func corrupt(sig string) string {
	last := byte('0')
	if sig[len(sig)-1] == '0' {
		last = '1'
	}
	return sig[:len(sig)-1] + string(last)
}
