// Package sms sends chat replies back over Twilio.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MaxLength is the longest body the Messages API accepts.
const MaxLength = 1600

var ErrNotConfigured = errors.New("twilio client not configured")

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// messageAPI is the slice of the Twilio REST client used here.
type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioClient sends SMS through the Twilio Messages API.
type TwilioClient struct {
	api         messageAPI
	phoneNumber string
	logger      zerolog.Logger
}

// NewTwilioClient returns a client for the account. Missing credentials
// yield a client whose Send fails with ErrNotConfigured.
func NewTwilioClient(accountSID, authToken, phoneNumber string, logger zerolog.Logger) *TwilioClient {
	c := &TwilioClient{phoneNumber: phoneNumber, logger: logger}
	if accountSID == "" || authToken == "" || phoneNumber == "" {
		return c
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	c.api = client.Api
	return c
}

func (t *TwilioClient) IsConfigured() bool {
	return t.api != nil
}

// Send delivers body to the number, truncating it to MaxLength.
func (t *TwilioClient) Send(_ context.Context, to, body string) error {
	if !t.IsConfigured() {
		return ErrNotConfigured
	}

	to = FormatPhoneNumber(to)
	from := FormatPhoneNumber(t.phoneNumber)

	if n := len([]rune(body)); n > MaxLength {
		t.logger.Warn().Int("length", n).Msg("sms_truncated")
		body = Truncate(body, MaxLength)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	msg, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	ev := t.logger.Info().Int("length", len([]rune(body)))
	if msg != nil && msg.Sid != nil {
		ev = ev.Str("sid", *msg.Sid)
	}
	ev.Msg("sms_sent")
	return nil
}

// Truncate shortens s to at most max runes, ending with "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// FormatPhoneNumber normalizes phone to E.164 with a leading +.
func FormatPhoneNumber(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
	var b strings.Builder
	for _, ch := range phone {
		if ch >= '0' && ch <= '9' || ch == '+' {
			b.WriteRune(ch)
		}
	}
	phone = strings.TrimLeft(b.String(), "+")
	if phone == "" {
		return ""
	}
	return "+" + phone
}
