package sender

import (
	"context"

	twilio "github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSender delivers notifications through the Twilio messaging API.
// It backs both the sms and whatsapp channels; for whatsapp the from and
// to numbers carry the "whatsapp:" address prefix Twilio expects.
type TwilioSender struct {
	client   *twilio.RestClient
	from     string
	whatsapp bool
}

func NewTwilioSMS(accountSID, authToken, from string) *TwilioSender {
	return newTwilioSender(accountSID, authToken, from, false)
}

func NewTwilioWhatsApp(accountSID, authToken, from string) *TwilioSender {
	return newTwilioSender(accountSID, authToken, from, true)
}

func newTwilioSender(accountSID, authToken, from string, whatsapp bool) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSender{client: client, from: from, whatsapp: whatsapp}
}

// Send creates a Twilio message to the destination number. The blocking
// REST call runs in a goroutine so the call honours context cancellation.
func (s *TwilioSender) Send(ctx context.Context, to string, content Content) error {
	from := s.from
	if s.whatsapp {
		to = "whatsapp:" + to
		from = "whatsapp:" + from
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(content.Body)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.client.Api.CreateMessage(params)
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
