package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/fiorix/go-smpp/smpp"
	"github.com/fiorix/go-smpp/smpp/pdu/pdutext"
)

// ShortMessageSubmitter is the part of *smpp.Transmitter the SMS channel needs.
type ShortMessageSubmitter interface {
	Submit(sm *smpp.ShortMessage) (*smpp.ShortMessage, error)
}

// SMSChannel delivers the short text rendition of a notification over SMPP.
type SMSChannel struct {
	tx       ShortMessageSubmitter
	source   string
	renderer *Renderer
}

func NewSMSChannel(tx ShortMessageSubmitter, source string, renderer *Renderer) *SMSChannel {
	return &SMSChannel{tx: tx, source: source, renderer: renderer}
}

func (s *SMSChannel) Send(ctx context.Context, to Recipient, kind Kind, payload Payload) error {
	phone := normalizeMsisdn(to.Phone)
	if phone == "" {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rendered, err := s.renderer.Render(kind, to, payload)
	if err != nil {
		return err
	}
	_, err = s.tx.Submit(&smpp.ShortMessage{
		Src:  s.source,
		Dst:  phone,
		Text: pdutext.Raw(rendered.Text),
	})
	if err != nil {
		return fmt.Errorf("sms submit to %s failed: %w", phone, err)
	}
	return nil
}

// normalizeMsisdn keeps digits only, the format SMPP destinations expect.
func normalizeMsisdn(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
