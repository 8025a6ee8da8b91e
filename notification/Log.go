package notification

import (
	"context"

	"github.com/phuslu/log"
)

// LogChannel writes notifications to the process log instead of delivering them.
type LogChannel struct {
	renderer *Renderer
}

func NewLogChannel(renderer *Renderer) *LogChannel {
	return &LogChannel{renderer: renderer}
}

func (l *LogChannel) Send(ctx context.Context, to Recipient, kind Kind, payload Payload) error {
	rendered, err := l.renderer.Render(kind, to, payload)
	if err != nil {
		return err
	}
	log.Info().Str("Service", "notification").Str("kind", string(kind)).Str("to", to.Email).
		Str("subject", rendered.Subject).Msg(rendered.Text)
	return nil
}
