package reminder

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariebrainware/medelle-reminder/mailer"
	"github.com/ariebrainware/medelle-reminder/util"
)

// ErrNoOperator is returned by SendTest when no operator address is configured.
var ErrNoOperator = errors.New("operator email is not configured")

// TestResult is what the operator gets back from a test send.
type TestResult struct {
	MessageID  string `json:"message_id"`
	PreviewURL string `json:"link,omitempty"`
}

// SendTest sends one message to the operator address to check the mail
// transport configuration. It touches no record.
func (d *Dispatcher) SendTest(ctx context.Context) (TestResult, error) {
	if d.opts.OperatorEmail == "" {
		return TestResult{}, ErrNoOperator
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	receipt, err := d.transport.Send(sendCtx, OperatorTestMessage(d.opts.ClinicName, d.opts.From, d.opts.OperatorEmail))
	if err != nil {
		util.Logger().Error().Err(err).Str("to", d.opts.OperatorEmail).Msg("test send failed")
		return TestResult{}, fmt.Errorf("test send: %w", err)
	}

	util.Logger().Info().Str("message_id", receipt.MessageID).Str("preview", receipt.PreviewURL).Msg("test send accepted")
	return TestResult{MessageID: receipt.MessageID, PreviewURL: receipt.PreviewURL}, nil
}

// OperatorTestMessage renders the operator test message.
func OperatorTestMessage(clinic, from, to string) mailer.Message {
	return mailer.Message{
		From:    from,
		To:      to,
		Subject: fmt.Sprintf("Teste de Sistema - %s", clinic),
		Body:    "Se você consegue ler isso, o envio de e-mails do sistema de lembretes está funcionando!",
	}
}
