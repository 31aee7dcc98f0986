package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/lib/smtp"
	"github.com/magabrotheeeer/stack-checkout/internal/services/sender"
)

// TestPassword пароль, который подставляется в проверочное письмо.
const TestPassword = "TestPassword123!"

// WelcomeSender отправляет приветственное письмо.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, email, password string) (string, error)
}

func newTestEmailCmd(load ConfigLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "test-email <address>",
		Short: "Send the welcome email with a test password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if !cfg.Email.Configured() {
				return errors.New("EMAIL_SENDER and EMAIL_PASSWORD must be set")
			}
			svc := sender.New(sl.NewTo(cmd.ErrOrStderr(), cfg.Env), cfg.Email, smtp.NewDialer(cfg.Email))
			return SendTestEmail(cmd.Context(), svc, args[0], cmd.OutOrStdout())
		},
	}
}

// SendTestEmail отправляет приветственное письмо на address и печатает Message-ID.
func SendTestEmail(ctx context.Context, s WelcomeSender, address string, out io.Writer) error {
	id, err := s.SendWelcome(ctx, address, TestPassword)
	if err != nil {
		return fmt.Errorf("send test email: %w", err)
	}
	fmt.Fprintf(out, "sent to %s, message id %s\n", address, id)
	return nil
}
