// Package cli реализует служебную утилиту billingctl: создание продукта и цен
// в Stripe и проверку отправки писем.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/stack-checkout/internal/config"
)

// ConfigLoader загружает конфигурацию для команд.
type ConfigLoader func() (*config.Config, error)

// NewRootCmd создает корневую команду billingctl.
func NewRootCmd(load ConfigLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Stack billing maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCreateProductsCmd(load))
	root.AddCommand(newTestEmailCmd(load))
	return root
}
