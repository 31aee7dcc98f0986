package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/stack-checkout/internal/lib/sl"
	"github.com/magabrotheeeer/stack-checkout/internal/paymentprovider"
)

// Параметры продукта подписки.
const (
	ProductName        = "AI English Learning Subscription"
	ProductDescription = "Monthly and semi-annual access to the Stack AI English learning app"
)

// Catalog создает продукты и цены.
type Catalog interface {
	Configured() bool
	CreateProduct(ctx context.Context, name, description string) (string, error)
	CreatePrice(ctx context.Context, p paymentprovider.PriceParams) (string, error)
}

type priceSpec struct {
	env           string
	plan          string
	nickname      string
	amount        int64
	intervalCount int64
}

var prices = []priceSpec{
	{env: "STRIPE_MONTHLY_PRICE_ID", plan: "monthly", nickname: "Monthly", amount: 1000, intervalCount: 1},
	{env: "STRIPE_SEMIANNUAL_PRICE_ID", plan: "semiannual", nickname: "Every 6 months", amount: 5500, intervalCount: 6},
}

func newCreateProductsCmd(load ConfigLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "create-products",
		Short: "Create the subscription product and its JPY prices in Stripe",
		Long: `Create the subscription product with a monthly and a semi-annual JPY price.

Prints the price ids as environment lines ready to paste into .env.

Example:
  billingctl create-products >> .env.local`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			// stdout занят строками окружения, логи идут в stderr.
			client := paymentprovider.NewClient(sl.NewTo(cmd.ErrOrStderr(), cfg.Env), cfg.Stripe)
			return CreateProducts(cmd.Context(), client, cmd.OutOrStdout())
		},
	}
}

// CreateProducts создает продукт и обе цены и печатает строки окружения с их идентификаторами.
func CreateProducts(ctx context.Context, catalog Catalog, out io.Writer) error {
	if !catalog.Configured() {
		return errors.New("STRIPE_SECRET_KEY is not set")
	}

	productID, err := catalog.CreateProduct(ctx, ProductName, ProductDescription)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	fmt.Fprintf(out, "# product %s\n", productID)

	for _, p := range prices {
		priceID, err := catalog.CreatePrice(ctx, paymentprovider.PriceParams{
			ProductID:     productID,
			UnitAmount:    p.amount,
			Currency:      "jpy",
			Interval:      "month",
			IntervalCount: p.intervalCount,
			Nickname:      p.nickname,
			Metadata:      map[string]string{"plan": p.plan},
		})
		if err != nil {
			return fmt.Errorf("create %s price: %w", p.plan, err)
		}
		fmt.Fprintf(out, "%s=%s\n", p.env, priceID)
	}
	return nil
}
