package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tutu-network/credits/internal/domain"
)

func init() {
	rootCmd.AddCommand(priceCmd)
	priceCmd.AddCommand(priceBytesCmd)
	priceCmd.AddCommand(pricePaymentCmd)
	priceCmd.AddCommand(priceCryptoCmd)

	priceCmd.PersistentFlags().Bool("json", false, "Print the full quote as JSON")
	priceBytesCmd.Flags().String("address", "", "Payer address for address-scoped adjustments")

	pricePaymentCmd.Flags().String("currency", "usd", "Payment currency")
	pricePaymentCmd.Flags().Int64("amount", 0, "Amount in the currency's minor unit (e.g. cents)")
	pricePaymentCmd.Flags().StringSlice("promo", nil, "Promo codes to apply")
	pricePaymentCmd.Flags().String("address", "", "Destination address, used for promo eligibility")
	pricePaymentCmd.MarkFlagRequired("amount")

	priceCryptoCmd.Flags().String("fee-mode", string(domain.FeeModeStandard), "Fee mode: standard, invert or none")
}

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Quote storage and payment prices",
}

// ─── price bytes ────────────────────────────────────────────────────────────

var priceBytesCmd = &cobra.Command{
	Use:   "bytes N",
	Short: "Price an upload of N bytes in winc",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("byte count %q is not an integer", args[0])
		}
		address, _ := cmd.Flags().GetString("address")
		return withStack(func(s *stack) error {
			q, err := s.engine.PriceForBytes(cmd.Context(), n, address)
			if err != nil {
				return err
			}
			return printQuote(cmd, q, func(w io.Writer) {
				fmt.Fprintf(w, "Bytes:    %d\n", q.ByteCount)
				fmt.Fprintf(w, "Network:  %s winc\n", q.NetworkPrice)
				printAdjustments(w, q.Adjustments, "winc")
				fmt.Fprintf(w, "Price:    %s winc\n", q.FinalPrice)
			})
		})
	},
}

// ─── price payment ──────────────────────────────────────────────────────────

var pricePaymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Quote the winc a fiat payment buys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		currency, _ := cmd.Flags().GetString("currency")
		amount, _ := cmd.Flags().GetInt64("amount")
		promos, _ := cmd.Flags().GetStringSlice("promo")
		address, _ := cmd.Flags().GetString("address")

		payment := domain.Payment{Amount: amount, Currency: domain.Currency(currency)}
		return withStack(func(s *stack) error {
			q, err := s.engine.CreditsForPayment(cmd.Context(), payment, promos, address)
			if err != nil {
				return err
			}
			return printQuote(cmd, q, func(w io.Writer) {
				fmt.Fprintf(w, "Quoted:   %d %s\n", q.QuotedPaymentAmount, q.Currency)
				fmt.Fprintf(w, "Charged:  %d %s\n", q.ActualPaymentAmount, q.Currency)
				if q.ExcessPaymentAmount > 0 {
					fmt.Fprintf(w, "Excess:   %d %s (processor minimum)\n", q.ExcessPaymentAmount, q.Currency)
				}
				printAdjustments(w, q.InclusiveAdjustments, string(q.Currency))
				printAdjustments(w, q.Adjustments, string(q.Currency))
				fmt.Fprintf(w, "Credits:  %s winc\n", q.FinalPrice)
			})
		})
	},
}

// ─── price crypto ───────────────────────────────────────────────────────────

var priceCryptoCmd = &cobra.Command{
	Use:   "crypto TOKEN AMOUNT",
	Short: "Quote the winc a token transfer buys (AMOUNT in the token's smallest unit)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := domain.ParseWinc(args[1])
		if err != nil {
			return fmt.Errorf("amount %q: %w", args[1], err)
		}
		mode, _ := cmd.Flags().GetString("fee-mode")
		return withStack(func(s *stack) error {
			q, err := s.engine.CreditsForCryptoPayment(cmd.Context(), amount, domain.Token(args[0]), domain.FeeMode(mode))
			if err != nil {
				return err
			}
			return printQuote(cmd, q, func(w io.Writer) {
				fmt.Fprintf(w, "Amount:   %s %s\n", q.TokenAmount, q.Token)
				printAdjustments(w, q.InclusiveAdjustments, "winc")
				fmt.Fprintf(w, "Credits:  %s winc\n", q.FinalPrice)
			})
		})
	},
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func printQuote(cmd *cobra.Command, quote any, text func(io.Writer)) error {
	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(quote)
	}
	text(w)
	return nil
}

func printAdjustments(w io.Writer, adjustments []domain.AppliedAdjustment, unit string) {
	for _, a := range adjustments {
		fmt.Fprintf(w, "  • %s: %s %s\n", a.Name, a.AdjustmentAmount, unit)
	}
}
