package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().Bool("json", false, "Print the balance as JSON")
	balanceCmd.Flags().Int("history", 0, "Also print the N most recent ledger entries")
}

var balanceCmd = &cobra.Command{
	Use:   "balance ADDRESS",
	Short: "Show an address's credit balance and approvals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(func(s *stack) error {
			b, err := s.ledger.GetBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(b)
			}
			fmt.Fprintf(w, "Address:    %s\n", b.Address)
			fmt.Fprintf(w, "Balance:    %s winc\n", b.Winc)
			fmt.Fprintf(w, "Reserved:   %s winc\n", b.ReservedWinc)
			fmt.Fprintf(w, "Effective:  %s winc\n", b.EffectiveBalance)
			for _, a := range b.GivenApprovals {
				fmt.Fprintf(w, "  → %s may spend %s winc (%s used)\n", a.ApprovedAddress, a.ApprovedWincAmount, a.UsedWincAmount)
			}
			for _, a := range b.ReceivedApprovals {
				fmt.Fprintf(w, "  ← may spend %s winc from %s (%s used)\n", a.ApprovedWincAmount, a.PayingAddress, a.UsedWincAmount)
			}

			n, _ := cmd.Flags().GetInt("history")
			if n <= 0 {
				return nil
			}
			entries, err := s.db.LedgerEntries(cmd.Context(), args[0], n)
			if err != nil {
				return err
			}
			fmt.Fprintln(w)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTYPE\tENTRY\tWINC\tBALANCE\tREFERENCE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Format(time.RFC3339), e.Type, e.EntryType, e.Amount, e.Balance, e.Reference)
			}
			return tw.Flush()
		})
	},
}
