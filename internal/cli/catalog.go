package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogAddCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogRemoveCmd)

	catalogAddCmd.Flags().StringP("file", "f", "", "TOML file of [[adjustment]] tables")
	catalogAddCmd.MarkFlagRequired("file")
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage discounts, fees and promo codes",
	Long: `Manage the adjustment catalog. Adjustments are defined in TOML files and
imported with 'creditd catalog add -f <file>'. Importing an existing
catalog_id replaces it.`,
}

// ─── catalog add ────────────────────────────────────────────────────────────

var catalogAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Import adjustments from a TOML file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		return withStack(func(s *stack) error {
			added, err := s.catalog.Import(cmd.Context(), path)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Imported %d adjustment(s) from %s\n", len(added), path)
			for _, a := range added {
				fmt.Fprintf(w, "  • %s (%s)\n", a.CatalogID, a.Kind)
			}
			return nil
		})
	},
}

// ─── catalog list ───────────────────────────────────────────────────────────

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog adjustments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(func(s *stack) error {
			all, err := s.catalog.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tOPERATOR\tMAGNITUDE\tPROMO\tUSES\tWINDOW")
			for _, a := range all {
				uses := fmt.Sprintf("%d", a.Uses)
				if a.MaxUses > 0 {
					uses = fmt.Sprintf("%d/%d", a.Uses, a.MaxUses)
				}
				window := a.StartDate.Format("2006-01-02") + " →"
				if a.EndDate != nil {
					window += " " + a.EndDate.Format("2006-01-02")
				}
				promo := a.PromoCode
				if promo == "" {
					promo = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					a.CatalogID, a.Kind, a.Operator, a.Magnitude, promo, uses, window)
			}
			return tw.Flush()
		})
	},
}

// ─── catalog remove ─────────────────────────────────────────────────────────

var catalogRemoveCmd = &cobra.Command{
	Use:   "remove CATALOG_ID",
	Short: "Remove an adjustment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStack(func(s *stack) error {
			if err := s.catalog.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Adjustment %q removed.\n", args[0])
			return nil
		})
	},
}
