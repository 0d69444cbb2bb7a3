package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/collections-cli/internal/intake"
	"github.com/sells-group/collections-cli/internal/model"
	"github.com/sells-group/collections-cli/internal/store"
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List and update collection cases",
}

var (
	casesStatus   string
	casesAgency   string
	casesLimit    int
	updateStatus  string
	updatePromise string
	updateRemarks string
	updateYes     bool
)

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cases, err := env.Store.ListCases(ctx, store.CaseFilter{
			Status:   model.CaseStatus(casesStatus),
			AgencyID: casesAgency,
			Limit:    casesLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCUSTOMER\tAMOUNT\tSTATUS\tPRIORITY\tSLA DUE\tAGENCY\tLOCKED")
		for _, c := range cases {
			locked := ""
			if c.Locked {
				locked = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f %s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(c.ID), c.CustomerName, c.Amount, c.Currency, c.Status,
				c.Priority, c.SLADueDate.Format("2006-01-02"), c.AssignedAgencyID, locked)
		}
		return w.Flush()
	},
}

var casesUpdateCmd = &cobra.Command{
	Use:   "update <case-id>",
	Short: "Run a status update through editing, preview, and confirmation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Store.GetCase(ctx, args[0])
		if err != nil {
			return err
		}

		update, err := intake.NewStatusUpdate(rec)
		if err != nil {
			return eris.Wrap(err, "case is locked; reopen it first")
		}
		update.Status = model.CaseStatus(updateStatus)
		update.PromiseDate = updatePromise
		update.Remarks = updateRemarks

		if err := update.SubmitUpdate(); err != nil {
			return err
		}

		cmd.Printf("preview: %s -> %s", rec.CustomerName, update.Status)
		if update.PromiseDate != "" {
			cmd.Printf(" (promise date %s)", update.PromiseDate)
		}
		cmd.Println()

		if !updateYes {
			cmd.Println("re-run with --yes to confirm")
			return nil
		}

		if err := update.ConfirmSubmit("cli", time.Now().UTC()); err != nil {
			return err
		}
		if err := env.Store.UpdateCase(ctx, *rec); err != nil {
			return err
		}
		cmd.Printf("case %s locked with status %s\n", shortID(rec.ID), rec.Status)
		return nil
	},
}

var casesReopenCmd = &cobra.Command{
	Use:   "reopen <case-id>",
	Short: "Unlock a case for a new update cycle (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Store.GetCase(ctx, args[0])
		if err != nil {
			return err
		}
		if err := intake.Reopen(rec, model.RoleAdmin, "cli", time.Now().UTC()); err != nil {
			return err
		}
		if err := env.Store.UpdateCase(ctx, *rec); err != nil {
			return err
		}
		cmd.Printf("case %s reopened\n", shortID(rec.ID))
		return nil
	},
}

var casesPrioritizeCmd = &cobra.Command{
	Use:   "prioritize",
	Short: "Ask the AI analyst how to triage the open caseload",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cases, err := env.Store.ListCases(ctx, store.CaseFilter{})
		if err != nil {
			return err
		}
		cmd.Println(env.Insights.PrioritizeCases(ctx, len(cases)))
		return nil
	},
}

func init() {
	casesListCmd.Flags().StringVar(&casesStatus, "status", "", "filter by status")
	casesListCmd.Flags().StringVar(&casesAgency, "agency", "", "filter by agency")
	casesListCmd.Flags().IntVar(&casesLimit, "limit", 0, "max cases to list")

	casesUpdateCmd.Flags().StringVar(&updateStatus, "status", "", "new case status (required)")
	casesUpdateCmd.Flags().StringVar(&updatePromise, "promise-date", "", "promise date (required for Promise to Pay)")
	casesUpdateCmd.Flags().StringVar(&updateRemarks, "remarks", "", "remarks to record")
	casesUpdateCmd.Flags().BoolVar(&updateYes, "yes", false, "confirm the previewed update")
	_ = casesUpdateCmd.MarkFlagRequired("status")

	casesCmd.AddCommand(casesListCmd, casesUpdateCmd, casesReopenCmd, casesPrioritizeCmd)
	rootCmd.AddCommand(casesCmd)
}
