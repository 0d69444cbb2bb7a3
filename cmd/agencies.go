package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sells-group/collections-cli/internal/model"
)

var agenciesCmd = &cobra.Command{
	Use:   "agencies",
	Short: "Manage and inspect collection agencies",
}

var (
	agencyAddID         string
	agencyAddRegion     string
	agencyAddStatus     string
	agencyAddContact    string
	agencyAddCompliance float64
	agencyAddRecovery   float64
)

var agenciesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register an agency, or update it when --id matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		agency := model.Agency{
			ID:              agencyAddID,
			Name:            args[0],
			Region:          agencyAddRegion,
			Status:          model.AgencyStatus(agencyAddStatus),
			ComplianceScore: agencyAddCompliance,
			RecoveryRate:    agencyAddRecovery,
			ContactEmail:    agencyAddContact,
		}
		if agency.ID == "" {
			agency.ID = uuid.New().String()
		}

		if err := env.Store.UpsertAgency(ctx, agency); err != nil {
			return err
		}
		cmd.Printf("agency %s (%s) saved\n", agency.Name, shortID(agency.ID))
		return nil
	},
}

var agenciesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		agencies, err := env.Store.ListAgencies(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tREGION\tSTATUS\tCOMPLIANCE\tRECOVERY\tACTIVE")
		for _, a := range agencies {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f\t%.0f%%\t%d\n",
				shortID(a.ID), a.Name, a.Region, a.Status,
				a.ComplianceScore, a.RecoveryRate, a.ActiveCases)
		}
		return w.Flush()
	},
}

var agenciesRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank agencies for new case assignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		agencies, err := env.Store.ListAgencies(ctx)
		if err != nil {
			return err
		}

		ranked := model.RankAgencies(agencies)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RANK\tNAME\tSTATUS\tCOMPLIANCE\tRECOVERY\tASSIGNABLE")
		for i, a := range ranked {
			assignable := ""
			if a.Assignable() {
				assignable = "yes"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%.0f\t%.0f%%\t%s\n",
				i+1, a.Name, a.Status, a.ComplianceScore, a.RecoveryRate, assignable)
		}
		return w.Flush()
	},
}

var agenciesRiskCmd = &cobra.Command{
	Use:   "risk <agency-id>",
	Short: "Ask the AI analyst to assess an agency's risk posture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		agencies, err := env.Store.ListAgencies(ctx)
		if err != nil {
			return err
		}
		for _, a := range agencies {
			if a.ID == args[0] {
				cmd.Println(env.Insights.AnalyzeAgencyRisk(ctx, a))
				return nil
			}
		}
		return fmt.Errorf("agency %q not found", args[0])
	},
}

func init() {
	agenciesAddCmd.Flags().StringVar(&agencyAddID, "id", "", "agency ID (generated when empty)")
	agenciesAddCmd.Flags().StringVar(&agencyAddRegion, "region", "", "operating region")
	agenciesAddCmd.Flags().StringVar(&agencyAddStatus, "status", string(model.AgencyOnboarding), "engagement status")
	agenciesAddCmd.Flags().StringVar(&agencyAddContact, "contact", "", "contact email")
	agenciesAddCmd.Flags().Float64Var(&agencyAddCompliance, "compliance", 0, "compliance score 0-100")
	agenciesAddCmd.Flags().Float64Var(&agencyAddRecovery, "recovery", 0, "recovery rate 0-100")

	agenciesCmd.AddCommand(agenciesAddCmd, agenciesListCmd, agenciesRecommendCmd, agenciesRiskCmd)
	rootCmd.AddCommand(agenciesCmd)
}
