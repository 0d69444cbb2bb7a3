package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/collections-cli/internal/sla"
	"github.com/sells-group/collections-cli/internal/store"
)

var slaCmd = &cobra.Command{
	Use:   "sla",
	Short: "Manage the SLA policy and run breach checks",
}

var slaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active SLA policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := sla.LoadPolicy(cfg.SLA.PolicyPath)
		if err != nil {
			return err
		}
		cmd.Printf("first contact:          %d days\n", policy.FirstContactDays)
		cmd.Printf("update frequency:       %d days\n", policy.UpdateFrequencyDays)
		cmd.Printf("max case duration:      %d days\n", policy.MaxCaseDurationDays)
		cmd.Printf("promise follow-up:      %d days\n", policy.PromiseFollowUpDays)
		cmd.Printf("escalation inactivity:  %d days\n", policy.EscalationInactivityDays)
		return nil
	},
}

var (
	slaFirstContact  int
	slaUpdateFreq    int
	slaMaxDuration   int
	slaPromiseFollow int
	slaEscalation    int
)

var slaSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update SLA thresholds and persist the policy file",
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := sla.LoadPolicy(cfg.SLA.PolicyPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("first-contact") {
			policy.FirstContactDays = slaFirstContact
		}
		if cmd.Flags().Changed("update-frequency") {
			policy.UpdateFrequencyDays = slaUpdateFreq
		}
		if cmd.Flags().Changed("max-duration") {
			policy.MaxCaseDurationDays = slaMaxDuration
		}
		if cmd.Flags().Changed("promise-follow-up") {
			policy.PromiseFollowUpDays = slaPromiseFollow
		}
		if cmd.Flags().Changed("escalation-inactivity") {
			policy.EscalationInactivityDays = slaEscalation
		}
		if err := sla.SavePolicy(cfg.SLA.PolicyPath, policy); err != nil {
			return err
		}
		cmd.Printf("policy written to %s\n", cfg.SLA.PolicyPath)
		return nil
	},
}

var slaCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate open cases against the policy and record breaches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cases, err := loadCases(ctx, env.Store, store.CaseFilter{})
		if err != nil {
			return err
		}

		monitor := sla.NewMonitor(env.Policy)
		breaches := monitor.Evaluate(cases, time.Now().UTC())
		if len(breaches) == 0 {
			cmd.Println("no SLA breaches")
			return nil
		}

		for _, b := range breaches {
			for _, c := range cases {
				if c.ID != b.CaseID {
					continue
				}
				if err := env.Store.UpdateCase(ctx, *c); err != nil {
					zap.L().Error("persist breach failed",
						zap.String("case_id", c.ID), zap.Error(err))
				}
			}
			cmd.Printf("%s\t%s\n", shortID(b.CaseID), b.Reason)
		}
		cmd.Printf("%d breach(es) recorded\n", len(breaches))
		return nil
	},
}

var slaInsightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Ask the AI analyst for one SLA improvement",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		cmd.Println(env.Insights.SLAInsights(ctx,
			env.Policy.FirstContactDays, env.Policy.EscalationInactivityDays))
		return nil
	},
}

func init() {
	slaSetCmd.Flags().IntVar(&slaFirstContact, "first-contact", 0, "first contact window in days")
	slaSetCmd.Flags().IntVar(&slaUpdateFreq, "update-frequency", 0, "expected update cadence in days")
	slaSetCmd.Flags().IntVar(&slaMaxDuration, "max-duration", 0, "maximum case duration in days")
	slaSetCmd.Flags().IntVar(&slaPromiseFollow, "promise-follow-up", 0, "promise-to-pay follow-up window in days")
	slaSetCmd.Flags().IntVar(&slaEscalation, "escalation-inactivity", 0, "inactivity threshold in days")

	slaCmd.AddCommand(slaShowCmd, slaSetCmd, slaCheckCmd, slaInsightsCmd)
	rootCmd.AddCommand(slaCmd)
}
