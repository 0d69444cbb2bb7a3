package main

import (
	"fmt"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/collections-cli/internal/extract"
	"github.com/sells-group/collections-cli/internal/intake"
	"github.com/sells-group/collections-cli/internal/model"
)

var (
	intakeBlankRows int
	intakeAgencyID  string
	intakeSubmit    bool
)

var intakeCmd = &cobra.Command{
	Use:   "intake [document refs...]",
	Short: "Run a case-intake session over documents and manual rows",
	Long: `Runs one intake session: each document reference (local path, http(s) or
ftp URL) is fetched and extracted into draft rows, spreadsheets are parsed
directly, and --blank adds empty manual rows. With --submit the drafts are
validated and converted into case records; otherwise the drafts are printed
for review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		session := intake.NewSession(model.RoleAdmin)
		session.TargetAgencyID = intakeAgencyID

		if len(args) > 0 {
			if err := extractDocuments(cmd, env, session, args); err != nil {
				return err
			}
		}

		if intakeBlankRows > 0 {
			if err := session.Navigate(intake.ViewManualAdd); err != nil {
				return err
			}
			session.PendingRowCount = intakeBlankRows
			session.Drafts.AddBlankRows(intakeBlankRows)
			if err := session.BackToHub(); err != nil {
				return err
			}
		}

		printDrafts(cmd, session.Drafts.Rows())

		if !intakeSubmit {
			return nil
		}

		coordinator := env.newCoordinator(session)
		receipt, err := coordinator.Submit(ctx, session.Drafts.Rows())
		if receipt == nil {
			return eris.Wrap(err, "intake: submission failed")
		}
		printReceipt(cmd, receipt)
		if len(receipt.Cases) > 0 {
			ids := make([]string, len(receipt.Cases))
			for i, c := range receipt.Cases {
				ids[i] = c.ID
			}
			if rerr := env.Store.RecordReceipt(ctx, receipt.ID, ids); rerr != nil {
				zap.L().Warn("record receipt failed", zap.Error(rerr))
			}
		}
		if err != nil && len(receipt.Cases) == 0 {
			return eris.Wrap(err, "intake: submission failed")
		}
		return nil
	},
}

// extractDocuments fetches and extracts every document reference. Documents
// fan out concurrently, each with its own adapter so the single-flight gate
// applies per upload, and the session's draft table is appended under a
// lock. Sessions are never shared.
func extractDocuments(cmd *cobra.Command, env *intakeEnv, session *intake.Session, refs []string) error {
	ctx := cmd.Context()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Extraction.Concurrency)

	var mu sync.Mutex
	for _, ref := range refs {
		g.Go(func() error {
			doc, err := env.Fetcher.Fetch(gctx, ref)
			if err != nil {
				zap.L().Warn("document fetch failed", zap.String("ref", ref), zap.Error(err))
				cmd.PrintErrf("warning: could not fetch %s: %v\n", ref, err)
				return nil
			}

			var rows []model.DraftRow
			if strings.Contains(doc.MimeType, "spreadsheetml") {
				rows, err = extract.FromXLSX(doc.Data)
			} else {
				rows, err = env.newExtractAdapter().Extract(gctx, doc.Data, doc.MimeType)
			}
			if err != nil {
				// Extraction failures are non-fatal: the session continues
				// with whatever rows other documents produced.
				zap.L().Warn("extraction failed", zap.String("ref", ref), zap.Error(err))
				cmd.PrintErrf("warning: extraction failed for %s: %v\n", ref, err)
				return nil
			}

			mu.Lock()
			session.Drafts.AddExtractedRows(rows)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func printDrafts(cmd *cobra.Command, rows []model.DraftRow) {
	if len(rows) == 0 {
		cmd.Println("no draft rows")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORIGIN\tCUSTOMER\tAMOUNT\tDUE\tPHONE\tEMAIL")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID), r.Origin, r.CustomerName, r.Amount, r.DueDate, r.Phone, r.Email)
	}
	w.Flush()
}

func printReceipt(cmd *cobra.Command, receipt *intake.SubmissionReceipt) {
	cmd.Printf("submitted %d case(s) at %s\n", len(receipt.Cases), receipt.SubmittedAt.Format("2006-01-02 15:04:05"))
	for _, c := range receipt.Cases {
		cmd.Printf("  %s  %-24s %10.2f %s  priority=%s\n",
			shortID(c.ID), c.CustomerName, c.Amount, c.Currency, c.Priority)
	}
	for _, ve := range receipt.Failed {
		cmd.PrintErrf("  rejected row %s: %s (%s)\n", shortID(ve.RowID), ve.Reason, ve.Kind)
	}
	for _, se := range receipt.SinkErrors {
		cmd.PrintErrf("  sink error: %s\n", se)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	intakeCmd.Flags().IntVar(&intakeBlankRows, "blank", 0, "append N blank manual rows")
	intakeCmd.Flags().StringVar(&intakeAgencyID, "agency", "", "target agency for the batch")
	intakeCmd.Flags().BoolVar(&intakeSubmit, "submit", false, "validate and submit the drafts")
	rootCmd.AddCommand(intakeCmd)
}
