package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loykin/intentrun"
	"github.com/loykin/intentrun/cmd/intentrun/config"
	"github.com/loykin/intentrun/internal/result"
)

var (
	historyRuns  int
	historyRunID string
)

// errStoreDisabled is returned when history is requested without a configured store.
var errStoreDisabled = errors.New("history store is disabled (set store.type or --store)")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous runs saved in the history store",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		return executeHistory(cmd.Context(), doc, os.Stdout, historyRuns, historyRunID)
	},
}

func executeHistory(ctx context.Context, doc *config.ConfigDoc, out io.Writer, limit int, runID string) error {
	sc := doc.Store.ToStoreConfig()
	if sc == nil {
		return errStoreDisabled
	}
	st, err := intentrun.OpenStore(ctx, *sc)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if runID != "" {
		outcomes, err := st.Outcomes(ctx, runID)
		if err != nil {
			return err
		}
		printOutcomes(out, runID, outcomes)
		return nil
	}

	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	printRuns(out, runs)
	return nil
}

func printRuns(out io.Writer, runs []intentrun.StoredRun) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN ID\tSTARTED\tTOTAL\tSUCCESS\tERROR\tVALIDATION\tTIMEOUT\tSUCCESS %")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.1f\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Stats.Total, r.Stats.Success, r.Stats.Error, r.Stats.ValidationFailures, r.Stats.Timeout,
			r.Stats.Percent(result.BucketSuccess))
	}
	_ = tw.Flush()
}

func printOutcomes(out io.Writer, runID string, outcomes []intentrun.Outcome) {
	if len(outcomes) == 0 {
		_, _ = fmt.Fprintf(out, "No outcomes recorded for run %s\n", runID)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tSERVICE\tKIND\tINTENT\tERROR")
	for i, o := range outcomes {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, o.ServiceName, o.Kind, o.Intent, o.ErrorText())
	}
	_ = tw.Flush()
}
