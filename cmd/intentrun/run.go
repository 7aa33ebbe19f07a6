package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/intentrun"
	"github.com/loykin/intentrun/cmd/intentrun/config"
	"github.com/loykin/intentrun/internal/common"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Probe the API, replay every intent from the CSV file and write a JSON report",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	doc, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	_, err = executeRun(ctx, doc, os.Stdout)
	return err
}

// executeRun runs the harness described by doc, writing the live log to out.
func executeRun(ctx context.Context, doc *config.ConfigDoc, out io.Writer) (*intentrun.Result, error) {
	logger := common.GetLogger().WithComponent("run")
	h := doc.Harness()
	h.Out = out

	res, err := h.Run(ctx)
	if errors.Is(err, context.Canceled) && res != nil {
		logger.Warn("run interrupted, partial results reported", "processed", res.Stats.Total)
	}
	return res, err
}
