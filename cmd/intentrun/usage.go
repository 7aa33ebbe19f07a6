package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/intentrun/cmd/intentrun/config"
	"github.com/loykin/intentrun/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print how much of the OpenRouter API key was used",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return executeUsage(ctx, doc, os.Stdout)
	},
}

func executeUsage(ctx context.Context, doc *config.ConfigDoc, out io.Writer) error {
	c, err := usage.New(doc.Client.ToOptions(), doc.Usage.URL, doc.Usage.Key(), doc.Usage.Timeout)
	if err != nil {
		return err
	}
	u, err := c.Query(ctx)
	if err != nil {
		return err
	}
	u.Print(out)
	return nil
}
