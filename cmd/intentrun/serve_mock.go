package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/loykin/intentrun"
	"github.com/loykin/intentrun/cmd/intentrun/config"
	"github.com/loykin/intentrun/internal/mockapi"
)

var serveMockCmd = &cobra.Command{
	Use:   "serve-mock",
	Short: "Serve a local classification API that answers from the intents CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return executeServeMock(ctx, doc)
	},
}

func executeServeMock(ctx context.Context, doc *config.ConfigDoc) error {
	recs, err := intentrun.ReadRecords(doc.Run.CSVFile)
	if err != nil {
		return err
	}
	srv := mockapi.New(recs, mockapi.Options{Latency: doc.Mock.Latency})
	return srv.ListenAndServe(ctx, doc.Mock.Addr)
}
