package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"termcore/internal/adapters/exports"
	"termcore/internal/blob"
	"termcore/internal/core"
	"termcore/internal/log"
)

var (
	exportVersion string
	exportTimeout time.Duration
)

var exportCmd = &cobra.Command{
	Use:   "export <collection-id>",
	Short: "Export a collection version archive to the configured blob store",
	Long: `Export a numbered collection version as a .tgz archive and publish it to
the blob store selected by TERMCORE_BLOB_DRIVER. Without --version the latest
released version is exported. The storage backend is selected by
TERMCORE_STORAGE_DRIVER.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := log.FromEnv()

		store, err := core.OpenPersistentStore()
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		blobStore, err := blob.Open(ctx)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}

		service := core.NewService(store, core.WithLogger(logger))
		worker := exports.NewWorker(service, blobStore, logger)
		worker.Start()
		defer func() { _ = worker.Stop(ctx) }()

		record, err := worker.Enqueue(ctx, exports.Input{
			CollectionID: args[0],
			Version:      exportVersion,
		})
		if err != nil {
			return err
		}

		deadline := time.Now().Add(exportTimeout)
		for {
			current, ok := worker.Get(record.ID)
			if !ok {
				return fmt.Errorf("export %s disappeared", record.ID)
			}
			switch current.Status {
			case exports.StatusSucceeded:
				fmt.Fprintln(cmd.OutOrStdout(), current.Key)
				return nil
			case exports.StatusFailed:
				return fmt.Errorf("export failed: %s", current.Error)
			}
			if time.Now().After(deadline) {
				return fmt.Errorf("export %s timed out after %s", record.ID, exportTimeout)
			}
			time.Sleep(50 * time.Millisecond)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportVersion, "version", "", "version mnemonic to export (default: latest released)")
	exportCmd.Flags().DurationVar(&exportTimeout, "timeout", time.Minute, "maximum time to wait for the export")
}
