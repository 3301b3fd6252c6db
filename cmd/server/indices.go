package main

import (
	"github.com/spf13/cobra"

	"github.com/fastygo/ocxers/internal/indices"
)

func newIndicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "indices",
		Short: "Create missing document store indices and exit",
		Args:  cobra.NoArgs,
		RunE:  runIndices,
	}
}

func runIndices(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, err := openStore(cmd.Context(), cfg.Store, log)
	if err != nil {
		return err
	}
	defer store.Close()

	indices.EnsureAll(cmd.Context(), store)
	log.Info("indices ensured")
	return nil
}
