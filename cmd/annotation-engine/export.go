// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/annotation-engine/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the record set as a timestamped interchange file",
	Long: `Export dumps the record set into export_<YYYYMMDD_HHMMSS>.jsonl in the
configured output directory, one JSON object per line. Use --owner and
--completed to narrow the export.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("owner", "", "only records held by this annotator")
	exportCmd.Flags().Bool("completed", false, "only records saved at least once")
	exportCmd.Flags().String("out", "", "output directory (overrides config)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := engineConfig()
	s, _, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	owner, _ := cmd.Flags().GetString("owner")
	completed, _ := cmd.Flags().GetBool("completed")
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = cfg.Export.OutputDir
	}

	path, err := s.Export(context.Background(), outDir, store.ExportFilter{
		Owner:         owner,
		CompletedOnly: completed,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}
