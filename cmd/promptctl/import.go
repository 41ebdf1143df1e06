package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/promptmart/internal/app"
	"github.com/timmy/promptmart/internal/service"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var (
		limit    int
		force    bool
		activate bool
	)

	cmd := &cobra.Command{
		Use:   "import <source>",
		Short: "Import a staged catalog manifest into the prompt store",
		Long: `Import reads <catalog.staging_path>/<source>/manifest.jsonl, one listing
per line, uploads images found under images/ and upserts the prompts.
Existing prompts are skipped unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := bootstrap(cmd, root, app.Options{})
			if err != nil {
				return err
			}
			defer cleanup()

			if a.Importer == nil {
				return errors.New("import requires the gorm store")
			}

			src, err := a.OpenSource(args[0])
			if err != nil {
				return err
			}

			stats, err := a.Importer.ImportFromSource(ctx, src, limit, &service.ImportOptions{
				Force:    force,
				Activate: activate,
			})
			if stats != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "source=%s total=%d imported=%d skipped=%d failed=%d duration=%s\n",
					src.GetSourceID(), stats.TotalItems, stats.ImportedItems, stats.SkippedItems, stats.FailedItems,
					stats.EndTime.Sub(stats.StartTime).Round(time.Millisecond))
			}
			if err != nil {
				return err
			}
			if stats.FailedItems > 0 {
				return fmt.Errorf("%d items failed", stats.FailedItems)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of items to import (0 = all)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite prompts that already exist")
	cmd.Flags().BoolVar(&activate, "activate", false, "Publish imported prompts immediately")
	return cmd
}
