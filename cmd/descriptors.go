package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/descriptor"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var descriptorsCmd = &cobra.Command{
	Use:   "descriptors",
	Short: "Inspect and maintain the descriptor file",
}

var descriptorsInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what the descriptor file contains",
	RunE:  runDescriptorsInfo,
}

var descriptorsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove descriptors of people that no longer exist",
	Long: `Check every person referenced by the descriptor file against the owner
store and remove the descriptors of those that were deleted. Recognition
repairs these lazily, prune does it for the whole file at once.`,
	RunE: runDescriptorsPrune,
}

func init() {
	rootCmd.AddCommand(descriptorsCmd)
	descriptorsCmd.AddCommand(descriptorsInfoCmd)
	descriptorsCmd.AddCommand(descriptorsPruneCmd)
}

func runDescriptorsInfo(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Descriptors.Path == "" {
		return fmt.Errorf("DESCRIPTOR_PATH environment variable is required")
	}

	logger, err := logging.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	stat, err := os.Stat(cfg.Descriptors.Path)
	if err != nil {
		return fmt.Errorf("descriptor file: %w", err)
	}

	store := descriptor.NewStore(cfg.Descriptors.Path, cfg.Embedding.Dim, logger)
	store.Load()

	perOwner := make(map[string]int)
	for _, e := range store.Snapshot().Entries {
		perOwner[e.OwnerID]++
	}

	fmt.Printf("File:        %s (%d bytes, modified %s)\n", cfg.Descriptors.Path, stat.Size(), stat.ModTime().Format("2006-01-02 15:04:05"))
	fmt.Printf("Descriptors: %d\n", store.Len())
	fmt.Printf("Dimensions:  %d\n", store.Dim())
	fmt.Printf("Owners:      %d\n", len(perOwner))
	multi := 0
	for _, n := range perOwner {
		if n > 1 {
			multi++
		}
	}
	if multi > 0 {
		fmt.Printf("Owners with several faces: %d\n", multi)
	}
	return nil
}

func runDescriptorsPrune(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	owners := len(a.store.OwnerIDs())
	if owners == 0 {
		fmt.Println("Descriptor store is empty.")
		return nil
	}

	bar := progressbar.NewOptions(owners,
		progressbar.OptionSetDescription("Checking owners"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	res, err := a.svc.Prune(ctx, func(done, total int) {
		_ = bar.Set(done)
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("prune failed after %d owners: %w", res.OwnersChecked, err)
	}

	fmt.Printf("\nChecked %d owners, %d missing, removed %d descriptors\n",
		res.OwnersChecked, len(res.OwnersMissing), res.Evicted)
	for _, id := range res.OwnersMissing {
		fmt.Printf("  %s\n", id)
	}
	return nil
}
