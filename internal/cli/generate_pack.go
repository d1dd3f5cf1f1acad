package cli

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"

	"trivia-engine/internal/config"
	"trivia-engine/internal/domain"
)

// NewGeneratePackCmd generates the daily pack, e.g. from a midnight cron job.
func NewGeneratePackCmd(configPath *string) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "generate-pack",
		Short: "Generate the daily quiz pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeneratePack(cmd.Context(), *configPath, date)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "pack date YYYY-MM-DD (default: today in the pack timezone)")
	return cmd
}

func runGeneratePack(ctx context.Context, configPath, rawDate string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	date := domain.DateOf(time.Now(), cfg.Location())
	if rawDate != "" {
		if date, err = domain.ParsePackDate(rawDate); err != nil {
			return err
		}
	}

	svc, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	pack, err := svc.packs.GeneratePack(ctx, date)
	if errors.Is(err, domain.ErrAlreadyExists) {
		log.Printf("pack for %s already generated", date)
		return nil
	}
	if err != nil {
		return err
	}
	for _, slot := range pack.Slots {
		log.Printf("quiz %d: topic %s, questions %v", slot.Index, slot.TopicID, slot.QuestionIDs)
	}
	return nil
}
