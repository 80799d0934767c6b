package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"aave-hf-watcher/internal/format"
	"aave-hf-watcher/internal/storage"
)

// Show prints recent samples, or recent notifications when requested.
func (a *App) Show(ctx context.Context, w io.Writer, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx, a.Config.Position.Chain)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	defer closeStore()

	if opts.Notifications {
		records, err := store.ListRecentNotifications(ctx, opts.Limit)
		if err != nil {
			return err
		}
		return printNotifications(w, records)
	}

	samples, err := store.ListRecentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return printSamples(w, samples)
}

func printSamples(w io.Writer, samples []storage.PositionSample) error {
	if len(samples) == 0 {
		fmt.Fprintln(w, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tChain\tHF\tCollateral\tDebt\tUtilization\tBlock")

	for _, sample := range samples {
		block := "-"
		if sample.BlockNumber != nil {
			block = fmt.Sprintf("%d", *sample.BlockNumber)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			sample.SampledAt.UTC().Format(time.RFC3339),
			sample.Chain,
			format.FormatHealthFactor(sample.HealthFactor),
			format.FormatCurrency(sample.TotalCollateral),
			format.FormatCurrency(sample.TotalDebt),
			format.FormatPercent(sample.Utilization),
			block,
		)
	}

	return writer.Flush()
}

func printNotifications(w io.Writer, records []storage.NotificationRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "no notifications found")
		return nil
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tKind\tPriority\tTitle\tDelivered\tError")

	for _, rec := range records {
		errMsg := ""
		if rec.Error != nil {
			errMsg = sanitizeInline(*rec.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%t\t%s\n",
			rec.SentAt.UTC().Format(time.RFC3339),
			rec.Kind,
			rec.Priority,
			sanitizeInline(rec.Title),
			rec.Delivered(),
			errMsg,
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
