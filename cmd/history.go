package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loadq/internal/report"
	"loadq/internal/storage"
	"loadq/internal/styles"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List saved run summaries, or print one as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewStore(viper.GetString("history-path"))
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer store.Close()

		if len(args) == 1 {
			item, err := store.Get(args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			return report.WriteJSON(os.Stdout, item.Summary)
		}

		items, err := store.List()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		printHistory(os.Stdout, items)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Show at most this many runs (0 for all)")
}

func printHistory(w io.Writer, items []storage.HistoryItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, styles.Subtle.Render("No runs saved yet, pass --history to record one."))
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.ColorBorder)).
		Headers("ID", "WHEN", "TARGET", "RATE", "TOTAL", "ERRORS", "SUCCESS", "P95")

	for _, it := range items {
		s := it.Summary
		p95 := "-"
		if s.Overall != nil {
			p95 = fmt.Sprintf("%.1fms", s.Overall.P95Ms)
		}
		id := it.ID
		if len(id) > 8 {
			id = id[:8]
		}
		t.Row(
			id,
			it.Timestamp.Local().Format("2006-01-02 15:04:05"),
			s.Method+" "+s.URL,
			fmt.Sprintf("%g/s", s.Rate),
			fmt.Sprint(s.Total),
			fmt.Sprint(s.ErrorCount),
			fmt.Sprintf("%.1f%%", s.SuccessRate),
			p95,
		)
	}
	fmt.Fprintln(w, t.Render())
}
