package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"arena/internal/store"
)

// Leaderboard is a ranked list of totals
type Leaderboard []store.Totals

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Leaderboard:
		o.printLeaderboard(v)
	case store.Totals:
		o.printTotals(v)
	case store.User:
		fmt.Fprintf(o.w, "User:    %s\nID:      %s\nCreated: %s\n", v.Username, v.ID, v.CreatedAt.Format("2006-01-02 15:04:05"))
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printLeaderboard(top Leaderboard) {
	if len(top) == 0 {
		fmt.Fprintln(o.w, "No games recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPLAYER\tKILLS\tDEATHS\tGAMES")
	for i, t := range top {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", i+1, t.Username, t.Kills, t.Deaths, t.GamesPlayed)
	}
	tw.Flush()
}

func (o *Output) printTotals(t store.Totals) {
	fmt.Fprintf(o.w, "User:   %s (%s)\n", t.Username, t.UserID)
	fmt.Fprintf(o.w, "Kills:  %d\n", t.Kills)
	fmt.Fprintf(o.w, "Deaths: %d\n", t.Deaths)
	fmt.Fprintf(o.w, "Games:  %d\n", t.GamesPlayed)
}
