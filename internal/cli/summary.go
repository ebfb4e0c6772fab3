package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/mediafetch/internal/models"
)

func printSummary(w io.Writer, sum models.RunSummary) {
	elapsed := sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second)
	fmt.Fprintf(w, "Run %s finished in %s\n", sum.RunID, elapsed)
	fmt.Fprintf(w, "  total: %d  completed: %d  skipped: %d  failed: %d  cancelled: %d\n",
		sum.Total, sum.Completed, len(sum.Skipped), len(sum.Failed), len(sum.Cancelled))

	if len(sum.Failed) > 0 {
		fmt.Fprintln(w, "  failed:")
		for _, u := range sum.Failed {
			fmt.Fprintf(w, "    - %s\n", u)
		}
	}
}
