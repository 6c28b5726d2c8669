package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// StepRow is one line of a step table.
type StepRow struct {
	Index  int
	Action string
	Detail string
}

// StepTable renders the steps of a script as a table.
func StepTable(w io.Writer, title string, rows []StepRow) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	table := tablewriter.NewWriter(w)
	table.Header("#", "Action", "Detail")
	for _, r := range rows {
		if err := table.Append([]string{fmt.Sprint(r.Index + 1), r.Action, r.Detail}); err != nil {
			return err
		}
	}
	return table.Render()
}
