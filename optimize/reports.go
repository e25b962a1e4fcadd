package optimize

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

/*
PrintTop
Render the best n settings of a sweep as a console table; failed settings
follow the scored ones with their failure text.
*/
func PrintTop(w io.Writer, results []*TaskResult, n int) {
	if n > len(results) {
		n = len(results)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Params", "Score", "Error"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i := 0; i < n; i++ {
		tr := results[i]
		score := strconv.FormatFloat(tr.Score, 'f', 4, 64)
		if tr.Err != "" {
			score = "-"
		}
		table.Append([]string{strconv.Itoa(i + 1), paramsText(tr.Params), score, tr.Err})
	}
	table.Render()
}

func paramsText(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, ", ")
}
