package panels

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"neuroflow/internal/compute"
)

// parseFloatEntry reads a float field. Empty means disabled and comes
// back as zero.
func parseFloatEntry(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", text)
	}
	return v, nil
}

// parseRequiredFloat reads a float field that must not be empty.
func parseRequiredFloat(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("value required")
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", text)
	}
	return v, nil
}

// formatFloat renders a float for an entry field.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parseIndexList reads a comma- or space-separated list of indices.
func parseIndexList(text string) ([]int, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no indices given")
	}
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("not an index: %q", f)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative index: %d", n)
		}
		out = append(out, n)
	}
	return out, nil
}

// summarizeInfo formats the dataset summary for the side panel.
func summarizeInfo(info *compute.DatasetInfo) string {
	if info == nil {
		return "No dataset loaded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d channels, %.0f Hz\n", info.NChannels, info.SampleRate)
	fmt.Fprintf(&b, "%d samples (%.1f s)\n", info.NSamples, info.Duration)
	if !info.MeasDate.IsZero() {
		fmt.Fprintf(&b, "Recorded %s\n", info.MeasDate.Format("2006-01-02 15:04:05"))
	}
	types := make([]string, 0, len(info.TypeCounts))
	for t, n := range info.TypeCounts {
		types = append(types, fmt.Sprintf("%d %s", n, t))
	}
	sort.Strings(types)
	b.WriteString(strings.Join(types, ", "))
	if info.Positioned > 0 {
		fmt.Fprintf(&b, "\n%d electrodes positioned", info.Positioned)
	}
	return b.String()
}

// summarizeEvents formats the event census for the side panel.
func summarizeEvents(info *compute.DatasetInfo) string {
	if info == nil || len(info.EventCounts) == 0 {
		return "No events"
	}
	labels := sortedEventLabels(info)
	var b strings.Builder
	for i, label := range labels {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %d", label, info.EventCounts[label])
	}
	return b.String()
}

// sortedEventLabels lists the event labels in natural order.
func sortedEventLabels(info *compute.DatasetInfo) []string {
	if info == nil {
		return nil
	}
	labels := make([]string, 0, len(info.EventCounts))
	for label := range info.EventCounts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return naturalLess(labels[i], labels[j]) })
	return labels
}

// naturalLess compares two strings using natural numeric ordering, so
// "S 2" sorts before "S 10" and "Fp1" before "Fp2".
func naturalLess(a, b string) bool {
	chunksA := splitNatural(a)
	chunksB := splitNatural(b)
	for i := 0; i < len(chunksA) && i < len(chunksB); i++ {
		ca, cb := chunksA[i], chunksB[i]
		if isNumeric(ca) && isNumeric(cb) {
			na := parseNum(ca)
			nb := parseNum(cb)
			if na != nb {
				return na < nb
			}
		} else {
			cmp := strings.Compare(strings.ToUpper(ca), strings.ToUpper(cb))
			if cmp != 0 {
				return cmp < 0
			}
		}
	}
	return len(chunksA) < len(chunksB)
}

func splitNatural(s string) []string {
	var chunks []string
	var current strings.Builder
	wasDigit := false
	for i, r := range s {
		isDigit := r >= '0' && r <= '9'
		if i > 0 && isDigit != wasDigit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteRune(r)
		wasDigit = isDigit
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func parseNum(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
		}
	}
	return n
}
