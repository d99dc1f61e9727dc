package movienight

import (
	"fmt"
	"strconv"
	"strings"

	"filmklub/internal/catalog"
	"filmklub/internal/storage"
)

// TruncatePlot cuts plot to at most 500 characters at the last space and
// appends "...". Shorter plots are returned unchanged.
func TruncatePlot(plot string) string {
	runes := []rune(plot)
	if len(runes) <= maxPlotLength {
		return plot
	}
	cut := string(runes[:maxPlotLength])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

// EventName is "Movie Night: <Title> (<Year>)".
func EventName(t *catalog.Title) string {
	return fmt.Sprintf("%s %s (%s)", EventMarker, t.PrimaryTitle, yearText(t.StartYear))
}

// Describe renders the scheduled event description.
func Describe(t *catalog.Title) string {
	var b strings.Builder
	if plot := TruncatePlot(t.Plot); plot != "" {
		fmt.Fprintf(&b, "\n*%s*\n\n", plot)
	} else {
		b.WriteString("\n")
	}

	duration := "N/A"
	if t.RuntimeSeconds > 0 {
		duration = strconv.Itoa(t.RuntimeSeconds/60) + " minutes"
	}

	fmt.Fprintf(&b, "**Genres:** %s\n", catalog.JoinGenres(t.Genres))
	fmt.Fprintf(&b, "**Duration:** %s\n", duration)
	fmt.Fprintf(&b, "**Directors:** %s\n", catalog.JoinPeople(t.Directors))
	fmt.Fprintf(&b, "**Writers:** %s\n", catalog.JoinPeople(t.Writers))
	fmt.Fprintf(&b, "**Stars:** %s\n", catalog.JoinPeople(t.Stars))
	fmt.Fprintf(&b, "**Country:** %s\n", catalog.JoinNamed(t.OriginCountries))
	fmt.Fprintf(&b, "**Languages:** %s\n", catalog.JoinNamed(t.SpokenLanguages))
	fmt.Fprintf(&b, "**IMDb Rating:** %s\n", t.RatingText())
	fmt.Fprintf(&b, "**Metacritic:** %s\n", t.MetacriticText())
	return b.String()
}

func yearText(y int) string {
	if y == 0 {
		return "N/A"
	}
	return strconv.Itoa(y)
}

// HistoryLine renders one numbered history entry.
func HistoryLine(i int, n storage.Night) string {
	if !n.Rated() {
		return fmt.Sprintf("%d. **%s** — not rated yet", i, n.MovieName)
	}
	return fmt.Sprintf("%d. **%s** — %.1f/10 (%d votes)", i, n.MovieName, *n.RatingScore, *n.RatingVotes)
}

// FormatHistory renders nights as numbered lines, newest first.
func FormatHistory(nights []storage.Night) string {
	lines := make([]string, len(nights))
	for i, n := range nights {
		lines[i] = HistoryLine(i+1, n)
	}
	return strings.Join(lines, "\n")
}
