package assistant

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/MrCodeEU/facekiosk/pkg/attendance"
)

// NoData stands in for the statistics and listing when the log is empty.
const NoData = "no data"

//go:embed prompts/query.tmpl
var queryPrompt string

var queryTemplate = template.Must(template.New("query").Parse(queryPrompt))

// BuildPrompt fills the query template. Empty stats or listing are replaced
// by NoData.
func BuildPrompt(stats, listing, question string) (string, error) {
	if strings.TrimSpace(stats) == "" {
		stats = NoData
	}
	if strings.TrimSpace(listing) == "" {
		listing = NoData
	}

	var sb strings.Builder
	err := queryTemplate.Execute(&sb, struct {
		Stats, Listing, Question string
	}{stats, strings.TrimRight(listing, "\n"), question})
	if err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return sb.String(), nil
}

// Summarize renders a short statistical summary of records. It returns an
// empty string for an empty log.
func Summarize(records []attendance.Record) string {
	if len(records) == 0 {
		return ""
	}

	type person struct {
		id, name string
		count    int
	}
	people := make(map[string]*person)
	dates := make(map[string]struct{})
	var firstDate, lastDate, earliest, latest string
	demo := 0

	for i, r := range records {
		p, ok := people[r.EmployeeID]
		if !ok {
			p = &person{id: r.EmployeeID, name: r.Name}
			people[r.EmployeeID] = p
		}
		p.count++
		dates[r.Date] = struct{}{}
		if r.Kind == attendance.KindDemo {
			demo++
		}

		if i == 0 || r.Date < firstDate {
			firstDate = r.Date
		}
		if i == 0 || r.Date > lastDate {
			lastDate = r.Date
		}
		if i == 0 || r.Time < earliest {
			earliest = r.Time
		}
		if i == 0 || r.Time > latest {
			latest = r.Time
		}
	}

	ids := make([]string, 0, len(people))
	for id := range people {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	fmt.Fprintf(&sb, "records: %d\n", len(records))
	if demo > 0 {
		fmt.Fprintf(&sb, "demo records: %d\n", demo)
	}
	fmt.Fprintf(&sb, "employees: %d\n", len(people))
	fmt.Fprintf(&sb, "dates: %s to %s (%d days)\n", firstDate, lastDate, len(dates))
	fmt.Fprintf(&sb, "earliest check-in time: %s\n", earliest)
	fmt.Fprintf(&sb, "latest check-in time: %s\n", latest)
	sb.WriteString("check-ins per employee:\n")
	for _, id := range ids {
		p := people[id]
		fmt.Fprintf(&sb, "  %s %s: %d\n", p.id, p.name, p.count)
	}
	return strings.TrimRight(sb.String(), "\n")
}
