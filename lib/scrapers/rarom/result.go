package rarom

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"raritp-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	StatusValid    = "Valid"
	StatusNotFound = "Not Found"
	DateUnknown    = "Unknown"
)

// Outcome is the normalized result of one portal query.
type Outcome struct {
	Status         string
	ExpirationDate string
}

// the portal prints dates with Romanian month abbreviations
var monthNumbers = map[string]string{
	"ian":  "01",
	"feb":  "02",
	"mar":  "03",
	"apr":  "04",
	"mai":  "05",
	"iun":  "06",
	"iul":  "07",
	"aug":  "08",
	"sept": "09",
	"oct":  "10",
	"nov":  "11",
	"dec":  "12",
}

// ParseResult normalizes the post-submission HTML into an Outcome.
// Two historical layouts are understood; a date that parses in neither
// degrades to Unknown instead of failing the whole fetch.
func ParseResult(ctx context.Context, page string) Outcome {
	content := page
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		container := doc.Find("#" + resultContainerId)
		if container.Length() > 0 {
			content = container.Text()
		} else {
			// older portal revisions render the verdict without the
			// container, straight into the body
			content = doc.Text()
		}
	} else {
		slog.WarnContext(ctx, "failed to parse result page, falling back to raw text", "err", err)
		doc = nil
	}
	lower := strings.ToLower(content)

	out := Outcome{Status: StatusNotFound, ExpirationDate: DateUnknown}
	if strings.Contains(lower, noRecordMarker) {
		return out
	}
	out.Status = StatusValid

	if idx := strings.Index(lower, validUntilMarker); idx >= 0 {
		date, err := parseCurrentDate(ctx, lower[idx+len(validUntilMarker):])
		if err != nil {
			slog.WarnContext(ctx, "failed to parse expiration date", "err", err)
			return out
		}
		out.ExpirationDate = date
		return out
	}

	if doc != nil && strings.Contains(lower, strings.ToLower(legacyDateMarker)) {
		date, err := parseLegacyDate(doc)
		if err != nil {
			slog.WarnContext(ctx, "failed to parse legacy-format expiration date", "err", err)
			return out
		}
		out.ExpirationDate = date
	}
	return out
}

// current format: "valabilă până la 5-mar-2026", possibly followed by
// more prose. the fragment passed in starts right after the marker.
func parseCurrentDate(ctx context.Context, fragment string) (string, error) {
	fields := strings.Fields(fragment)
	if len(fields) == 0 {
		return "", fmt.Errorf("nothing follows the validity marker")
	}

	raw := strings.Trim(fields[0], ".")
	parts := strings.Split(raw, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("unexpected date shape %q", raw)
	}
	day, monthAbbr, year := parts[0], parts[1], parts[2]

	month, ok := monthNumbers[monthAbbr]
	if !ok {
		// preserved upstream behavior; january is almost certainly
		// wrong here, hence the loud warning
		slog.WarnContext(ctx, "unmapped Romanian month abbreviation, defaulting to 01",
			"abbreviation", monthAbbr, "raw_date", raw)
		month = "01"
	}

	if len(day) == 1 {
		day = "0" + day
	}
	return fmt.Sprintf("%s-%s-%s", year, month, day), nil
}

// legacy format: a "Data expirării" label whose following table cell
// holds "dd.mm.yyyy".
func parseLegacyDate(doc *goquery.Document) (string, error) {
	if len(doc.Nodes) == 0 {
		return "", fmt.Errorf("empty document")
	}
	label := htmlutil.FindTextNode(doc.Nodes[0], legacyDateMarker)
	if label == nil {
		return "", fmt.Errorf("label %q not found in any text node", legacyDateMarker)
	}

	raw := htmlutil.FollowingText(label)
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("unexpected legacy date shape %q", raw)
	}
	return fmt.Sprintf("%s-%s-%s", parts[2], parts[1], parts[0]), nil
}
