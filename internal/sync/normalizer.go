package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/fundsync/fundsync/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// geographyNationwide is the default when a provider supplies no state or
// region information.
const geographyNationwide = "nationwide"

var htmlPolicy = bluemonday.UGCPolicy()

// finalizeOpportunity applies the uniform defaulting rules every adapter
// shares after provider-specific field mapping:
//   - text fields sanitized (valid UTF-8, HTML stripped from title/sponsor,
//     description cleaned of unsafe tags)
//   - missing deadline -> rolling with nil date
//   - amounts stay nil when absent (zero is a valid funding amount),
//     swapped when min > max
//   - empty geography -> ["nationwide"]
func finalizeOpportunity(opp *models.Opportunity) {
	opp.Title = cleanText(htmlToText(sanitizeUTF8(opp.Title)))
	opp.Sponsor = cleanText(htmlToText(sanitizeUTF8(opp.Sponsor)))
	opp.Agency = cleanText(sanitizeUTF8(opp.Agency))
	opp.Description = htmlPolicy.Sanitize(sanitizeUTF8(opp.Description))

	if opp.DeadlineDate == nil {
		opp.DeadlineType = models.DeadlineRolling
	} else if opp.DeadlineType == "" {
		opp.DeadlineType = models.DeadlineFixed
	}

	if opp.AmountMin != nil && opp.AmountMax != nil && *opp.AmountMin > *opp.AmountMax {
		opp.AmountMin, opp.AmountMax = opp.AmountMax, opp.AmountMin
	}

	if len(opp.Geography) == 0 {
		opp.Geography = []string{geographyNationwide}
	}
}

// validateOpportunity decides whether a normalized record may enter the
// batch. ExternalID, title and sponsor are always required; providers that
// publish award totals additionally require a minimum amount. A failing
// record is dropped, never fatal to the run.
func validateOpportunity(opp models.Opportunity, requireAmount bool) error {
	if strings.TrimSpace(opp.ExternalID) == "" {
		return fmt.Errorf("missing external id")
	}
	if strings.TrimSpace(opp.Title) == "" {
		return fmt.Errorf("missing title")
	}
	if strings.TrimSpace(opp.Sponsor) == "" {
		return fmt.Errorf("missing sponsor")
	}
	if requireAmount && opp.AmountMin == nil {
		return fmt.Errorf("missing award amount")
	}
	return nil
}

// cleanText collapses whitespace and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// htmlToText converts HTML to plain text, collapsing whitespace.
func htmlToText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return html
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return cleanText(doc.Text())
}

// sanitizeUTF8 removes invalid byte sequences that would break Postgres.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// truncateText cuts a string to at most maxLen bytes, appending an ellipsis
// if truncated. The cut always lands on a rune boundary.
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	if maxLen > 3 {
		cut = maxLen - 3
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if maxLen > 3 {
		return text[:cut] + "..."
	}
	return text[:cut]
}

// parseAmountString handles the award amounts providers ship as strings,
// e.g. "$1,500,000" or "250000.00".
func parseAmountString(s string) (float64, bool) {
	clean := strings.TrimSpace(s)
	clean = strings.ReplaceAll(clean, "$", "")
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

// floatPtr is the shared helper for optional amounts.
func floatPtr(v float64) *float64 {
	return &v
}

// parseProviderDate tries a provider's date layouts in order. Returned
// times are normalized to end of day UTC so a deadline stays open through
// its closing date.
func parseProviderDate(raw string, layouts ...string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
			return &t
		}
	}
	return nil
}

// Date layouts seen across the provider set.
const (
	layoutISO      = "2006-01-02"
	layoutUSSlash  = "01/02/2006" // MM/DD/YYYY (grants.gov, sam.gov, NSF)
	layoutRFC3339D = time.RFC3339
)
