package services

import (
	"fmt"
	"strings"
	"time"

	"casefile-progress/models"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EvidenceTemplate is the static part of an evidence record.
type EvidenceTemplate struct {
	Title   string
	Content string
}

// EvidenceCatalog maps a case id to the evidence unlocked by closing it.
type EvidenceCatalog map[string][]EvidenceTemplate

var DefaultEvidenceCatalog = EvidenceCatalog{
	"case-001": {
		{Title: "Broken Heading", Content: "The page title was wrapped in a <div> instead of an <h1>."},
		{Title: "Witness Statement", Content: "Screen readers skipped the headline entirely."},
	},
	"case-002": {
		{Title: "Missing Alt Text", Content: "Every image on the gallery page had an empty alt attribute."},
	},
	"case-003": {
		{Title: "Specificity Ledger", Content: "An !important rule overrode the theme color on every button."},
		{Title: "Cascade Timeline", Content: "The reset stylesheet was loaded after the site stylesheet."},
	},
	"case-004": {
		{Title: "Collapsed Flexbox", Content: "The sidebar shrank to zero width because flex-shrink was left at 1."},
	},
	"case-005": {
		{Title: "Orphaned Label", Content: "The signup form label pointed at an input id that did not exist."},
		{Title: "Form Submission Log", Content: "Submissions arrived without the email field set."},
	},
}

// For builds the evidence records for caseID discovered at. Unknown case ids
// get a single generated case file.
func (c EvidenceCatalog) For(caseID string, at time.Time) []models.Evidence {
	templates, ok := c[caseID]
	if !ok || len(templates) == 0 {
		templates = []EvidenceTemplate{caseFile(caseID)}
	}
	out := make([]models.Evidence, 0, len(templates))
	for _, t := range templates {
		out = append(out, models.Evidence{
			ID:           slug.Make(caseID + " " + t.Title),
			CaseID:       caseID,
			Title:        t.Title,
			Content:      t.Content,
			DiscoveredAt: at,
		})
	}
	return out
}

func caseFile(caseID string) EvidenceTemplate {
	name := strings.NewReplacer("-", " ", "_", " ").Replace(caseID)
	title := cases.Title(language.English).String(strings.TrimSpace(name))
	return EvidenceTemplate{
		Title:   "Case File: " + title,
		Content: fmt.Sprintf("Notes filed after closing case %s.", caseID),
	}
}
