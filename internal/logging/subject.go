package logging

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FormatSubject builds the workflow/item/stage subject string used in console output.
func FormatSubject(workflow, itemID, stage string) string {
	workflow = strings.TrimSpace(workflow)
	itemID = strings.TrimSpace(itemID)
	stage = strings.TrimSpace(stage)
	parts := make([]string, 0, 2)
	if workflow != "" {
		parts = append(parts, cases.Title(language.Und).String(workflow))
	}
	switch {
	case itemID != "" && stage != "":
		parts = append(parts, itemID+" ("+stage+")")
	case itemID != "":
		parts = append(parts, itemID)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}
