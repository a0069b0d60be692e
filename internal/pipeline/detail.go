package pipeline

import (
	"github.com/sells-group/nosite-cli/internal/model"
	"github.com/sells-group/nosite-cli/pkg/places"
)

// officialWebsiteText labels the synthetic link built from the provider's
// website field.
const officialWebsiteText = "Official Website"

// recordFromDetail maps a candidate and its detail response onto a
// BusinessRecord. Absent provider fields map to empty containers: no website
// means an empty Links slice, no phone means an empty Phones slice.
func recordFromDetail(candidate model.PlaceCandidate, detail *places.PlaceDetail) model.BusinessRecord {
	rec := model.BusinessRecord{
		Name:        candidate.Name,
		MapsURL:     candidate.MapsURL,
		Links:       []model.Link{},
		Phones:      []string{},
		TextSnippet: detail.EditorialSummary.Overview,
	}

	if detail.Website != "" {
		rec.Links = append(rec.Links, model.Link{URL: detail.Website, Text: officialWebsiteText})
	}
	if detail.FormattedPhoneNumber != "" {
		rec.Phones = append(rec.Phones, detail.FormattedPhoneNumber)
	}

	return rec
}
