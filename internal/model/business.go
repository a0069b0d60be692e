// Package model defines the domain types shared across the discovery and
// classification pipeline.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// mapsPlaceURLPrefix builds a Google Maps deep link from a place ID.
const mapsPlaceURLPrefix = "https://www.google.com/maps/place/?q=place_id:"

// MapsPlaceURL returns the Google Maps URL for a place ID.
func MapsPlaceURL(placeID string) string {
	return mapsPlaceURLPrefix + placeID
}

// PlaceCandidate is a place returned by the proximity search, not yet
// detail-fetched. PlaceID is the identity key.
type PlaceCandidate struct {
	Name     string
	PlaceID  string
	Vicinity string
	MapsURL  string
}

// Link is a single outbound link found on a business listing.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// BusinessRecord is a candidate enriched with website and contact evidence,
// the unit submitted to classification. Reason is set exactly once, by the
// classifier, and only for businesses judged NO_WEBSITE.
type BusinessRecord struct {
	Name        string
	MapsURL     string
	Links       []Link
	Phones      []string
	TextSnippet string
	Reason      string
}

// VerdictStatus is the classifier's decision for one business.
type VerdictStatus string

const (
	// StatusHasWebsite marks a business with a clear official website.
	StatusHasWebsite VerdictStatus = "HAS_WEBSITE"
	// StatusNoWebsite marks a business without an official website.
	StatusNoWebsite VerdictStatus = "NO_WEBSITE"
)

// Verdict is one classification decision parsed from the model's response.
type Verdict struct {
	BusinessName string
	Status       VerdictStatus
	Reason       string
}

// ResultSet accumulates businesses classified as having no website, in
// classification order. It is owned by the orchestrator for the lifetime of
// one run and flushed to the output files at the end.
type ResultSet struct {
	records []BusinessRecord
}

// NewResultSet returns an empty ResultSet.
func NewResultSet() *ResultSet {
	return &ResultSet{}
}

// Append adds a record to the set. Every stored record must carry a non-empty
// classification reason.
func (s *ResultSet) Append(rec BusinessRecord) error {
	if strings.TrimSpace(rec.Reason) == "" {
		return eris.Errorf("resultset: record %q has no classification reason", rec.Name)
	}
	s.records = append(s.records, rec)
	return nil
}

// Records returns the accumulated records in append order.
func (s *ResultSet) Records() []BusinessRecord {
	return s.records
}

// Len returns the number of accumulated records.
func (s *ResultSet) Len() int {
	return len(s.records)
}
