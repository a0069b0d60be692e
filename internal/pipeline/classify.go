package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/nosite-cli/internal/model"
	"github.com/sells-group/nosite-cli/internal/resilience"
	"github.com/sells-group/nosite-cli/pkg/anthropic"
)

// classifySystemPrompt is the fixed instruction header for every batch. It is
// sent as a cached system block so repeated batches reuse the prompt cache.
const classifySystemPrompt = `You are an expert at analyzing Google Maps business listings to determine if a business has an official website. You will be given a list of businesses, each with their name, Google Maps URL, any links found (including the API 'website' field), phone numbers, and a text snippet.

A business HAS_WEBSITE if:
- There is a link to an official business website (not just social media, review sites, or third-party platforms)
- The website is clearly related to the business (not a generic, unrelated, or placeholder site)
- The link is not just to Facebook, Instagram, TripAdvisor, Booking.com, or similar
- The website is not a Google Maps, Google Sites, or Google Business Profile page
- If you are unsure, classify as NO_WEBSITE (be conservative)

A business has NO_WEBSITE if:
- There are only social media links (Facebook, Instagram, etc.)
- There are only phone numbers, addresses, or Google Maps links
- There are only third-party platforms like Yelp, TripAdvisor, Booking.com, etc.
- There is no clear website reference or domain link
- If you are unsure, classify as NO_WEBSITE`

// classifyResponseFormat closes the user prompt with the strict JSON shape
// the parser expects.
const classifyResponseFormat = `
Please respond in this exact JSON format:
{
  "classifications": [
    {"business_name": "Business Name", "status": "HAS_WEBSITE", "reason": "Brief explanation"},
    {"business_name": "Business Name", "status": "NO_WEBSITE", "reason": "Brief explanation"}
  ]
}

Only include the JSON response, no other text.`

// partition slices records into contiguous batches of at most batchSize,
// preserving input order. Every record appears in exactly one batch.
func partition(records []model.BusinessRecord, batchSize int) [][]model.BusinessRecord {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches [][]model.BusinessRecord
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

// buildClassifyPrompt renders one numbered evidence block per record. All
// evidence passes through sanitize so the prompt never contains null markers
// or unrenderable structures.
func buildClassifyPrompt(batch []model.BusinessRecord, snippetMax int) string {
	var b strings.Builder
	b.WriteString("Here are the businesses to analyze:\n")

	for i, rec := range batch {
		links := make([]any, 0, len(rec.Links))
		for _, l := range rec.Links {
			links = append(links, map[string]any{"url": l.URL, "text": l.Text})
		}
		linksJSON, err := json.MarshalIndent(sanitize(links), "", "  ")
		if err != nil {
			linksJSON = []byte("[]")
		}

		phones := make([]any, 0, len(rec.Phones))
		for _, p := range rec.Phones {
			phones = append(phones, p)
		}
		phonesJSON, err := json.Marshal(sanitize(phones))
		if err != nil {
			phonesJSON = []byte("[]")
		}

		// Truncate by characters, not bytes, so a multibyte rune is never
		// split into invalid UTF-8.
		snippet := rec.TextSnippet
		if snippetMax > 0 && utf8.RuneCountInString(snippet) > snippetMax {
			runes := []rune(snippet)
			snippet = string(runes[:snippetMax])
		}

		fmt.Fprintf(&b, `
Business %d: %s
Google Maps URL: %s
Links found: %s
Phone numbers: %s
Text snippet: %s...
---
`, i+1, sanitize(rec.Name), sanitize(rec.MapsURL), linksJSON, phonesJSON, sanitize(snippet))
	}

	b.WriteString(classifyResponseFormat)
	return b.String()
}

// classifyBatch sends one batch to the model and returns its verdicts. All
// failure modes degrade to an empty verdict list so a bad batch never aborts
// the run: transport-level disconnects are retried up to three times with
// exponential backoff, any other call error and any parse failure skip the
// batch immediately.
func (p *Pipeline) classifyBatch(ctx context.Context, batch []model.BusinessRecord) []model.Verdict {
	prompt := buildClassifyPrompt(batch, p.cfg.Pipeline.SnippetMaxChars)

	resp, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.cfg.Anthropic.Model,
			MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
			System:    anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
			Messages: []anthropic.Message{
				{Role: "user", Content: prompt},
			},
		})
	})
	if err != nil {
		zap.L().Warn("classify: batch skipped after model call failure",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		return nil
	}

	verdicts, err := parseVerdicts(resp.Text())
	if err != nil {
		zap.L().Error("classify: failed to parse model response",
			zap.Error(err),
			zap.String("raw_response", resp.Text()),
		)
		return nil
	}
	return verdicts
}

type verdictJSON struct {
	BusinessName string `json:"business_name"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
}

type classificationsJSON struct {
	Classifications []verdictJSON `json:"classifications"`
}

// parseVerdicts extracts the first balanced JSON object from the raw model
// output and decodes its classifications array.
func parseVerdicts(raw string) ([]model.Verdict, error) {
	text, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var parsed classificationsJSON
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, err
	}

	verdicts := make([]model.Verdict, 0, len(parsed.Classifications))
	for _, c := range parsed.Classifications {
		verdicts = append(verdicts, model.Verdict{
			BusinessName: strings.TrimSpace(c.BusinessName),
			Status:       model.VerdictStatus(strings.TrimSpace(c.Status)),
			Reason:       strings.TrimSpace(c.Reason),
		})
	}
	return verdicts, nil
}

// reconcile attaches NO_WEBSITE verdicts back onto their batch records and
// appends the matches to the result set. Matching is exact name equality;
// under duplicate names each verdict claims the first not-yet-claimed record.
// HAS_WEBSITE verdicts are reported and discarded; verdicts naming no batch
// record are dropped.
func (p *Pipeline) reconcile(batch []model.BusinessRecord, verdicts []model.Verdict, results *model.ResultSet) {
	claimed := make(map[int]bool, len(batch))

	for _, v := range verdicts {
		if v.Status != model.StatusNoWebsite {
			p.emit(LevelInfo, "✗ Has website: %s", v.BusinessName)
			continue
		}

		idx := -1
		for i := range batch {
			if !claimed[i] && batch[i].Name == v.BusinessName {
				idx = i
				break
			}
		}
		if idx < 0 {
			zap.L().Debug("classify: verdict matched no batch record",
				zap.String("business_name", v.BusinessName),
			)
			continue
		}

		claimed[idx] = true
		batch[idx].Reason = v.Reason
		if err := results.Append(batch[idx]); err != nil {
			zap.L().Warn("classify: dropping verdict without reason",
				zap.String("business_name", v.BusinessName),
				zap.Error(err),
			)
			continue
		}
		p.emit(LevelSuccess, "✓ No website: %s - %s", batch[idx].Name, v.Reason)
	}
}
