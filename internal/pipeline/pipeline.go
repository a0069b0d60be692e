package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nosite-cli/internal/config"
	"github.com/sells-group/nosite-cli/internal/model"
	"github.com/sells-group/nosite-cli/internal/resilience"
	"github.com/sells-group/nosite-cli/pkg/anthropic"
	"github.com/sells-group/nosite-cli/pkg/places"
)

// Request is one discovery run: where to look and how to batch the work.
// Zero values for MaxResults and BatchSize fall back to the configured
// defaults.
type Request struct {
	Location     string
	BusinessType string
	MaxResults   int
	BatchSize    int
}

// Summary reports what a completed run produced.
type Summary struct {
	RunID          string
	Analyzed       int
	WithoutWebsite int
	TextPath       string
	CSVPath        string
}

// Pipeline drives one full discovery run: geocode, enumerate, fetch details,
// classify in batches, and persist reports. Stages run sequentially; the
// provider client's own rate limiting and page pacing govern throughput.
type Pipeline struct {
	cfg        *config.Config
	places     places.Client
	ai         anthropic.Client
	sink       Sink
	retry      resilience.RetryConfig
	batchPause time.Duration
}

// New builds a Pipeline over the given clients. A nil sink discards progress
// events.
func New(cfg *config.Config, placesClient places.Client, aiClient anthropic.Client, sink Sink) *Pipeline {
	if sink == nil {
		sink = NopSink()
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	return &Pipeline{
		cfg:        cfg,
		places:     placesClient,
		ai:         aiClient,
		sink:       sink,
		retry:      retry,
		batchPause: time.Duration(cfg.Pipeline.BatchPauseSecs) * time.Second,
	}
}

func (p *Pipeline) emit(level Level, format string, args ...any) {
	p.sink.Publish(Event{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Run executes the full pipeline for one request. Both API keys are checked
// before any network call. A location that geocodes but yields no businesses
// is a successful run that writes no files.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Summary, error) {
	if p.cfg.Anthropic.Key == "" {
		return nil, eris.New("pipeline: anthropic API key not set (NOSITE_ANTHROPIC_KEY)")
	}
	if p.cfg.Places.Key == "" {
		return nil, eris.New("pipeline: places API key not set (NOSITE_PLACES_KEY)")
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = p.cfg.Pipeline.MaxResults
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = p.cfg.Pipeline.BatchSize
	}

	runID := uuid.New().String()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: starting run",
		zap.String("location", req.Location),
		zap.String("business_type", req.BusinessType),
		zap.Int("max_results", maxResults),
		zap.Int("batch_size", batchSize),
	)

	businessType := req.BusinessType
	if businessType == "" {
		businessType = "All businesses"
	}
	p.emit(LevelInfo, "Searching for businesses without websites in %s (Places API)", req.Location)
	p.emit(LevelInfo, "Business type: %s", businessType)
	p.emit(LevelInfo, "Batch size: %d", batchSize)
	p.emit(LevelInfo, "%s", strings.Repeat("=", 60))

	loc, err := p.places.Geocode(ctx, req.Location)
	if err != nil {
		p.emit(LevelError, "Could not geocode location: %s", req.Location)
		return nil, eris.Wrap(err, "pipeline: geocode failed")
	}
	p.emit(LevelInfo, "Found coordinates: %f, %f", loc.Lat, loc.Lng)

	found, err := p.places.NearbySearch(ctx, places.NearbySearchRequest{
		Location:     *loc,
		RadiusMeters: p.cfg.Places.RadiusMeters,
		Type:         req.BusinessType,
		MaxResults:   maxResults,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: nearby search failed")
	}
	if len(found) == 0 {
		p.emit(LevelWarn, "No businesses found in the specified area.")
		log.Info("pipeline: no businesses found, skipping reports")
		return &Summary{RunID: runID}, nil
	}
	p.emit(LevelInfo, "Found %d businesses. Analyzing websites with AI...", len(found))

	candidates := make([]model.PlaceCandidate, 0, len(found))
	for _, pl := range found {
		candidates = append(candidates, model.PlaceCandidate{
			Name:     pl.Name,
			PlaceID:  pl.PlaceID,
			Vicinity: pl.Vicinity,
			MapsURL:  model.MapsPlaceURL(pl.PlaceID),
		})
	}

	records := make([]model.BusinessRecord, 0, len(candidates))
	for i, cand := range candidates {
		p.emit(LevelInfo, "Getting details for business %d/%d: %s", i+1, len(candidates), cand.Name)
		detail, err := p.places.Details(ctx, cand.PlaceID)
		if err != nil {
			log.Warn("pipeline: detail fetch failed, skipping candidate",
				zap.String("place_id", cand.PlaceID),
				zap.String("name", cand.Name),
				zap.Error(err),
			)
			p.emit(LevelWarn, "Could not get details for %s, skipping", cand.Name)
			continue
		}
		records = append(records, recordFromDetail(cand, detail))
	}

	results := model.NewResultSet()
	batches := partition(records, batchSize)
	for i, batch := range batches {
		p.emit(LevelInfo, "AI Processing batch %d/%d (%d businesses)", i+1, len(batches), len(batch))
		verdicts := p.classifyBatch(ctx, batch)
		p.reconcile(batch, verdicts, results)

		if i < len(batches)-1 && p.batchPause > 0 {
			if err := sleepCtx(ctx, p.batchPause); err != nil {
				return nil, eris.Wrap(err, "pipeline: cancelled between batches")
			}
		}
	}

	textPath := filepath.Join(p.cfg.Pipeline.OutputDir, p.cfg.Pipeline.TextFilename)
	csvPath := filepath.Join(p.cfg.Pipeline.OutputDir, p.cfg.Pipeline.CSVFilename)
	if err := writeTextReport(textPath, results); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist failed")
	}
	if err := writeCSVReport(csvPath, results); err != nil {
		return nil, eris.Wrap(err, "pipeline: persist failed")
	}

	p.emit(LevelInfo, "%s", strings.Repeat("=", 60))
	p.emit(LevelInfo, "Total businesses analyzed: %d", len(records))
	p.emit(LevelInfo, "Found %d businesses without websites", results.Len())
	p.emit(LevelInfo, "Results saved to %s and %s", textPath, csvPath)
	log.Info("pipeline: run complete",
		zap.Int("analyzed", len(records)),
		zap.Int("without_website", results.Len()),
	)

	return &Summary{
		RunID:          runID,
		Analyzed:       len(records),
		WithoutWebsite: results.Len(),
		TextPath:       textPath,
		CSVPath:        csvPath,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
