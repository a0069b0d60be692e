package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nosite-cli/internal/config"
	"github.com/sells-group/nosite-cli/internal/model"
	"github.com/sells-group/nosite-cli/internal/resilience"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Places: config.PlacesConfig{
			Key:          "places-key",
			RadiusMeters: 5000,
		},
		Anthropic: config.AnthropicConfig{
			Key:       "anthropic-key",
			Model:     "claude-haiku-4-5-20251001",
			MaxTokens: 4096,
		},
		Pipeline: config.PipelineConfig{
			MaxResults:      50,
			BatchSize:       10,
			SnippetMaxChars: 500,
			OutputDir:       t.TempDir(),
			TextFilename:    "out.txt",
			CSVFilename:     "out.csv",
		},
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		Multiplier:     2,
	}
}

func namedRecords(names ...string) []model.BusinessRecord {
	recs := make([]model.BusinessRecord, 0, len(names))
	for _, n := range names {
		recs = append(recs, model.BusinessRecord{
			Name:    n,
			MapsURL: model.MapsPlaceURL("pid-" + n),
			Links:   []model.Link{},
			Phones:  []string{},
		})
	}
	return recs
}

func TestPartitionSplitsInOrder(t *testing.T) {
	recs := namedRecords("a", "b", "c", "d", "e")

	batches := partition(recs, 2)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, "a", batches[0][0].Name)
	assert.Equal(t, "c", batches[1][0].Name)
	assert.Equal(t, "e", batches[2][0].Name)
}

func TestPartitionBatchLargerThanInput(t *testing.T) {
	batches := partition(namedRecords("a", "b"), 10)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestPartitionEmpty(t *testing.T) {
	assert.Empty(t, partition(nil, 10))
}

func TestParseVerdicts(t *testing.T) {
	raw := `Sure, here you go:
{
  "classifications": [
    {"business_name": " Cafe Aroma ", "status": "NO_WEBSITE", "reason": "Only a Facebook link"},
    {"business_name": "Hotel Lumen", "status": "HAS_WEBSITE", "reason": "Official domain present"}
  ]
}`

	verdicts, err := parseVerdicts(raw)
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.Equal(t, "Cafe Aroma", verdicts[0].BusinessName)
	assert.Equal(t, model.StatusNoWebsite, verdicts[0].Status)
	assert.Equal(t, "Only a Facebook link", verdicts[0].Reason)
	assert.Equal(t, model.StatusHasWebsite, verdicts[1].Status)
}

func TestParseVerdictsNotJSON(t *testing.T) {
	_, err := parseVerdicts("I could not classify these businesses.")
	assert.Error(t, err)
}

func TestClassifyBatchRetriesTransientFailures(t *testing.T) {
	ai := new(mockAnthropicClient)
	transient := resilience.NewTransientError(errors.New("connection reset by peer"))
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, transient).Twice()
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"classifications": [{"business_name": "Cafe Aroma", "status": "NO_WEBSITE", "reason": "No links at all"}]}`,
	), nil).Once()

	p := New(testConfig(t), new(mockPlacesClient), ai, NopSink())
	p.retry = fastRetry()

	verdicts := p.classifyBatch(context.Background(), namedRecords("Cafe Aroma"))
	require.Len(t, verdicts, 1)
	assert.Equal(t, model.StatusNoWebsite, verdicts[0].Status)
	ai.AssertNumberOfCalls(t, "CreateMessage", 3)
}

func TestClassifyBatchSkipsOnPermanentError(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("invalid request"))

	p := New(testConfig(t), new(mockPlacesClient), ai, NopSink())
	p.retry = fastRetry()

	verdicts := p.classifyBatch(context.Background(), namedRecords("Cafe Aroma"))
	assert.Empty(t, verdicts)
	ai.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestClassifyBatchSkipsOnUnparseableResponse(t *testing.T) {
	ai := new(mockAnthropicClient)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("not json"), nil)

	p := New(testConfig(t), new(mockPlacesClient), ai, NopSink())
	p.retry = fastRetry()

	verdicts := p.classifyBatch(context.Background(), namedRecords("Cafe Aroma"))
	assert.Empty(t, verdicts)
	ai.AssertNumberOfCalls(t, "CreateMessage", 1)
}

func TestBuildClassifyPromptTruncatesSnippet(t *testing.T) {
	recs := namedRecords("Cafe Aroma")
	recs[0].TextSnippet = "abcdefghij"

	prompt := buildClassifyPrompt(recs, 4)
	assert.Contains(t, prompt, "Text snippet: abcd...")
	assert.Contains(t, prompt, "Business 1: Cafe Aroma")
	assert.Contains(t, prompt, "classifications")
}

func TestBuildClassifyPromptTruncatesSnippetByCharacters(t *testing.T) {
	recs := namedRecords("Cafe Aroma")
	recs[0].TextSnippet = "abcdශ්‍රී ලංකා"

	prompt := buildClassifyPrompt(recs, 5)
	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, "Text snippet: abcdශ...")
}

func TestBuildClassifyPromptShortSnippetUntouched(t *testing.T) {
	recs := namedRecords("Cafe Aroma")
	recs[0].TextSnippet = "ශ්‍රී ලංකා"

	prompt := buildClassifyPrompt(recs, 500)
	assert.Contains(t, prompt, "Text snippet: ශ්‍රී ලංකා...")
}

func TestReconcile(t *testing.T) {
	var events []Event
	p := New(testConfig(t), new(mockPlacesClient), new(mockAnthropicClient), SinkFunc(func(e Event) {
		events = append(events, e)
	}))

	batch := namedRecords("Cafe Aroma", "Hotel Lumen", "Cafe Aroma")
	verdicts := []model.Verdict{
		{BusinessName: "Cafe Aroma", Status: model.StatusNoWebsite, Reason: "only socials"},
		{BusinessName: "Hotel Lumen", Status: model.StatusHasWebsite, Reason: "official domain"},
		{BusinessName: "Cafe Aroma", Status: model.StatusNoWebsite, Reason: "phone only"},
		{BusinessName: "Ghost Diner", Status: model.StatusNoWebsite, Reason: "no evidence"},
	}

	results := model.NewResultSet()
	p.reconcile(batch, verdicts, results)

	recs := results.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "only socials", recs[0].Reason)
	assert.Equal(t, "phone only", recs[1].Reason)

	var successes, infos int
	for _, e := range events {
		switch e.Level {
		case LevelSuccess:
			successes++
		case LevelInfo:
			infos++
		}
	}
	assert.Equal(t, 2, successes)
	assert.Equal(t, 1, infos)
}

func TestReconcileDropsVerdictWithoutReason(t *testing.T) {
	p := New(testConfig(t), new(mockPlacesClient), new(mockAnthropicClient), NopSink())

	batch := namedRecords("Cafe Aroma")
	verdicts := []model.Verdict{
		{BusinessName: "Cafe Aroma", Status: model.StatusNoWebsite, Reason: "   "},
	}

	results := model.NewResultSet()
	p.reconcile(batch, verdicts, results)
	assert.Zero(t, results.Len())
}
