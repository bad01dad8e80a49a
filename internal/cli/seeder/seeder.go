// Package seeder generates realistic lead payloads in every producer
// format and drives them through a running relay. Used to exercise
// classification, fallback substitution, and batch handling against a
// live deployment.
package seeder

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/caseflow-systems/leadrelay/internal/cli/client"
	"github.com/caseflow-systems/leadrelay/internal/envelope"
	"github.com/caseflow-systems/leadrelay/internal/models"
)

// Shape names accepted by the --shape flag.
const (
	ShapeDirect    = "direct"
	ShapeBatch     = "batch"
	ShapeFlat      = "flat"
	ShapeTransport = "transport"
)

// AllShapes lists the generatable payload formats.
var AllShapes = []string{ShapeDirect, ShapeBatch, ShapeFlat, ShapeTransport}

// endpointFor maps each generated shape to the relay endpoint that
// accepts it.
var endpointFor = map[string]string{
	ShapeDirect:    "web-form",
	ShapeBatch:     "capture-now",
	ShapeFlat:      "legacy",
	ShapeTransport: "unified",
}

var leadSources = []string{
	"Website Contact Form",
	"Google Ads Landing Page",
	"Voice Agent Bot",
	"Referral Partner",
	"Facebook Lead Form",
}

// Config controls a seeding run.
type Config struct {
	RelayURL string
	APIKey   string
	Count    int
	// BatchSize is the number of leads per batch envelope submission.
	BatchSize int
	// Shapes restricts generation to a subset of AllShapes.
	Shapes []string
	// GapRate is the probability that any one field is omitted from a
	// generated lead, forcing the relay's fallback policy to fill it.
	GapRate float64
}

func DefaultConfig() Config {
	return Config{
		RelayURL:  "http://localhost:8080",
		Count:     100,
		BatchSize: 5,
		Shapes:    AllShapes,
		GapRate:   0.2,
	}
}

// GenerateFields produces the native producer fields for one fake lead.
// Each field is independently omitted with probability gapRate.
func GenerateFields(gapRate float64) models.RawPayload {
	fields := models.RawPayload{
		models.FieldFirstName:    gofakeit.FirstName(),
		models.FieldLastName:     gofakeit.LastName(),
		models.FieldMessage:      gofakeit.Sentence(12),
		models.FieldEmail:        gofakeit.Email(),
		models.FieldPhoneNumber:  gofakeit.Phone(),
		models.FieldReferringURL: gofakeit.URL(),
		models.FieldSource:       leadSources[rand.Intn(len(leadSources))],
	}
	for _, name := range models.LeadFields {
		if rand.Float64() < gapRate {
			delete(fields, name)
		}
	}
	return fields
}

// BuildPayload wraps native fields in the named producer format.
// size only applies to the batch shape.
func BuildPayload(shape string, size int, gapRate float64) (models.RawPayload, error) {
	switch shape {
	case ShapeDirect:
		return models.RawPayload{"inbox_lead": map[string]interface{}(GenerateFields(gapRate))}, nil
	case ShapeFlat:
		return GenerateFields(gapRate), nil
	case ShapeBatch:
		if size < 1 {
			size = 1
		}
		items := make([]interface{}, size)
		for i := range items {
			items[i] = map[string]interface{}(GenerateFields(gapRate))
		}
		payload := models.RawPayload{"inbox_leads": items}
		// Batch producers often carry a shared source at the root.
		if rand.Float64() < 0.5 {
			payload[models.FieldSource] = leadSources[rand.Intn(len(leadSources))]
		}
		return payload, nil
	case ShapeTransport:
		return envelope.Encode(GenerateFields(gapRate), rand.Int63n(100000)+1)
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}
}

// Stats tallies a seeding run.
type Stats struct {
	Submissions int
	Leads       int
	Delivered   int
	Failed      int
	Errors      int
}

// Runner submits generated payloads to the relay.
type Runner struct {
	cfg    Config
	relay  *client.RelayClient
	report func(format string, a ...interface{})
}

func NewRunner(cfg Config, report func(format string, a ...interface{})) *Runner {
	relay := client.NewRelayClient(cfg.RelayURL)
	if cfg.APIKey != "" {
		relay = relay.WithAPIKey(cfg.APIKey)
	}
	if report == nil {
		report = func(string, ...interface{}) {}
	}
	return &Runner{cfg: cfg, relay: relay, report: report}
}

// Run generates cfg.Count leads and submits them, batching where the
// chosen shape supports it. Submission failures are counted, not fatal;
// a seeding run should survive a flaky relay.
func (r *Runner) Run() (Stats, error) {
	gofakeit.Seed(time.Now().UnixNano())

	shapes := r.cfg.Shapes
	if len(shapes) == 0 {
		shapes = AllShapes
	}

	var stats Stats
	remaining := r.cfg.Count
	for remaining > 0 {
		shape := shapes[rand.Intn(len(shapes))]

		size := 1
		if shape == ShapeBatch {
			size = r.cfg.BatchSize
			if size > remaining {
				size = remaining
			}
		}

		payload, err := BuildPayload(shape, size, r.cfg.GapRate)
		if err != nil {
			return stats, err
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return stats, err
		}

		remaining -= size
		stats.Submissions++
		stats.Leads += size

		result, err := r.relay.Submit(endpointFor[shape], body)
		if err != nil {
			stats.Errors++
			r.report("submit %s failed: %v", shape, err)
			continue
		}
		stats.Delivered += result.Successful
		stats.Failed += result.Failed

		if stats.Submissions%20 == 0 {
			r.report("progress: %d/%d leads submitted", r.cfg.Count-remaining, r.cfg.Count)
		}
	}

	return stats, nil
}
