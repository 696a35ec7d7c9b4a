package main

import (
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/shortontech/pendoconsumer/internal/consumer"
)

// sampleCall is one generated host call: an event, or a user property update
// when Property is set.
type sampleCall struct {
	Event    consumer.EventName
	Params   map[string]consumer.ParameterValue
	Property consumer.UserPropertyName
	Value    *string
}

// generateSampleCalls creates host traffic that covers every parameter type,
// an over-long event name and a property being cleared.
func generateSampleCalls(f *gofakeit.Faker) []sampleCall {
	sessionID := uuid.NewString()
	plan := f.RandomString([]string{"free", "pro", "enterprise"})
	city := f.City()

	return []sampleCall{
		{
			Event: "app_open",
			Params: map[string]consumer.ParameterValue{
				"session_id": consumer.String(sessionID),
				"cold_start": consumer.Bool(f.Bool()),
			},
		},
		{
			Event: "screen_view",
			Params: map[string]consumer.ParameterValue{
				"screen":     consumer.String(f.RandomString([]string{"home", "settings", "checkout"})),
				"session_id": consumer.String(sessionID),
			},
		},
		{
			Event: "purchase_completed_with_a_very_long_descriptive_name",
			Params: map[string]consumer.ParameterValue{
				"amount":       consumer.Float(f.Float64Range(1, 500)),
				"items":        consumer.Int(f.Number(1, 10)),
				"purchased_at": consumer.Date(f.Date()),
			},
		},
		{Event: "app_background"},
		{Property: "subscription_plan", Value: &plan},
		{Property: "last_known_city_of_the_visitor", Value: &city},
		{Property: "promo_code", Value: nil},
	}
}

func newFaker() *gofakeit.Faker { return gofakeit.New(0) }

// runTestMode relays generated traffic through the adapter.
func runTestMode(a consumer.AnalyticsConsumer, logger hclog.Logger) int {
	calls := generateSampleCalls(newFaker())
	logger.Info("test mode: relaying sample traffic", "calls", len(calls))

	failed := 0
	for i, c := range calls {
		var err error
		if c.Property != "" {
			err = a.SetUserProperty(a.TrimUserPropertyName(c.Property), c.Value)
		} else {
			err = a.TrackEvent(a.TrimEventName(c.Event), c.Params)
		}
		if err != nil {
			failed++
			logger.Warn("test mode: call failed", "index", i, "error", err)
		}
	}
	logger.Info("test mode: done", "sent", len(calls)-failed, "failed", failed)
	return failed
}
