package mqttstats

import "github.com/bft-labs/framecast/pkg/framecast"

// WithMQTTStats returns a framecast Option that publishes snapshots to an
// MQTT broker.
//
// Usage:
//
//	b, err := framecast.New(cfg,
//	    mqttstats.WithMQTTStats(mqttstats.Config{Broker: "localhost:1883"}),
//	)
func WithMQTTStats(cfg Config) framecast.Option {
	return framecast.WithPlugin(New(cfg))
}
