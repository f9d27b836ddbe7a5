package statspush

import "github.com/bft-labs/framecast/pkg/framecast"

// WithStatsPush returns a framecast Option that posts snapshots to an HTTP
// collector.
//
// Usage:
//
//	b, err := framecast.New(cfg,
//	    statspush.WithStatsPush(statspush.Config{
//	        URL:     "https://collector.example.com/v1/framecast/stats",
//	        AuthKey: os.Getenv("FRAMECAST_PUSH_KEY"),
//	    }),
//	)
func WithStatsPush(cfg Config) framecast.Option {
	return framecast.WithPlugin(New(cfg))
}
