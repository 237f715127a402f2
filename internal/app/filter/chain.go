package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicstream/internal/domain/playlist"
	"github.com/osa030/musicstream/internal/domain/track"
	"github.com/osa030/musicstream/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// NewChainFromConfig builds a chain of the enabled filters in name order.
// Unknown filter names and invalid settings are errors.
func NewChainFromConfig(filters map[string]config.FilterConfig) (*Chain, error) {
	names := make([]string, 0, len(filters))
	for name, fc := range filters {
		if fc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	c := NewChain()
	for _, name := range names {
		factory, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown filter %q", name)
		}
		f := factory()
		if err := f.ValidateConfig(filters[name].Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		c.Add(f)
	}
	return c, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(ctx context.Context, t track.Track, admitted []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, admitted)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Rejection records a track refused by the chain.
type Rejection struct {
	Track track.Track
	Code  string
}

// Apply runs the chain over the tracks of list in order and returns the
// playlist of admitted tracks along with the rejections.
func (c *Chain) Apply(ctx context.Context, list *playlist.Playlist) (*playlist.Playlist, []Rejection) {
	out := &playlist.Playlist{Name: list.Name}
	var rejected []Rejection

	for _, t := range list.Tracks {
		result := c.Execute(ctx, t, out.Tracks)
		if !result.Accepted {
			zlog.Info().Str("path", t.Path).Str("code", result.Code).Msg("filter: track rejected")
			rejected = append(rejected, Rejection{Track: t, Code: result.Code})
			continue
		}
		out.Tracks = append(out.Tracks, t)
	}
	return out, rejected
}
