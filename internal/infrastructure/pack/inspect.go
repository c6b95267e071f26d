package pack

import (
	"context"

	"github.com/rs/zerolog"

	"gitty.dev/cli/internal/core/ports"
)

// Inspector opens individual pack indexes for verify-pack listings
type Inspector struct {
	resolver BaseResolver
	logger   zerolog.Logger
}

var _ ports.PackInspector = (*Inspector)(nil)

// NewInspector creates an inspector; resolver may be nil when thin packs
// need not be resolved
func NewInspector(resolver BaseResolver, logger zerolog.Logger) *Inspector {
	return &Inspector{resolver: resolver, logger: logger}
}

// Inspect describes every entry of the pack behind idxPath in pack order
func (i *Inspector) Inspect(ctx context.Context, idxPath string, fn func(ports.PackEntry) error) error {
	p, err := Open(idxPath, nil, i.logger)
	if err != nil {
		return err
	}
	defer p.Close()
	p.SetResolver(i.resolver)

	for _, id := range p.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := p.Describe(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}
