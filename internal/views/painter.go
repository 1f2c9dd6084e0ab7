package views

import (
	"context"
	"fmt"

	"site-delivery-backend/config"
	"site-delivery-backend/internal/viewer"
)

// Palette assigns a color to every group plus the neutral base.
type Palette struct {
	Neutral viewer.Color
	Groups  map[Group]viewer.Color
}

// PaletteFromConfig converts configured RGB triples.
func PaletteFromConfig(c config.PaletteConfig) Palette {
	return Palette{
		Neutral: viewer.RGB(c.Neutral),
		Groups: map[Group]viewer.Color{
			GroupPending:          viewer.RGB(c.Pending),
			GroupConfirmed:        viewer.RGB(c.Confirmed),
			GroupMissing:          viewer.RGB(c.Missing),
			GroupAddedFromVehicle: viewer.RGB(c.AddedFromVehicle),
			GroupAddedFromModel:   viewer.RGB(c.AddedFromModel),
		},
	}
}

// Painter pushes a Partition to the viewer in fixed-size batches.
type Painter struct {
	client    viewer.Client
	palette   Palette
	batchSize int
}

// NewPainter creates a painter. A non-positive batchSize paints each set in
// one call.
func NewPainter(client viewer.Client, palette Palette, batchSize int) *Painter {
	return &Painter{client: client, palette: palette, batchSize: batchSize}
}

// Paint colors the neutral set first, then every group in Groups order, and
// stops at the first failed call.
func (p *Painter) Paint(ctx context.Context, part Partition) error {
	if err := p.PaintGUIDs(ctx, part.Neutral, p.palette.Neutral); err != nil {
		return err
	}
	for _, g := range Groups {
		if err := p.PaintGUIDs(ctx, part.Groups[g], p.palette.Groups[g]); err != nil {
			return fmt.Errorf("failed to paint %s: %w", g, err)
		}
	}
	return nil
}

// PaintGroup colors guids with the color of g.
func (p *Painter) PaintGroup(ctx context.Context, guids []string, g Group) error {
	return p.PaintGUIDs(ctx, guids, p.palette.Groups[g])
}

// PaintNeutral resets guids to the base color.
func (p *Painter) PaintNeutral(ctx context.Context, guids []string) error {
	return p.PaintGUIDs(ctx, guids, p.palette.Neutral)
}

// PaintGUIDs colors guids in batches.
func (p *Painter) PaintGUIDs(ctx context.Context, guids []string, color viewer.Color) error {
	size := p.batchSize
	if size <= 0 {
		size = len(guids)
	}
	for start := 0; start < len(guids); start += size {
		end := start + size
		if end > len(guids) {
			end = len(guids)
		}
		if err := p.client.SetObjectState(ctx, guids[start:end], color); err != nil {
			return fmt.Errorf("set object state failed: %w", err)
		}
	}
	return nil
}
