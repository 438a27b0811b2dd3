package layout

import (
	"go.uber.org/zap"

	"github.com/chazu/railyard/pkg/catalog"
	"github.com/chazu/railyard/pkg/config"
	"github.com/chazu/railyard/pkg/geom"
)

// Box is an axis-aligned bounding box in world space.
type Box struct {
	Min geom.Vec3
	Max geom.Vec3
}

// Bounds is the work surface rectangle on the XZ plane.
type Bounds struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
}

// Contains reports whether b lies inside the rectangle.
func (r Bounds) Contains(b Box) bool {
	return b.Min.X >= r.MinX && b.Max.X <= r.MaxX && b.Min.Z >= r.MinZ && b.Max.Z <= r.MaxZ
}

// Footprinter computes the world bounding box of a piece. The kernel
// package provides a solid-model implementation.
type Footprinter interface {
	Footprint(entry catalog.Entry, t geom.Transform) (Box, error)
}

// Options tune snapping and validation.
type Options struct {
	// Connectors closer than this share a node.
	SnapToleranceM float64
	// Radius within which a placement is pulled onto a free connector.
	SnapSearchRadiusM float64
	// Maximum heading error, in degrees, for the pull to apply.
	SnapSearchAngleDeg float64
	// Joined connectors must have forward vectors with a dot product at
	// or below this value.
	AntiParallelDot float64
	// Nil means unbounded.
	Bounds *Bounds
	// Nil falls back to the box around the piece's connectors.
	Footprint Footprinter
	Logger    *zap.SugaredLogger
}

// DefaultOptions matches the defaults of package config.
func DefaultOptions() Options {
	return Options{
		SnapToleranceM:     0.002,
		SnapSearchRadiusM:  0.03,
		SnapSearchAngleDeg: 15,
		AntiParallelDot:    -0.999,
	}
}

// OptionsFromConfig maps loaded settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	o := Options{
		SnapToleranceM:     cfg.Layout.SnapToleranceM,
		SnapSearchRadiusM:  cfg.Layout.SnapSearchRadiusM,
		SnapSearchAngleDeg: cfg.Layout.SnapSearchAngleDeg,
		AntiParallelDot:    cfg.Layout.AntiParallelDot,
	}
	if b := cfg.Layout.Bounds; b.Enabled() {
		o.Bounds = &Bounds{MinX: b.MinX, MaxX: b.MaxX, MinZ: b.MinZ, MaxZ: b.MaxZ}
	}
	return o
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SnapToleranceM <= 0 {
		o.SnapToleranceM = d.SnapToleranceM
	}
	if o.SnapSearchRadiusM <= 0 {
		o.SnapSearchRadiusM = d.SnapSearchRadiusM
	}
	if o.SnapSearchRadiusM < o.SnapToleranceM {
		o.SnapSearchRadiusM = o.SnapToleranceM
	}
	if o.SnapSearchAngleDeg <= 0 {
		o.SnapSearchAngleDeg = d.SnapSearchAngleDeg
	}
	if o.AntiParallelDot >= 0 || o.AntiParallelDot < -1 {
		o.AntiParallelDot = d.AntiParallelDot
	}
	return o
}
