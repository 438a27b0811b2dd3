// Package geom provides the vector, rotation and curve math used to place
// track pieces. All lengths are meters; the layout plane is XZ with +Y up.
package geom
