// Package path models planned robot motion: parametric curves, speed
// profiles, path segments and the trajectories built from them.
//
// Headings are radians, counter-clockwise positive, with heading 0 pointing
// along the field +y axis. Forward and Bearing are the only conversions
// between headings and vectors.
package path
