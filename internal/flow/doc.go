// Package flow owns the velocity-field extraction core: frame-pair
// scheduling, displacement filtering, sparse-to-grid interpolation,
// physical-unit scaling, and per-pair statistics.
//
// Responsibilities end at pure data transforms. Feature tracking lives
// in flow/track (the only package touching OpenCV), frame decoding in
// internal/video, and persistence in internal/store.
//
// All stages are order-independent over their input samples and never
// mutate their inputs. Cells without a valid measurement carry a NaN
// sentinel, which is distinct from a measured zero velocity.
package flow
