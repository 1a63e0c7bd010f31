// Package pipeline drives a full analysis run: it fans frame-pair jobs
// out to a bounded worker pool and folds the results back into the
// FieldStore in schedule order.
//
// Jobs are data-independent across frame pairs — each depends only on
// its own two source frames and the shared immutable mask and
// parameters — so workers may complete out of order. The commit loop
// re-serialises results by pair index, which keeps the store's ordering
// contract independent of scheduling luck.
package pipeline
