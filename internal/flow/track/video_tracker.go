package track

import (
	"context"

	"github.com/fluvial-data/flow.report/internal/flow"
	"github.com/fluvial-data/flow.report/internal/roi"
	"github.com/fluvial-data/flow.report/internal/video"
)

// VideoTracker binds a Tracker to its own video stream, satisfying the
// pipeline's per-worker tracker contract. Each worker opens its own
// stream because VideoCapture seeks are stateful.
type VideoTracker struct {
	stream  *video.Stream
	tracker *Tracker
	mask    *roi.Mask
}

// NewVideoTracker opens the video at path and validates the mask
// against its frame dimensions.
func NewVideoTracker(path string, params Params, mask *roi.Mask) (*VideoTracker, error) {
	stream, err := video.NewFileStream(path)
	if err != nil {
		return nil, err
	}
	if err := mask.CheckDims(stream.Width(), stream.Height()); err != nil {
		stream.Close()
		return nil, err
	}
	return &VideoTracker{
		stream:  stream,
		tracker: New(params),
		mask:    mask,
	}, nil
}

// TrackPair reads both frames of the pair and runs feature tracking.
// A failed frame read surfaces as a per-pair error; the pipeline skips
// the pair and continues.
func (vt *VideoTracker) TrackPair(ctx context.Context, pair flow.FramePair) ([]flow.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frameA, err := vt.stream.ReadGray(pair.A)
	if err != nil {
		return nil, err
	}
	defer frameA.Close()

	frameB, err := vt.stream.ReadGray(pair.B)
	if err != nil {
		return nil, err
	}
	defer frameB.Close()

	return vt.tracker.Track(frameA, frameB, vt.mask)
}

// Close releases the underlying stream.
func (vt *VideoTracker) Close() error {
	return vt.stream.Close()
}
