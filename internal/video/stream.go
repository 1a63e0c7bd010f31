// Package video wraps OpenCV video capture behind an index-addressed
// frame source.
package video

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrFrameRead marks a frame that could not be decoded. Frame-read
// failures are recoverable: the affected pair is skipped and the run
// continues.
var ErrFrameRead = errors.New("video: frame read failed")

// Stream reads frames from a video file by index. It is not safe for
// concurrent use; the pipeline gives each worker its own Stream.
type Stream struct {
	path  string
	cap   *gocv.VideoCapture
	width int
	height int
}

// NewFileStream opens a video file for random-access frame reads.
func NewFileStream(path string) (*Stream, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("video: unable to open %s: %w", path, err)
	}
	s := &Stream{
		path:   path,
		cap:    cap,
		width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
		height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
	}
	return s, nil
}

// Path returns the source file path.
func (s *Stream) Path() string { return s.path }

// Fps returns the container frame rate, or 0 if unknown.
func (s *Stream) Fps() float64 { return s.cap.Get(gocv.VideoCaptureFPS) }

// FrameCount returns the number of frames the container reports.
func (s *Stream) FrameCount() int {
	return int(s.cap.Get(gocv.VideoCaptureFrameCount))
}

// Width returns the frame width in pixels.
func (s *Stream) Width() int { return s.width }

// Height returns the frame height in pixels.
func (s *Stream) Height() int { return s.height }

// ReadGray decodes the frame at the given index and returns it as a
// single-channel grayscale Mat. The caller owns the Mat and must Close
// it.
func (s *Stream) ReadGray(index int) (gocv.Mat, error) {
	s.cap.Set(gocv.VideoCapturePosFrames, float64(index))

	frame := gocv.NewMat()
	if ok := s.cap.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.NewMat(), fmt.Errorf("%w: frame %d of %s", ErrFrameRead, index, s.path)
	}

	gray := gocv.NewMat()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	frame.Close()
	return gray, nil
}

// Close releases the underlying capture device.
func (s *Stream) Close() error {
	return s.cap.Close()
}
