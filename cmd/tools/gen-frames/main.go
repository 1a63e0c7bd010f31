// gen-frames renders a synthetic video of drifting surface texture for
// exercising the extraction pipeline without field footage. A large
// noise image is generated once, then a window slides over it at a
// fixed velocity, so every frame pair carries a known displacement.
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

var (
	outDir    = flag.String("out", "frames", "Directory for PNG frames (empty to skip)")
	videoFile = flag.String("video", "", "Also write an MJPG video file (e.g. drift.avi)")
	frames    = flag.Int("frames", 60, "Number of frames to generate")
	width     = flag.Int("width", 640, "Frame width in pixels")
	height    = flag.Int("height", 480, "Frame height in pixels")
	dx        = flag.Float64("dx", 3, "Horizontal drift in pixels per frame")
	dy        = flag.Float64("dy", 0, "Vertical drift in pixels per frame")
	fps       = flag.Float64("fps", 25, "Frame rate written to the video header")
	seed      = flag.Int64("seed", 1, "Noise seed")
)

// noiseCanvas builds a grayscale texture large enough for the window to
// drift across every frame.
func noiseCanvas(w, h int, rng *rand.Rand) gocv.Mat {
	canvas := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			canvas.SetUCharAt(y, x, uint8(rng.Intn(256)))
		}
	}
	// Smooth slightly so corner detection finds trackable blobs
	// instead of single-pixel speckle.
	blurred := gocv.NewMat()
	gocv.GaussianBlur(canvas, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault)
	canvas.Close()
	return blurred
}

func main() {
	flag.Parse()

	if *frames < 2 {
		log.Fatal("need at least 2 frames for a trackable sequence")
	}
	if *outDir == "" && *videoFile == "" {
		log.Fatal("nothing to do: set -out and/or -video")
	}

	marginX := int(*dx*float64(*frames)) + 16
	marginY := int(*dy*float64(*frames)) + 16
	if marginX < 16 {
		marginX = 16
	}
	if marginY < 16 {
		marginY = 16
	}

	rng := rand.New(rand.NewSource(*seed))
	canvas := noiseCanvas(*width+2*marginX, *height+2*marginY, rng)
	defer canvas.Close()

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			log.Fatalf("failed to create output dir: %v", err)
		}
	}

	var writer *gocv.VideoWriter
	if *videoFile != "" {
		var err error
		writer, err = gocv.VideoWriterFile(*videoFile, "MJPG", *fps, *width, *height, true)
		if err != nil {
			log.Fatalf("failed to open video writer: %v", err)
		}
		defer writer.Close()
	}

	for i := 0; i < *frames; i++ {
		x0 := marginX + int(float64(i)**dx)
		y0 := marginY + int(float64(i)**dy)
		window := canvas.Region(image.Rect(x0, y0, x0+*width, y0+*height))

		if *outDir != "" {
			path := filepath.Join(*outDir, fmt.Sprintf("frame_%04d.png", i))
			if ok := gocv.IMWrite(path, window); !ok {
				log.Fatalf("failed to write %s", path)
			}
		}
		if writer != nil {
			bgr := gocv.NewMat()
			gocv.CvtColor(window, &bgr, gocv.ColorGrayToBGR)
			if err := writer.Write(bgr); err != nil {
				log.Fatalf("failed to write video frame %d: %v", i, err)
			}
			bgr.Close()
		}
		window.Close()
	}

	log.Printf("generated %d frames of %dx%d drifting at (%.1f, %.1f) px/frame",
		*frames, *width, *height, *dx, *dy)
}
