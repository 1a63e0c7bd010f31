package store

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/fluvial-data/flow.report/internal/flow"
)

// Grids compress well: sentinel runs and smooth fields are highly
// redundant, so each grid is stored as a gzipped gob blob.

func encodeGrid(g *flow.GridFrame) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(zw).Encode(g); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeGrid(blob []byte) (*flow.GridFrame, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("gzip open: %w", err)
	}
	defer zr.Close()

	var g flow.GridFrame
	if err := gob.NewDecoder(zr).Decode(&g); err != nil && err != io.EOF {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return &g, nil
}
