package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ulikunitz/xz"
)

// XZ compresses every export before handing it to the wrapped Archiver.
type XZ struct {
	Inner Archiver
}

func (a XZ) Archive(ctx context.Context, runID, name string, data []byte) (string, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return "", fmt.Errorf("xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("xz compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("xz close: %w", err)
	}
	return a.Inner.Archive(ctx, runID, strings.TrimSuffix(name, ".xz")+".xz", buf.Bytes())
}

// OpenExport wraps r in an xz reader when name ends in ".xz", so archived
// exports can be imported again as they are.
func OpenExport(name string, r io.Reader) (io.Reader, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".xz") {
		return r, nil
	}
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xz %s: %w", name, err)
	}
	return xr, nil
}
