package frame

import (
	"bytes"
	"context"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tallycam/tallycam-go/internal/errors"
)

// DirSource replays JPEG files from a directory as a frame stream, in
// lexical filename order. It stands in for a live camera during development
// and in tests, the same way file analysis stands in for realtime capture.
type DirSource struct {
	Dir      string
	Interval time.Duration // delay between frames, 0 for no delay
	Loop     bool          // restart from the first file when exhausted
}

// Run implements Source.
func (d *DirSource) Run(ctx context.Context, mbox *Mailbox) error {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return errors.New(err).
			Component("frame").
			Category(errors.CategoryFileIO).
			Context("dir", d.Dir).
			Build()
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext == ".jpg" || ext == ".jpeg" {
			files = append(files, filepath.Join(d.Dir, name))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return errors.Newf("no JPEG files in %s", d.Dir).
			Component("frame").
			Category(errors.CategoryNotFound).
			Build()
	}

	for {
		for _, path := range files {
			if ctx.Err() != nil {
				return nil
			}
			f, err := loadJPEG(path)
			if err != nil {
				// A single unreadable file should not end the stream
				continue
			}
			mbox.Publish(f)

			if d.Interval > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(d.Interval):
				}
			}
		}
		if !d.Loop {
			return nil
		}
	}
}

func loadJPEG(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &Frame{
		Data:      data,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Timestamp: time.Now(),
	}, nil
}
