package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// File loads a pre-collected batch from a JSON file. The file holds either a
// bare array of items or an object with an "items" array.
type File struct {
	path string
}

// NewFile creates a collector reading the batch at path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string { return "file" }

func (f *File) Collect(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open batch %s: %w", f.path, err)
	}
	defer fh.Close()

	items, err := DecodeBatch(fh)
	if err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", f.path, err)
	}
	return items, nil
}

// DecodeBatch reads a JSON batch of items and caps every summary.
func DecodeBatch(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var items []Item
	if data[0] == '[' {
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Items []Item `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		items = wrapped.Items
	}

	for i := range items {
		items[i].Summary = TruncateSummary(items[i].Summary)
	}
	return items, nil
}
