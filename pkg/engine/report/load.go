package report

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DrSkyle/commitraider/pkg/storage"
)

// Load reads a JSON report previously written by Save. A target without an
// extension gets .json appended.
func Load(ctx context.Context, target string) (*Report, error) {
	if ext := path.Ext(target); ext == "" {
		target = OutputName(target, FormatJSON)
	} else if ext != ".json" {
		return nil, fmt.Errorf("only json reports can be loaded, got %q", target)
	}

	store, key, err := storage.Open(ctx, target)
	if err != nil {
		return nil, err
	}
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", target, err)
	}
	return &r, nil
}

// List returns the locations of the JSON and CSV reports under target, a
// local directory or s3://bucket[/prefix], sorted.
func List(ctx context.Context, target string) ([]string, error) {
	store, prefix, err := storage.OpenPrefix(ctx, target)
	if err != nil {
		return nil, err
	}
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	bucket, _, _ := strings.Cut(strings.TrimPrefix(target, "s3://"), "/")
	var out []string
	for _, key := range keys {
		switch path.Ext(key) {
		case ".json", ".csv":
		default:
			continue
		}
		if strings.HasPrefix(target, "s3://") {
			out = append(out, "s3://"+bucket+"/"+key)
		} else {
			out = append(out, filepath.Join(target, filepath.FromSlash(key)))
		}
	}
	sort.Strings(out)
	return out, nil
}
