// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/annotation-engine/internal/schema"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

// writeExport dumps records into dir as export_<YYYYMMDD_HHMMSS>.jsonl,
// one interchange line per record, and returns the file path.
func writeExport(records []types.Record, dir string, filter ExportFilter, sch schema.Schema) (string, error) {
	if dir == "" {
		dir = "exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", exportErr(dir, err)
	}

	name := fmt.Sprintf("export_%s.jsonl", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", exportErr(path, err)
	}

	w := bufio.NewWriter(f)
	for _, r := range records {
		if !filter.Match(r) {
			continue
		}
		line, err := encodeLine(r, sch)
		if err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return "", exportErr(path, err)
	}
	if err := f.Close(); err != nil {
		return "", exportErr(path, err)
	}
	return path, nil
}

func exportErr(path string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s: %v", ErrPermission, path, err)
	}
	return fmt.Errorf("exporting to %s: %w", path, err)
}
