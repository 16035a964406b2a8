// Package source loads scraped technology records from files or a
// scraper database.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joelkehle/techtransfer-enrich/internal/record"
)

var ErrUnsupportedFormat = errors.New("unsupported input format")

type Options struct {
	// University keeps only records from one institution. Database
	// sources only.
	University string
	// Limit caps the number of records returned; 0 means no cap.
	Limit int
}

// Load reads records from path, choosing the decoder by extension.
// Records without an ID are numbered by position.
func Load(ctx context.Context, path string, opts Options) ([]record.Record, error) {
	var (
		records []record.Record
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		records, err = readFile(path, decodeJSON)
	case ".jsonl", ".ndjson":
		records, err = readFile(path, decodeJSONLines)
	case ".yaml", ".yml":
		records, err = readFile(path, decodeYAML)
	case ".db", ".sqlite", ".sqlite3":
		records, err = loadSQLite(ctx, path, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = strconv.Itoa(i + 1)
		}
	}
	return records, nil
}

func readFile(path string, decode func([]byte) ([]record.Record, error)) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	records, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

func decodeJSON(data []byte) ([]record.Record, error) {
	var records []record.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeJSONLines(data []byte) ([]record.Record, error) {
	var records []record.Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var r record.Record
		if err := json.Unmarshal(text, &r); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, r)
	}
	return records, sc.Err()
}

func decodeYAML(data []byte) ([]record.Record, error) {
	var records []record.Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
