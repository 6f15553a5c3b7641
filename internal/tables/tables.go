package tables

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrBadInput marks input tables with the wrong shape or unparsable values.
var ErrBadInput = errors.New("bad input")

type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// FormatFromPath picks a table format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unsupported table format %q", ErrBadInput, filepath.Ext(path))
	}
}

// row maps canonical column names to raw cell values. A key is present when
// the source carried the column, even if the value is empty.
type row map[string]string

func readRows(r io.Reader, format Format, aliases map[string]string, listKeys ...string) ([]row, error) {
	switch format {
	case FormatCSV:
		return readCSV(r, aliases)
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", ErrBadInput, err)
		}
		return documentRows(doc, aliases, listKeys)
	case FormatJSONL:
		return readJSONL(r, aliases)
	case FormatYAML:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", ErrBadInput, err)
		}
		return documentRows(doc, aliases, listKeys)
	default:
		return nil, fmt.Errorf("%w: unsupported table format %q", ErrBadInput, format)
	}
}

func readCSV(r io.Reader, aliases map[string]string) ([]row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", ErrBadInput, err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = canonical(strings.TrimPrefix(name, "\ufeff"), aliases)
	}

	var rows []row
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read csv line %d: %v", ErrBadInput, line, err)
		}
		item := make(row, len(columns))
		for i, column := range columns {
			if column == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = record[i]
			}
			if _, ok := item[column]; !ok || item[column] == "" {
				item[column] = value
			}
		}
		rows = append(rows, item)
	}
	return rows, nil
}

func readJSONL(r io.Reader, aliases map[string]string) ([]row, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var rows []row
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var object map[string]any
		if err := json.Unmarshal(text, &object); err != nil {
			return nil, fmt.Errorf("%w: decode jsonl line %d: %v", ErrBadInput, line, err)
		}
		rows = append(rows, objectRow(object, aliases))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read jsonl: %v", ErrBadInput, err)
	}
	return rows, nil
}

// documentRows accepts either a top-level list of objects or a mapping that
// holds the list under one of listKeys.
func documentRows(doc any, aliases map[string]string, listKeys []string) ([]row, error) {
	if mapping, ok := doc.(map[string]any); ok {
		found := false
		for _, key := range listKeys {
			if list, ok := mapping[key]; ok {
				doc = list
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: expected a list or one of keys %s", ErrBadInput, strings.Join(listKeys, ", "))
		}
	}
	if doc == nil {
		return nil, nil
	}

	list, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a list of rows", ErrBadInput)
	}

	rows := make([]row, 0, len(list))
	for i, item := range list {
		object, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: row %d is not an object", ErrBadInput, i+1)
		}
		rows = append(rows, objectRow(object, aliases))
	}
	return rows, nil
}

func objectRow(object map[string]any, aliases map[string]string) row {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	item := make(row, len(object))
	for _, key := range keys {
		column := canonical(key, aliases)
		if column == "" {
			continue
		}
		value := cellString(object[key])
		if existing, ok := item[column]; !ok || existing == "" {
			item[column] = value
		}
	}
	return item
}

func canonical(name string, aliases map[string]string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	return aliases[key]
}

func cellString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, cellString(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

func parseInt(value, column string, line int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: row %d: %s %q is not an integer", ErrBadInput, line, column, value)
	}
	return n, nil
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '|' || r == ' ' || r == ';'
	})
}

func openTable(path string) (*os.File, Format, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return file, format, nil
}
