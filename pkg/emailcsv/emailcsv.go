// Package emailcsv reads email lists from CSV uploads.
package emailcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type Options struct {
	HasHeader bool
}

type InvalidRow struct {
	Line  int
	Value string
}

type Result struct {
	Rows       int
	Valid      []string
	Invalid    []InvalidRow
	Duplicates int
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func emailValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Parse reads one email per record. The email column is taken from the header
// when present, otherwise the first column is used. Valid addresses are
// lower-cased and deduplicated in first-seen order.
func Parse(r io.Reader, opts Options) (*Result, error) {
	if r == nil {
		return nil, errors.New("reader is nil")
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	column := 0
	if opts.HasHeader {
		headers, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return &Result{Valid: []string{}, Invalid: []InvalidRow{}}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv header: %w", err)
		}
		column = emailColumn(headers)
	}

	c := newCollector()
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if column < len(record) {
			c.add(line, record[column])
		}
	}
	return c.result, nil
}

// FromList applies the same cleaning as Parse to an in-memory list. Line is
// the 1-based position in values.
func FromList(values []string) *Result {
	c := newCollector()
	for i, v := range values {
		c.add(i+1, v)
	}
	return c.result
}

type collector struct {
	result *Result
	seen   map[string]struct{}
	v      *validator.Validate
}

func newCollector() *collector {
	return &collector{
		result: &Result{Valid: []string{}, Invalid: []InvalidRow{}},
		seen:   map[string]struct{}{},
		v:      emailValidator(),
	}
}

func (c *collector) add(line int, raw string) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return
	}
	c.result.Rows++

	if err := c.v.Var(value, "required,email"); err != nil {
		c.result.Invalid = append(c.result.Invalid, InvalidRow{Line: line, Value: value})
		return
	}
	if _, dup := c.seen[value]; dup {
		c.result.Duplicates++
		return
	}
	c.seen[value] = struct{}{}
	c.result.Valid = append(c.result.Valid, value)
}

// ParseFile opens path and parses it with Parse.
func ParseFile(path string, opts Options) (*Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("csv path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer file.Close()
	return Parse(file, opts)
}

func emailColumn(headers []string) int {
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "email", "e-mail", "email address", "email_address":
			return i
		}
	}
	return 0
}
