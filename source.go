package esbench

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hhkbp2/esbench/generator"
)

// Sources holds the raw input pools shared read-only by every worker.
// Each worker samples its own sequence out of them.
type Sources struct {
	Queries []*Query
	Appends []Document
}

// FieldName returns the name of the i-th document field.
func FieldName(i int) string {
	return "field" + strconv.Itoa(i)
}

// ParseQueryLine parses a `fieldIndex|queryText` line. The line is split
// once on the first pipe, so the query text may contain pipes itself.
func ParseQueryLine(line string) (*Query, error) {
	parts := strings.SplitN(line, "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("missing '|' separator")
	}
	idxStr := strings.TrimSpace(parts[0])
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("invalid field index %q", idxStr)
	}
	return NewQuery(FieldName(idx), strings.TrimSpace(parts[1])), nil
}

// ParseAppendLine maps the `|`-separated values of a line to field0..fieldN.
func ParseAppendLine(line string) Document {
	values := strings.Split(strings.TrimRight(line, " \t\r\n"), "|")
	doc := make(Document, len(values))
	for i, v := range values {
		doc[FieldName(i)] = v
	}
	return doc
}

func forEachLine(filename string, fn func(lineNumber int64, line string) error) error {
	fg, err := generator.NewFileGenerator(filename)
	if err != nil {
		return NewConfigurationError("fail to open %s: %s", filename, err)
	}
	defer fg.Close()
	for fg.Next() {
		line := fg.LastString()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(fg.LineNumber(), line); err != nil {
			return err
		}
	}
	if err := fg.Err(); err != nil {
		return NewConfigurationError("fail to read %s: %s", filename, err)
	}
	return nil
}

// LoadQueries reads every query of a query file. Blank lines are skipped.
func LoadQueries(filename string) ([]*Query, error) {
	queries := make([]*Query, 0)
	err := forEachLine(filename, func(lineNumber int64, line string) error {
		q, err := ParseQueryLine(line)
		if err != nil {
			return NewConfigurationError("%s:%d: %s", filename, lineNumber, err)
		}
		queries = append(queries, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return queries, nil
}

// LoadAppends reads every document of an append file. Blank lines are skipped.
func LoadAppends(filename string) ([]Document, error) {
	docs := make([]Document, 0)
	err := forEachLine(filename, func(_ int64, line string) error {
		docs = append(docs, ParseAppendLine(line))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// LoadSources reads the query and append files named by the arguments.
// An empty name leaves the matching pool nil.
func LoadSources(queryFile, appendFile string) (*Sources, error) {
	sources := &Sources{}
	var err error
	if queryFile != "" {
		if sources.Queries, err = LoadQueries(queryFile); err != nil {
			return nil, err
		}
	}
	if appendFile != "" {
		if sources.Appends, err = LoadAppends(appendFile); err != nil {
			return nil, err
		}
	}
	return sources, nil
}
