// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// genids writes the metric ID constants for the definitions in metrics.json.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"os"
)

type metricDef struct {
	Description string `json:"description"`
	MetricType  string `json:"type"`
	Name        string `json:"name"`
	FieldName   string `json:"field"`
	Unit        string `json:"unit"`
	ID          uint32 `json:"id"`
	Obsolete    bool   `json:"obsolete"`
}

func generate(input []byte) ([]byte, error) {
	var metricDefs []metricDef
	if err := json.Unmarshal(input, &metricDefs); err != nil {
		return nil, fmt.Errorf("unmarshaling: %w", err)
	}

	var output bytes.Buffer
	output.WriteString("// Code generated from metrics.json. DO NOT EDIT.\n\n" +
		"package metrics\n\n" +
		"// To add a new metric append an entry to metrics.json. ONLY APPEND !\n" +
		"// Then run 'go generate ./metrics' from the top directory.\n\n" +
		"// Below are the different metric IDs that we currently implement.\n" +
		"const (\n")

	for i, m := range metricDefs {
		if uint32(i) != m.ID {
			return nil, fmt.Errorf("metric %s has id %d at position %d", m.Name, m.ID, i)
		}
		if m.Obsolete {
			continue
		}
		fmt.Fprintf(&output, "\n\t// %s\n\tID%s = %d\n", m.Description, m.Name, m.ID)
	}

	fmt.Fprintf(&output, "\n\t// max number of ID values, keep this as *last entry*\n"+
		"\tIDMax = %d\n)\n", len(metricDefs))

	return format.Source(output.Bytes())
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <metrics.json> <output.go>\n", os.Args[0])
		os.Exit(1)
	}

	input, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}

	output, err := generate(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err = os.WriteFile(os.Args[2], output, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
