// Package prompts loads the CSV prompt suite an evaluation runs over.
package prompts

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Item is one prompt in the suite. ExpectedJSON marks prompts whose
// completions are judged for JSON validity.
type Item struct {
	ID           string `json:"promptId"`
	Prompt       string `json:"prompt"`
	ExpectedJSON bool   `json:"expectedJson"`
	Category     string `json:"category"`
}

// Load reads a prompt suite from a CSV file.
func Load(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening prompt file: %w", err)
	}
	defer f.Close()
	items, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Parse reads a prompt suite from CSV data. The header must carry
// prompt_id and prompt columns; expected_json and category are optional.
func Parse(r io.Reader) ([]Item, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("prompt file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idCol, ok := cols["prompt_id"]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", "prompt_id")
	}
	promptCol, ok := cols["prompt"]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", "prompt")
	}
	jsonCol, hasJSON := cols["expected_json"]
	catCol, hasCat := cols["category"]

	var items []Item
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		id := strings.TrimSpace(record[idCol])
		prompt := record[promptCol]
		if id == "" {
			return nil, fmt.Errorf("line %d: empty prompt_id", line)
		}
		if strings.TrimSpace(prompt) == "" {
			return nil, fmt.Errorf("line %d: empty prompt", line)
		}
		if seen[id] {
			return nil, fmt.Errorf("line %d: duplicate prompt_id %q", line, id)
		}
		seen[id] = true

		item := Item{ID: id, Prompt: prompt}
		if hasJSON && jsonCol < len(record) {
			item.ExpectedJSON = parseBool(record[jsonCol])
		}
		if hasCat && catCol < len(record) {
			item.Category = strings.TrimSpace(record[catCol])
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("prompt file has no rows")
	}
	return items, nil
}

// Limit truncates the suite to at most n prompts. A non-positive n keeps
// everything.
func Limit(items []Item, n int) []Item {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
