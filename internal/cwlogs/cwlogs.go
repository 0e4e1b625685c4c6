// Package cwlogs parses CloudWatch model-invocation log exports into
// entries the evaluation pipeline can replay or aggregate. Exports in the
// wild are messy: JSON arrays or JSONL, nested message envelopes, and
// half a dozen field spellings. Parsing is lenient; id assignment is not.
package cwlogs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"llmevalbench/internal/prompts"
	"llmevalbench/internal/registry"
)

// Entry is one recovered invocation.
type Entry struct {
	ID         string   `json:"id"`
	ModelID    string   `json:"modelId"`
	ModelName  string   `json:"modelName,omitempty"`
	Prompt     string   `json:"prompt"`
	Completion string   `json:"completion,omitempty"`
	LatencyMS  *float64 `json:"latencyMs,omitempty"`
	Timestamp  string   `json:"timestamp,omitempty"`
}

// Result is a parse outcome. Skipped counts raw entries that were either
// not JSON or carried no recoverable prompt and model.
type Result struct {
	Entries []Entry
	Skipped int
}

// Parser converts raw exports into entries. A registry, when provided,
// resolves logged model ids back to configured display names.
type Parser struct {
	reg *registry.Registry
}

func NewParser(reg *registry.Registry) *Parser {
	return &Parser{reg: reg}
}

// Parse reads a CloudWatch export. A document whose first non-space byte
// is '[' is treated as a JSON array; anything else is treated as JSONL.
// Entry ids derive from position and raw content, so re-parsing the same
// export yields the same ids.
func (p *Parser) Parse(data []byte) (Result, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Result{}, fmt.Errorf("log export is empty")
	}

	var raws [][]byte
	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return Result{}, fmt.Errorf("parsing log array: %w", err)
		}
		for _, r := range arr {
			raws = append(raws, []byte(r))
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			raws = append(raws, append([]byte(nil), line...))
		}
		if err := scanner.Err(); err != nil {
			return Result{}, fmt.Errorf("scanning log lines: %w", err)
		}
	}

	var res Result
	for pos, raw := range raws {
		entry, ok := p.parseEntry(pos, raw)
		if !ok {
			res.Skipped++
			continue
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func (p *Parser) parseEntry(pos int, raw []byte) (Entry, bool) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Entry{}, false
	}

	// CloudWatch log events wrap the payload in a string `message` field.
	if msg, ok := obj["message"].(string); ok {
		var inner map[string]any
		if err := json.Unmarshal([]byte(msg), &inner); err == nil {
			for k, v := range obj {
				if k == "message" {
					continue
				}
				if _, exists := inner[k]; !exists {
					inner[k] = v
				}
			}
			obj = inner
		}
	}

	prompt := firstString(obj, "prompt", "input", "inputText", "input_text")
	modelID := firstString(obj, "modelId", "model_id", "model")
	if prompt == "" || modelID == "" {
		return Entry{}, false
	}

	entry := Entry{
		ID:         entryID(pos, raw),
		ModelID:    modelID,
		Prompt:     prompt,
		Completion: firstString(obj, "completion", "output", "outputText", "response", "generated_text"),
		Timestamp:  firstString(obj, "timestamp", "@timestamp", "time"),
	}
	if v, ok := firstNumber(obj, "latency_ms", "latencyMs", "duration_ms", "durationMs"); ok {
		entry.LatencyMS = &v
	}
	if p.reg != nil {
		if m, ok := p.reg.ByModelID(modelID); ok {
			entry.ModelName = m.Name
		}
	}
	return entry, true
}

// entryID is stable across re-parses of the same export: position plus a
// content hash of the raw entry bytes.
func entryID(pos int, raw []byte) string {
	h := fnv.New32a()
	h.Write(raw)
	return fmt.Sprintf("cw-%d-%08x", pos, h.Sum32())
}

// PromptItems converts entries into a prompt suite so historical traffic
// can be re-evaluated. Duplicate prompts keep their first occurrence.
func PromptItems(entries []Entry) []prompts.Item {
	var items []prompts.Item
	seen := make(map[string]bool)
	for _, e := range entries {
		key := strings.TrimSpace(e.Prompt)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, prompts.Item{ID: e.ID, Prompt: e.Prompt})
	}
	return items
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func firstNumber(obj map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if n, ok := obj[k].(float64); ok {
			return n, true
		}
	}
	return 0, false
}
