package recordschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed sent_partition.schema.json
var sentPartitionSchemaJSON string

//go:embed candidate_item.schema.json
var candidateItemSchemaJSON string

// SentRecord is one element of a sent-<date>.json day partition: an item
// that was actually delivered downstream. Append-only, immutable once
// written.
type SentRecord struct {
	ID          string          `json:"id"`
	Timestamp   int64           `json:"timestamp"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	Item        SentItem        `json:"item"`
	Fingerprint SentFingerprint `json:"fingerprint"`
	Meta        SentMeta        `json:"meta"`
}

type SentItem struct {
	Text           string `json:"text"`
	NormalizedText string `json:"normalizedText"`
	Author         string `json:"author"`
	URL            string `json:"url,omitempty"`
	MediaRef       string `json:"mediaRef,omitempty"`
}

type SentFingerprint struct {
	ContentHash  string   `json:"contentHash"`
	CombinedHash string   `json:"combinedHash"`
	MediaRefs    []string `json:"mediaRefs,omitempty"`
}

type SentMeta struct {
	Channel   string `json:"channel,omitempty"`
	MediaKind string `json:"mediaKind,omitempty"`
	Topic     string `json:"topic,omitempty"`
}

// CandidateItem is the JSON shape of a scraped item handed to the CLI.
type CandidateItem struct {
	Text     string  `json:"text"`
	Author   string  `json:"author"`
	URL      *string `json:"url,omitempty"`
	MediaRef *string `json:"mediaRef,omitempty"`
	SeenAt   *string `json:"seenAt,omitempty"`
}

type compiled struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

var (
	sentPartitionCompiled compiled
	candidateItemCompiled compiled
)

// ValidateSentPartition validates a whole day-partition file and decodes it.
func ValidateSentPartition(raw []byte) ([]SentRecord, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode partition JSON: %w", err)
	}

	schema, err := sentPartitionCompiled.load("sent_partition.schema.json", sentPartitionSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize partition JSON: %w", err)
	}

	var records []SentRecord
	if err := json.Unmarshal(normalized, &records); err != nil {
		return nil, fmt.Errorf("unmarshal partition: %w", err)
	}
	return records, nil
}

// ValidateCandidateItem validates and decodes one candidate item payload.
func ValidateCandidateItem(raw []byte) (*CandidateItem, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode item JSON: %w", err)
	}

	schema, err := candidateItemCompiled.load("candidate_item.schema.json", candidateItemSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize item JSON: %w", err)
	}

	var item CandidateItem
	if err := json.Unmarshal(normalized, &item); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}

	if strings.TrimSpace(item.Text) == "" {
		return nil, fmt.Errorf("text must not be empty or whitespace")
	}
	if strings.TrimSpace(item.Author) == "" {
		return nil, fmt.Errorf("author must not be empty or whitespace")
	}
	return &item, nil
}

func (c *compiled) load(name, source string) (*jsonschema.Schema, error) {
	c.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
			c.err = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			c.err = fmt.Errorf("compile schema: %w", err)
			return
		}
		c.schema = schema
	})

	if c.err != nil {
		return nil, c.err
	}
	if c.schema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return c.schema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}
