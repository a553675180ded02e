package library

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"karaoke/internal/media"
	"karaoke/internal/services"
)

//go:embed alignment_schema.json
var alignmentSchemaJSON []byte

var (
	alignmentSchemaOnce sync.Once
	alignmentSchema     *jsonschema.Schema
	alignmentSchemaErr  error
)

func compiledAlignmentSchema() (*jsonschema.Schema, error) {
	alignmentSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("alignment.json", bytes.NewReader(alignmentSchemaJSON)); err != nil {
			alignmentSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		alignmentSchema, alignmentSchemaErr = compiler.Compile("alignment.json")
		if alignmentSchemaErr != nil {
			alignmentSchemaErr = fmt.Errorf("compile schema: %w", alignmentSchemaErr)
		}
	})
	return alignmentSchema, alignmentSchemaErr
}

// ValidateAlignment checks that payload is a non-empty alignment record.
func ValidateAlignment(payload []byte) error {
	schema, err := compiledAlignmentSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("decode alignment: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("alignment does not match schema: %w", err)
	}
	return nil
}

// GetAlignments returns the persisted alignment record for a caption mode as
// opaque entries. A missing record yields nil, nil.
func (l *Library) GetAlignments(ctx context.Context, item media.Item, mode media.Mode) ([]json.RawMessage, error) {
	if !mode.IsCaption() {
		return nil, services.Wrap(services.ErrInput, "library", "get alignments", "Unknown caption mode", fmt.Errorf("mode %q", mode))
	}
	data, err := os.ReadFile(l.Path(item, mode, media.FormatJSON))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "library", "get alignments", "Can't read alignments", err)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, services.Wrap(services.ErrProcessing, "library", "get alignments", "Alignments are corrupted", err)
	}
	return entries, nil
}
