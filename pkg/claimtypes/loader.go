// Package claimtypes loads claim-type contracts from YAML documents.
//
// This is the boundary: the only place claim types touch the
// filesystem. The loader parses, meta-validates, resolves external
// output-schema references, and delivers immutable truth.ClaimType
// values to the pure compiler.
package claimtypes

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/kaori-protocol/kaori/pkg/truth"
)

// metaSchema validates the shape of claim-type documents before any
// field is interpreted. Structural errors fail the load, not the
// compile.
const metaSchema = `{
	"type": "object",
	"required": ["id", "version", "domain", "topic"],
	"properties": {
		"id": {"type": "string", "pattern": "^[a-z0-9_]+\\.[a-z0-9_]+\\.v[0-9]+$"},
		"version": {"type": "integer", "minimum": 1},
		"domain": {"type": "string", "enum": ["earth", "ocean", "space", "meta"]},
		"topic": {"type": "string"},
		"risk_profile": {"type": "string", "enum": ["monitor", "critical"]},
		"truthkey": {"type": "object"},
		"consensus_model": {"type": "object"},
		"autovalidation": {"type": "object"},
		"temporal_decay": {"type": "object"},
		"confidence_model": {"type": "object"},
		"output_schema": {"type": "object"},
		"output_schema_ref": {"type": "string"}
	}
}`

// Loader reads claim-type YAML documents from a directory and caches the
// parsed contracts by id.
type Loader struct {
	mu     sync.RWMutex
	dir    string
	cache  map[string]truth.ClaimType
	meta   *jsonschema.Schema
	logger *slog.Logger
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("kaori://claimtype.schema.json", strings.NewReader(metaSchema)); err != nil {
		return nil, fmt.Errorf("claimtypes: meta schema: %w", err)
	}
	meta, err := compiler.Compile("kaori://claimtype.schema.json")
	if err != nil {
		return nil, fmt.Errorf("claimtypes: meta schema compile: %w", err)
	}
	return &Loader{
		dir:    dir,
		cache:  make(map[string]truth.ClaimType),
		meta:   meta,
		logger: logger,
	}, nil
}

// LoadAll loads every .yaml/.yml document under the loader's directory.
func (l *Loader) LoadAll() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("claimtypes: read dir %s: %w", l.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if _, err := l.LoadFile(filepath.Join(l.dir, entry.Name())); err != nil {
			return fmt.Errorf("claimtypes: load %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// LoadFile loads a single claim-type document, resolves its output
// schema reference if present, and caches the result.
func (l *Loader) LoadFile(path string) (truth.ClaimType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return truth.ClaimType{}, fmt.Errorf("read file: %w", err)
	}

	ct, err := l.parse(data, filepath.Dir(path))
	if err != nil {
		return truth.ClaimType{}, err
	}

	l.mu.Lock()
	l.cache[ct.ID] = ct
	l.mu.Unlock()

	hash, _ := ct.Hash()
	l.logger.Info("claim type loaded",
		slog.String("id", ct.ID),
		slog.String("hash", hash),
		slog.String("path", path))
	return ct, nil
}

// parse decodes, meta-validates, and constructs a ClaimType from YAML
// bytes. The schemaDir anchors relative output_schema_ref paths.
func (l *Loader) parse(data []byte, schemaDir string) (truth.ClaimType, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return truth.ClaimType{}, fmt.Errorf("parse yaml: %w", err)
	}

	// jsonschema validates JSON-typed values; YAML integers and nested
	// maps round-trip through JSON first.
	jsonDoc, err := toJSONValue(doc)
	if err != nil {
		return truth.ClaimType{}, err
	}
	if err := l.meta.Validate(jsonDoc); err != nil {
		return truth.ClaimType{}, fmt.Errorf("claim type document invalid: %w", err)
	}

	var ct truth.ClaimType
	if err := yaml.Unmarshal(data, &ct); err != nil {
		return truth.ClaimType{}, fmt.Errorf("decode claim type: %w", err)
	}

	if ct.OutputSchema == nil && ct.OutputSchemaRef != "" {
		resolved, err := loadSchemaRef(ct.OutputSchemaRef, schemaDir)
		if err != nil {
			return truth.ClaimType{}, err
		}
		ct.OutputSchema = resolved
	}
	if ct.OutputSchema != nil {
		normalized, err := toJSONObject(ct.OutputSchema)
		if err != nil {
			return truth.ClaimType{}, err
		}
		ct.OutputSchema = normalized
	}

	return truth.NewClaimType(ct)
}

// Get returns a cached claim type by id.
func (l *Loader) Get(id string) (truth.ClaimType, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ct, ok := l.cache[id]
	return ct, ok
}

// All returns every cached claim type.
func (l *Loader) All() []truth.ClaimType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]truth.ClaimType, 0, len(l.cache))
	for _, ct := range l.cache {
		out = append(out, ct)
	}
	return out
}

func loadSchemaRef(ref, baseDir string) (map[string]interface{}, error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, ref)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resolve output_schema_ref %q: %w", ref, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema %q: %w", ref, err)
	}
	return doc, nil
}

func toJSONValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	return out, nil
}

func toJSONObject(v map[string]interface{}) (map[string]interface{}, error) {
	normalized, err := toJSONValue(v)
	if err != nil {
		return nil, err
	}
	obj, ok := normalized.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("output schema must be an object")
	}
	return obj, nil
}
