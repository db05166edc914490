package schema

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	js "github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiler compiles JSON schemas and caches the compiled form by content
type Compiler struct {
	mu       sync.Mutex
	compiler *js.Compiler
	cache    *expirable.LRU[string, *js.Schema]
}

// NewCompilerWithCache creates a new compiler with cache
func NewCompilerWithCache(maxSize int) *Compiler {
	c := js.NewCompiler()
	c.ExtractAnnotations = true

	return &Compiler{
		compiler: c,
		cache:    expirable.NewLRU[string, *js.Schema](maxSize, nil, time.Hour),
	}
}

func (c *Compiler) key(schema map[string]interface{}) (string, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	return string(b), nil
}

// Prepare compiles and caches a schema
func (c *Compiler) Prepare(ctx context.Context, schema map[string]interface{}) error {
	_, err := c.compiled(schema)
	return err
}

func (c *Compiler) compiled(schema map[string]interface{}) (*js.Schema, error) {
	key, err := c.key(schema)
	if err != nil {
		return nil, err
	}
	if compiled, ok := c.cache.Get(key); ok {
		return compiled, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if compiled, ok := c.cache.Get(key); ok {
		return compiled, nil
	}

	// Use a hash-based URL to avoid URL parsing issues with JSON content
	sum := sha256.Sum256([]byte(key))
	resourceURL := fmt.Sprintf("mem://schema/%x.json", sum[:8])
	if err := c.compiler.AddResource(resourceURL, bytes.NewReader([]byte(key))); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}

	compiled, err := c.compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	c.cache.Add(key, compiled)
	return compiled, nil
}

// Validate validates a decoded document against a schema
func (c *Compiler) Validate(ctx context.Context, schema map[string]interface{}, value interface{}) error {
	compiled, err := c.compiled(schema)
	if err != nil {
		return err
	}

	// Normalize to the JSON data model before validation
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	var valueRaw interface{}
	if err := json.Unmarshal(valueBytes, &valueRaw); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	if err := compiled.Validate(valueRaw); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}
