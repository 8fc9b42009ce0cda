// Package jq evaluates response assertions written as jq expressions.
package jq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout bounds a single assertion.
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize is the largest response body evaluated (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Asserter checks JSON response bodies against jq expressions. Compiled
// expressions are cached; an Asserter is safe for concurrent use.
type Asserter struct {
	timeout      time.Duration
	maxInputSize int64

	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewAsserter creates an Asserter. Zero values select the defaults.
func NewAsserter(timeout time.Duration, maxInputSize int64) *Asserter {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = DefaultMaxInputSize
	}
	return &Asserter{
		timeout:      timeout,
		maxInputSize: maxInputSize,
		cache:        make(map[string]*gojq.Code),
	}
}

// Assert evaluates expression against the JSON document in body. The
// assertion holds when the first result is neither false nor null. An empty
// expression always holds.
func (a *Asserter) Assert(ctx context.Context, expression string, body []byte) error {
	if expression == "" {
		return nil
	}

	if int64(len(body)) > a.maxInputSize {
		return fmt.Errorf("response size (%d bytes) exceeds maximum (%d bytes)", len(body), a.maxInputSize)
	}

	code, err := a.compile(expression)
	if err != nil {
		return err
	}

	var data interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	data = normalizeNumbers(data)

	execCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	iter := code.RunWithContext(execCtx, data)
	v, ok := iter.Next()
	if !ok {
		return fmt.Errorf("assertion %q produced no result", expression)
	}
	if err, isErr := v.(error); isErr {
		if execCtx.Err() != nil {
			return fmt.Errorf("assertion timeout after %v", a.timeout)
		}
		return fmt.Errorf("assertion %q failed: %w", expression, err)
	}
	if v == nil || v == false {
		return fmt.Errorf("assertion %q not satisfied (got %v)", expression, v)
	}
	return nil
}

// Validate reports whether expression parses and compiles.
func (a *Asserter) Validate(expression string) error {
	if expression == "" {
		return nil
	}
	_, err := a.compile(expression)
	return err
}

func (a *Asserter) compile(expression string) (*gojq.Code, error) {
	a.mu.RLock()
	code, ok := a.cache[expression]
	a.mu.RUnlock()
	if ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err = gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}

	a.mu.Lock()
	a.cache[expression] = code
	a.mu.Unlock()
	return code, nil
}

// normalizeNumbers converts json.Number into the int or float64 values
// gojq expects.
func normalizeNumbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		f, _ := val.Float64()
		return f
	case map[string]interface{}:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	default:
		return v
	}
}
