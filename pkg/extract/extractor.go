// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package extract pulls named entities out of free-text operator queries
// using the ordered regex patterns declared on a use case.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tombee/opspilot/pkg/errors"
	"github.com/tombee/opspilot/pkg/runbook"
)

// Result is the outcome of extraction. It is always well-formed, even when
// nothing matched.
type Result struct {
	// Entities maps entity name to the transformed, validated value
	Entities map[string]string `json:"entities"`

	// Missing lists required entities that could not be extracted
	Missing []string `json:"missing,omitempty"`

	// Rejected lists values that matched a pattern but failed validation
	Rejected []Rejection `json:"rejected,omitempty"`
}

// Rejection records a matched value discarded by validation.
type Rejection struct {
	Entity  string `json:"entity"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Extractor applies entity configurations to queries. Compiled patterns are
// cached; an Extractor is safe for concurrent use.
type Extractor struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

// New creates an Extractor with an empty pattern cache.
func New() *Extractor {
	return &Extractor{cache: make(map[string]*regexp.Regexp)}
}

var defaultExtractor = New()

// Extract runs the shared extractor. See (*Extractor).Extract.
func Extract(query string, cfg map[string]runbook.EntityConfig) Result {
	return defaultExtractor.Extract(query, cfg)
}

// Extract pulls every configured entity out of query.
//
// For each entity the patterns are tried in declaration order and the first
// pattern that matches is used; later patterns are never consulted, even if
// the matched value then fails validation. Malformed patterns are skipped.
func (e *Extractor) Extract(query string, cfg map[string]runbook.EntityConfig) Result {
	res := Result{Entities: make(map[string]string)}

	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ec := cfg[name]

		raw, ok := e.match(query, ec.Patterns)
		if !ok {
			if ec.Required {
				res.Missing = append(res.Missing, name)
			}
			continue
		}

		value := ec.Transform.Apply(raw)
		if err := e.ValidateValue(value, ec.Validation); err != nil {
			msg := err.Error()
			var verr *errors.ValidationError
			if errors.As(err, &verr) {
				msg = verr.Message
			}
			res.Rejected = append(res.Rejected, Rejection{
				Entity:  name,
				Value:   value,
				Message: msg,
			})
			if ec.Required {
				res.Missing = append(res.Missing, name)
			}
			continue
		}

		res.Entities[name] = value
	}

	return res
}

// match returns the first capture group of the first matching pattern. A
// pattern without groups yields the whole match. An empty capture counts as
// no match.
func (e *Extractor) match(query string, patterns []string) (string, bool) {
	for _, p := range patterns {
		re := e.compile("(?i)" + p)
		if re == nil {
			continue
		}
		m := re.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		value := m[0]
		if len(m) > 1 {
			value = m[1]
		}
		if value == "" {
			continue
		}
		return value, true
	}
	return "", false
}

// ValidateValue checks value against rule. A nil rule accepts everything.
func ValidateValue(value string, rule *runbook.ValidationConfig) error {
	return defaultExtractor.ValidateValue(value, rule)
}

// ValidateValue checks value against rule using the extractor's cache.
func (e *Extractor) ValidateValue(value string, rule *runbook.ValidationConfig) error {
	if rule == nil {
		return nil
	}

	if rule.Regex != "" {
		re := e.compile(rule.Regex)
		if re == nil {
			return &errors.ValidationError{
				Field:   "validation.regex",
				Message: fmt.Sprintf("validation pattern %q does not compile", rule.Regex),
			}
		}
		if !re.MatchString(value) {
			return validationFailure(value, rule, "does not match "+rule.Regex)
		}
	}

	if len(rule.EnumValues) > 0 {
		found := false
		for _, allowed := range rule.EnumValues {
			if strings.EqualFold(allowed, value) {
				found = true
				break
			}
		}
		if !found {
			return validationFailure(value, rule, "must be one of "+strings.Join(rule.EnumValues, ", "))
		}
	}

	return nil
}

func validationFailure(value string, rule *runbook.ValidationConfig, detail string) error {
	msg := rule.ErrorMessage
	if msg == "" {
		msg = fmt.Sprintf("value %q %s", value, detail)
	}
	return &errors.ValidationError{Field: "entity", Message: msg}
}

// compile returns the cached program for pattern, or nil when it is
// malformed. Failures are cached too.
func (e *Extractor) compile(pattern string) *regexp.Regexp {
	e.mu.RLock()
	re, ok := e.cache[pattern]
	e.mu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}

	e.mu.Lock()
	e.cache[pattern] = re
	e.mu.Unlock()

	return re
}

// CacheSize returns the number of cached patterns, including malformed ones.
func (e *Extractor) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
