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

// Package translate turns technical failure text into operator-facing
// messages using an ordered table of regex rules.
package translate

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/tombee/opspilot/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Categories used by the built-in table.
const (
	CategoryConfiguration = "CONFIGURATION_ERROR"
	CategoryConnection    = "CONNECTION_ERROR"
	CategoryTimeout       = "TIMEOUT_ERROR"
	CategoryUnknown       = "UNKNOWN_ERROR"
)

// configPattern matches failures raised by the engine's own configuration
// checks, which must not be mistaken for downstream errors.
const (
	configPattern = `config error|unknown downstream service|no downstream service|step \d+ not found`
	configMessage = "This step is not configured correctly. Contact your administrator."
)

const (
	emptyMessage   = "An error occurred."
	genericMessage = "An unexpected error occurred. Please try again or contact support."
)

// Rule maps a pattern to a user message and category.
type Rule struct {
	Pattern  string `yaml:"pattern"`
	Message  string `yaml:"message"`
	Category string `yaml:"category"`
}

// Translation is the operator-facing view of a failure.
type Translation struct {
	UserMessage      string  `json:"userMessage"`
	TechnicalDetails *string `json:"technicalDetails"`
	Category         string  `json:"category"`
}

type compiledRule struct {
	re       *regexp.Regexp
	message  string
	category string
}

// Translator holds a compiled rule table. It is immutable and safe for
// concurrent use.
type Translator struct {
	rules []compiledRule
}

type table struct {
	Rules []Rule `yaml:"rules"`
}

// defaultRules is the fallback table used when no configured table can be
// loaded.
var defaultRules = []Rule{
	{Pattern: configPattern, Message: configMessage, Category: CategoryConfiguration},
	{Pattern: `connection refused`, Message: "The service is currently unavailable. Please try again later.", Category: CategoryConnection},
	{Pattern: `timeout|timed out|deadline exceeded`, Message: "The request took too long to complete. Please try again.", Category: CategoryTimeout},
	{Pattern: `.*`, Message: genericMessage, Category: CategoryUnknown},
}

// NewFromRules compiles rules in order. Rules whose pattern does not compile
// are skipped and logged.
func NewFromRules(rules []Rule, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Translator{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			logger.Warn("skipping invalid error translation rule",
				slog.Int("index", i),
				slog.String("pattern", r.Pattern),
				slog.String("error", err.Error()))
			continue
		}
		category := r.Category
		if category == "" {
			category = CategoryUnknown
		}
		t.rules = append(t.rules, compiledRule{re: re, message: r.Message, category: category})
	}
	return t
}

// Default returns the built-in fallback translator.
func Default() *Translator {
	return NewFromRules(defaultRules, nil)
}

// Parse builds a translator from a YAML rule table.
func Parse(data []byte, logger *slog.Logger) (*Translator, error) {
	var tbl table
	if err := yaml.Unmarshal(data, &tbl); err != nil {
		return nil, fmt.Errorf("failed to parse error table: %w", err)
	}
	if len(tbl.Rules) == 0 {
		return nil, &errors.ValidationError{
			Field:      "rules",
			Message:    "error table has no rules",
			Suggestion: "add at least one rule with pattern, message and category",
		}
	}
	return NewFromRules(tbl.Rules, logger), nil
}

// Load reads a YAML rule table from path.
func Load(path string, logger *slog.Logger) (*Translator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ConfigError{Key: "errors.path", Reason: "cannot read error table", Cause: err}
	}
	return Parse(data, logger)
}

// LoadOrDefault loads the table at path, falling back to the built-in table
// when path is empty or the table cannot be loaded.
func LoadOrDefault(path string, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return Default()
	}
	t, err := Load(path, logger)
	if err != nil {
		logger.Warn("using built-in error translations",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return Default()
	}
	return t
}

// Translate maps technical to an operator message. The first rule matching
// anywhere in the text wins. The technical text is kept verbatim.
func (t *Translator) Translate(technical string) Translation {
	if technical == "" {
		return Translation{UserMessage: emptyMessage, Category: CategoryUnknown}
	}

	details := technical
	for _, r := range t.rules {
		if r.re.MatchString(technical) {
			return Translation{UserMessage: r.message, TechnicalDetails: &details, Category: r.category}
		}
	}
	return Translation{UserMessage: genericMessage, TechnicalDetails: &details, Category: CategoryUnknown}
}

// Len returns the number of active rules.
func (t *Translator) Len() int {
	return len(t.rules)
}
