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

package runbook

import (
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`)

// Resolve replaces each {name} token whose name is in values with the
// value. Replacement is a literal substring replace; tokens without a value
// are left in place so a later stage can resolve them.
func Resolve(template string, values map[string]string) string {
	if template == "" || len(values) == 0 || !strings.Contains(template, "{") {
		return template
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := template
	for _, k := range keys {
		out = strings.ReplaceAll(out, "{"+k+"}", values[k])
	}
	return out
}

// ResolveBody returns a copy of body with placeholders resolved in every
// string value. Nested maps and slices are walked; other values, including
// nil, pass through unchanged.
func ResolveBody(body map[string]interface{}, values map[string]string) map[string]interface{} {
	if body == nil {
		return nil
	}
	out := make(map[string]interface{}, len(body))
	for k, v := range body {
		out[k] = resolveValue(v, values)
	}
	return out
}

func resolveValue(v interface{}, values map[string]string) interface{} {
	switch val := v.(type) {
	case string:
		return Resolve(val, values)
	case map[string]interface{}:
		return ResolveBody(val, values)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, values)
		}
		return out
	default:
		return v
	}
}

// ResolveHeaders returns a copy of headers with placeholders resolved in
// each value.
func ResolveHeaders(headers map[string]string, values map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = Resolve(v, values)
	}
	return out
}

// Placeholders lists the distinct placeholder names in template, in order
// of first appearance.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
