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

package classify

import (
	"strings"
)

// NormalizeStatus canonicalizes a status value: lowercase, words joined with
// underscores, and known variants folded together.
func NormalizeStatus(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '_'
	})
	joined := strings.Join(fields, "_")

	switch {
	case strings.Contains(joined, "accession"):
		return "accessioning"
	case strings.Contains(joined, "review") && strings.Contains(joined, "pathologist"):
		return "pathologist_review"
	case strings.Contains(joined, "review"):
		return "under_review"
	case strings.Contains(joined, "hold"):
		return "on_hold"
	default:
		return joined
	}
}
