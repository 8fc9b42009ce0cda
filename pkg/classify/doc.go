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

// Package classify maps operator queries to task ids.
//
// Two strategies are provided. The Scorer ranks loaded use case definitions
// by literal keyword and synonym substring hits, so its vocabulary is
// whatever the definitions declare. Heuristic uses a fixed vocabulary with
// word-boundary matching and needs no definitions at all; it only knows the
// case cancellation and case status update intents.
package classify

// TaskUnknown is the task id reported when nothing matched.
const TaskUnknown = "UNKNOWN"
