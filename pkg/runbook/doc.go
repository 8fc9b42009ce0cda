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

// Package runbook defines the declarative use-case definitions that drive
// opspilot: how a request is recognised, which entities are pulled out of
// it, and the ordered steps that carry the operation out.
//
// Definitions are plain YAML documents:
//
//	id: CANCEL_CASE
//	name: Cancel case
//	classification:
//	  keywords: [cancel]
//	  synonyms:
//	    cancel: [abort, terminate]
//	extraction:
//	  case_id:
//	    patterns: ['case\s+(\w+)']
//	    required: true
//	execution:
//	  steps:
//	    - stepNumber: 1
//	      method: LOCAL_MESSAGE
//	      localMessage: Cancelling case {case_id}
//
// Parsed definitions are immutable once published by the registry.
package runbook
