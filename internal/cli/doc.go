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


/*
Package cli builds the opspilot command tree.

	opspilot
	├── serve                 Run the HTTP service
	├── interpret <query>     Preview the plan for a request
	├── execute               Execute one step
	├── runbooks list         List loaded runbooks
	├── runbooks show <id>    Show one runbook
	├── runbooks validate     Validate runbook files
	├── version               Show version
	└── help                  Show help (supports --json)

# Exit codes

  - 0: success
  - 1: the executed step failed
  - 2: one or more runbooks are invalid
  - 3: bad arguments or an unknown task
  - 4: configuration could not be loaded
*/
package cli
