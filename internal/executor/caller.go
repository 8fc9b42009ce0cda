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

package executor

import (
	"net/http"
	"strings"
)

// Caller headers forwarded to downstream services.
const (
	HeaderAuthorization = "Authorization"
	HeaderActingUser    = "X-Acting-User"
	HeaderRole          = "X-Role"
	HeaderLabID         = "X-Lab-Id"
	HeaderDiscipline    = "X-Discipline"
	HeaderTimezone      = "X-Timezone"
	HeaderAccept        = "Accept"
)

// MissingToken is sent as the bearer credential when the caller supplied none.
const MissingToken = "MISSING_TOKEN"

// Caller is the context of whoever asked for the execution. Values are
// forwarded opaquely; the engine makes no authorization decisions on them
// beyond HEADER_CHECK steps.
type Caller struct {
	// Token is the bearer token without the "Bearer " prefix
	Token string `json:"-"`

	ActingUser string `json:"actingUser,omitempty"`
	Role       string `json:"role,omitempty"`
	LabID      string `json:"labId,omitempty"`
	Discipline string `json:"discipline,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
	Accept     string `json:"accept,omitempty"`

	// Headers holds any other caller headers available to HEADER_CHECK steps
	Headers http.Header `json:"-"`
}

// roleAliases are header names that all refer to the caller's role.
var roleAliases = map[string]bool{
	"x-role":      true,
	"role":        true,
	"x-user-role": true,
}

// Header returns the value the caller supplied for name. Well-known
// headers fall back to the typed fields.
func (c Caller) Header(name string) string {
	if v := c.Headers.Get(name); v != "" {
		return v
	}

	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case roleAliases[key]:
		return c.Role
	case key == "x-acting-user":
		return c.ActingUser
	case key == "x-lab-id":
		return c.LabID
	case key == "x-discipline":
		return c.Discipline
	case key == "x-timezone":
		return c.Timezone
	case key == "accept":
		return c.Accept
	case key == "authorization" && c.Token != "":
		return "Bearer " + c.Token
	}
	return ""
}

// callerKeys are the placeholders filled only from the caller context.
var callerKeys = map[string]bool{
	"currentUser": true,
	"actingUser":  true,
	"role":        true,
	"labId":       true,
	"discipline":  true,
	"timezone":    true,
}

// Placeholders returns the caller-context placeholder values. Empty fields
// are omitted so their tokens stay visible in the resolved text.
func (c Caller) Placeholders() map[string]string {
	out := make(map[string]string, 6)
	set := func(key, val string) {
		if val != "" {
			out[key] = val
		}
	}
	set("currentUser", c.ActingUser)
	set("actingUser", c.ActingUser)
	set("role", c.Role)
	set("labId", c.LabID)
	set("discipline", c.Discipline)
	set("timezone", c.Timezone)
	return out
}

// forward sets the standard forwarding headers on h.
func (c Caller) forward(h http.Header) {
	token := c.Token
	if token == "" {
		token = MissingToken
	}
	h.Set(HeaderAuthorization, "Bearer "+token)

	accept := c.Accept
	if accept == "" {
		accept = "application/json"
	}
	h.Set(HeaderAccept, accept)

	for name, val := range map[string]string{
		HeaderActingUser: c.ActingUser,
		HeaderRole:       c.Role,
		HeaderLabID:      c.LabID,
		HeaderDiscipline: c.Discipline,
		HeaderTimezone:   c.Timezone,
	} {
		if val != "" {
			h.Set(name, val)
		}
	}
}
