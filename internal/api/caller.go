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

package api

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tombee/opspilot/internal/executor"
)

// tokenClaims are the identity claims read from a forwarded bearer token.
type tokenClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Email             string   `json:"email,omitempty"`
	Role              string   `json:"role,omitempty"`
	Roles             []string `json:"roles,omitempty"`
}

// callerFromRequest collects the caller context from request headers.
//
// The bearer token is forwarded to downstream services, which verify it.
// Its claims are only read, unverified, to fill in an acting user or role
// the caller did not send explicitly.
func callerFromRequest(r *http.Request) executor.Caller {
	c := executor.Caller{
		ActingUser: r.Header.Get(executor.HeaderActingUser),
		Role:       r.Header.Get(executor.HeaderRole),
		LabID:      r.Header.Get(executor.HeaderLabID),
		Discipline: r.Header.Get(executor.HeaderDiscipline),
		Timezone:   r.Header.Get(executor.HeaderTimezone),
		Accept:     r.Header.Get(executor.HeaderAccept),
		Headers:    r.Header.Clone(),
	}
	c.Headers.Del(executor.HeaderAuthorization)

	auth := r.Header.Get(executor.HeaderAuthorization)
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		c.Token = strings.TrimSpace(token)
	}
	if c.Token == "" || (c.ActingUser != "" && c.Role != "") {
		return c
	}

	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return c
	}
	if c.ActingUser == "" {
		c.ActingUser = firstNonEmpty(claims.PreferredUsername, claims.Email, claims.Subject)
	}
	if c.Role == "" {
		c.Role = claims.Role
		if c.Role == "" && len(claims.Roles) > 0 {
			c.Role = claims.Roles[0]
		}
	}
	return c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
