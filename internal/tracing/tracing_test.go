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

package tracing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FromContextOrEmpty(ctx))
	assert.True(t, FromContext(ctx).IsValid())

	id := NewCorrelationID()
	ctx = ToContext(ctx, id)
	assert.Equal(t, id, FromContext(ctx))
	assert.Equal(t, id, FromContextOrEmpty(ctx))
}

func TestMiddleware(t *testing.T) {
	var seen CorrelationID
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContextOrEmpty(r.Context())
	}))

	t.Run("generates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, seen.IsValid())
		assert.Equal(t, seen.String(), rec.Header().Get(HeaderCorrelationID))
	})

	t.Run("propagates request id", func(t *testing.T) {
		id := NewCorrelationID()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, id.String())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, id, seen)
	})

	t.Run("rejects malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderCorrelationID, "nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestInjectIntoRequest(t *testing.T) {
	id := NewCorrelationID()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	InjectIntoRequest(ToContext(context.Background(), id), req)
	assert.Equal(t, id.String(), req.Header.Get(HeaderCorrelationID))
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{})
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "op")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Console(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(context.Background(), Config{
		Enabled:     true,
		ServiceName: "opspilot-test",
		Exporter:    ExporterConsole,
		Writer:      &buf,
	})
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "execute-step")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "execute-step")
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}

func TestNewProvider_OTLPNeedsEndpoint(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, Exporter: ExporterOTLPHTTP})
	assert.Error(t, err)
}
