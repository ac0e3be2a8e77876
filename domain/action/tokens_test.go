package action

import (
	"testing"
	"time"

	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolver() *resolver {
	return &resolver{
		resources: map[string]tessella.ResID{"order": "01ORDERID0000000000000000"},
		params:    map[string]any{"amount": float64(42), "note": "hi", "urgent": true},
		now:       time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestResolveString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"now token", "at $now", "at 2026-07-30T12:00:00Z", false},
		{"res id token", "order is $res.order.id", "order is 01ORDERID0000000000000000", false},
		{"param token", "amount: $param.amount", "amount: 42", false},
		{"param bool", "urgent=$param.urgent", "urgent=true", false},
		{"no tokens", "plain text", "plain text", false},
		{"multiple tokens", "$res.order.id at $now", "01ORDERID0000000000000000 at 2026-07-30T12:00:00Z", false},
		{"unbound resource", "$res.missing.id", "", true},
		{"unbound param", "$param.missing", "", true},
		{"dollar without token", "$5 off", "$5 off", false},
	}
	r := testResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.resolveString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.Of(err, apperror.KindTokenResolution))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantToken string
		wantRest  string
		wantOK    bool
	}{
		{"now", "$now and more", "$now", " and more", true},
		{"res", "$res.order.id rest", "$res.order.id", " rest", true},
		{"param", "$param.amount rest", "$param.amount", " rest", true},
		{"not a token", "$5 off", "", "$5 off", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, rest, ok := parseToken(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantToken, token)
				assert.Equal(t, tt.wantRest, rest)
			}
		})
	}
}

func TestSplitResToken(t *testing.T) {
	name, field, ok := splitResToken("$res.order.id")
	require.True(t, ok)
	assert.Equal(t, "order", name)
	assert.Equal(t, "id", field)

	_, _, ok = splitResToken("$res.order")
	assert.False(t, ok)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "hi", stringify("hi"))
	assert.Equal(t, "true", stringify(true))
	assert.Equal(t, "42", stringify(float64(42)))
	assert.Equal(t, "7", stringify(7))
	assert.Equal(t, "", stringify(nil))
}

func TestResolveAny_NestedStructures(t *testing.T) {
	r := testResolver()
	input := map[string]any{
		"res":     "$res.order.id",
		"note":    "$param.note",
		"nested":  map[string]any{"amount": "$param.amount"},
		"list":    []any{"$res.order.id", "literal"},
		"untouched": float64(1),
	}
	got, err := r.resolveAny(input)
	require.NoError(t, err)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "01ORDERID0000000000000000", m["res"])
	assert.Equal(t, "hi", m["note"])
	assert.Equal(t, float64(1), m["untouched"])

	nested, ok := m["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "42", nested["amount"])

	list, ok := m["list"].([]any)
	require.True(t, ok)
	assert.Equal(t, "01ORDERID0000000000000000", list[0])
	assert.Equal(t, "literal", list[1])
}

func TestResolveAny_PropagatesError(t *testing.T) {
	r := testResolver()
	_, err := r.resolveAny(map[string]any{"bad": "$res.missing.id"})
	require.Error(t, err)
	assert.True(t, apperror.Of(err, apperror.KindTokenResolution))
}
