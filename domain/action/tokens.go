// Package action implements the declarative action engine: resource/
// parameter precondition checks, token substitution, and single-
// transaction application of a handler's side effects.
package action

import (
	"strconv"
	"strings"
	"time"

	"github.com/farant/smaragda/domain/tessella"
	"github.com/farant/smaragda/pkg/apperror"
)

// resolver holds the bindings and params a single execution substitutes
// tokens against: $res.<name>.id, $param.<name>, and $now.
type resolver struct {
	resources map[string]tessella.ResID
	params    map[string]any
	now       time.Time
}

// resolveString performs shallow string replacement of every token form
// found in s. Unresolvable references fail with KindTokenResolution.
func (r *resolver) resolveString(s string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '$' {
			b.WriteByte(s[i])
			i++
			continue
		}
		token, rest, ok := parseToken(s[i:])
		if !ok {
			b.WriteByte(s[i])
			i++
			continue
		}
		value, err := r.resolveToken(token)
		if err != nil {
			return "", err
		}
		b.WriteString(value)
		i += len(s[i:]) - len(rest)
	}
	return b.String(), nil
}

// parseToken extracts one of the three recognized token shapes from the
// start of s, returning the token text (without the trailing rest) and
// the remainder of s after it. ok is false if s does not start with a
// recognized token.
func parseToken(s string) (token string, rest string, ok bool) {
	switch {
	case strings.HasPrefix(s, "$now"):
		return "$now", s[len("$now"):], true
	case strings.HasPrefix(s, "$res."):
		end := tokenEnd(s[len("$res."):], 1)
		return s[:len("$res.")+end], s[len("$res.")+end:], end > 0
	case strings.HasPrefix(s, "$param."):
		end := tokenEnd(s[len("$param."):], 0)
		return s[:len("$param.")+end], s[len("$param.")+end:], end > 0
	}
	return "", s, false
}

// tokenEnd scans a run of `.`-delimited identifier segments (dots
// allowed up to maxDots additional separators beyond the first
// identifier, e.g. "$res.X.id" has one extra dot after the resource
// name) and returns the byte length of the token body consumed.
func tokenEnd(s string, maxDots int) int {
	dots := 0
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '.' {
			dots++
			if dots > maxDots {
				return i
			}
			i++
			continue
		}
		if !isIdentByte(c) {
			break
		}
		i++
	}
	return i
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func (r *resolver) resolveToken(token string) (string, error) {
	switch {
	case token == "$now":
		return r.now.UTC().Format(time.RFC3339), nil

	case strings.HasPrefix(token, "$res."):
		name, field, ok := splitResToken(token)
		if !ok || field != "id" {
			return "", apperror.ErrTokenResolution.WithMessage("malformed $res token: " + token)
		}
		resID, ok := r.resources[name]
		if !ok {
			return "", apperror.ErrTokenResolution.WithMessage("unbound resource: " + name)
		}
		return string(resID), nil

	case strings.HasPrefix(token, "$param."):
		name := strings.TrimPrefix(token, "$param.")
		value, ok := r.params[name]
		if !ok {
			return "", apperror.ErrTokenResolution.WithMessage("unbound parameter: " + name)
		}
		return stringify(value), nil
	}
	return "", apperror.ErrTokenResolution.WithMessage("unrecognized token: " + token)
}

func splitResToken(token string) (name, field string, ok bool) {
	body := strings.TrimPrefix(token, "$res.")
	idx := strings.LastIndex(body, ".")
	if idx < 0 {
		return "", "", false
	}
	return body[:idx], body[idx+1:], true
}

func stringify(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case int:
		return strconv.Itoa(vv)
	default:
		return ""
	}
}

// resolveAny substitutes tokens inside every string found in v,
// recursing into maps/slices, so handler fields carrying nested
// structures (e.g. create_task's context_res_ids) still get resolved.
func (r *resolver) resolveAny(v any) (any, error) {
	switch vv := v.(type) {
	case string:
		return r.resolveString(vv)
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			resolved, err := r.resolveAny(val)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			resolved, err := r.resolveAny(val)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
