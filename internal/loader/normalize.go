package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sdpower/ccledger/internal/types"
)

// ErrNotUsage marks a well-formed line that carries no usage, such as a user
// turn or a summary. It is ignored rather than counted as skipped.
var ErrNotUsage = errors.New("not a usage record")

const syntheticModel = "<synthetic>"

// Record is the subset of a log line the ledger reads. Unknown fields are
// ignored.
type Record struct {
	Timestamp json.RawMessage `json:"timestamp"`
	RequestID string          `json:"requestId"`
	Message   *RecordMessage  `json:"message"`
	CostUSD   *float64        `json:"costUSD"`
}

type RecordMessage struct {
	ID    string       `json:"id"`
	Model string       `json:"model"`
	Usage *RecordUsage `json:"usage"`
}

type RecordUsage struct {
	InputTokens              *int64 `json:"input_tokens"`
	OutputTokens             *int64 `json:"output_tokens"`
	CacheCreationInputTokens *int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     *int64 `json:"cache_read_input_tokens"`
}

// DedupeKey identifies repeated copies of one API response. Empty when
// either id is missing.
func (r Record) DedupeKey() string {
	if r.Message == nil || r.Message.ID == "" || r.RequestID == "" {
		return ""
	}
	return r.Message.ID + ":" + r.RequestID
}

// DecodeLine parses one JSON line and normalizes it.
func DecodeLine(line []byte, sessionKey string) (types.UsageEvent, Record, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return types.UsageEvent{}, rec, fmt.Errorf("%w: %v", types.ErrInvalidFormat, err)
	}
	event, err := Normalize(rec, sessionKey)
	return event, rec, err
}

// Normalize maps a decoded record onto a UsageEvent. It is pure: the same
// record and session key always give the same event.
func Normalize(rec Record, sessionKey string) (types.UsageEvent, error) {
	var usage *RecordUsage
	var model string
	if rec.Message != nil {
		usage = rec.Message.Usage
		model = strings.TrimSpace(rec.Message.Model)
	}
	if usage == nil && rec.CostUSD == nil {
		return types.UsageEvent{}, ErrNotUsage
	}
	if model == syntheticModel {
		return types.UsageEvent{}, ErrNotUsage
	}

	ts, err := parseTimestamp(rec.Timestamp)
	if err != nil {
		return types.UsageEvent{}, err
	}

	event := types.UsageEvent{
		Timestamp:       ts,
		Model:           model,
		SessionKey:      sessionKey,
		UnpricedByModel: model == "",
	}
	if usage != nil {
		event.Tokens = types.TokenCounts{
			InputTokens:              count(usage.InputTokens),
			OutputTokens:             count(usage.OutputTokens),
			CacheCreationInputTokens: count(usage.CacheCreationInputTokens),
			CacheReadInputTokens:     count(usage.CacheReadInputTokens),
		}
	}
	if rec.CostUSD != nil {
		cost := *rec.CostUSD
		event.ReportedCost = &cost
	}
	return event, nil
}

// count defaults a missing value to zero and clamps negatives.
func count(v *int64) int64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, types.ErrMissingTimestamp
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", types.ErrInvalidTimestamp, err)
		}
		if strings.TrimSpace(s) == "" {
			return time.Time{}, types.ErrMissingTimestamp
		}
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", types.ErrInvalidTimestamp, s)
		}
		return t.UTC(), nil
	}

	// numeric epoch, seconds or milliseconds
	n, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("%w: %s", types.ErrInvalidTimestamp, raw)
	}
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC(), nil
	}
	return time.Unix(int64(n), 0).UTC(), nil
}

// SessionKey derives a stable session identifier from a file's location:
// the slash-separated path relative to root, without the .jsonl extension.
func SessionKey(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	if ext := filepath.Ext(rel); strings.EqualFold(ext, ".jsonl") {
		rel = rel[:len(rel)-len(ext)]
	}
	return rel
}
