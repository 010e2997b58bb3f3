// Package changelog records dashboard content transitions as line-oriented
// text diffs between canonicalized snapshots.
package changelog

import (
	"encoding/json"

	"github.com/andreyvit/diff"
	"go.uber.org/zap"
)

// volatile fields are stripped from both snapshots before comparing so that
// timestamp churn alone never produces a changelog row.
var volatileFields = []string{"create_time", "update_time"}

// Recorder computes the diff between two snapshots of an entity. It is
// deliberately isolated from the caller's transaction: a diffing failure is
// logged and reported as "no diff", never surfaced, so the mutation being
// recorded always commits.
type Recorder struct {
	log *zap.Logger
}

func NewRecorder(log *zap.Logger) *Recorder {
	return &Recorder{log: log}
}

// Diff returns the line diff between the canonical forms of before and
// after, or the empty string when they are identical.
func (r *Recorder) Diff(before, after interface{}) string {
	b, err := canonicalize(before)
	if err != nil {
		r.log.Warn("Failed to canonicalize changelog snapshot", zap.Error(err))
		return ""
	}
	a, err := canonicalize(after)
	if err != nil {
		r.log.Warn("Failed to canonicalize changelog snapshot", zap.Error(err))
		return ""
	}
	if a == b {
		return ""
	}
	return diff.LineDiff(b, a)
}

// canonicalize produces a deterministic serialized form of v: snapshots are
// round-tripped through a generic map so struct field order cannot leak
// into the output, volatile fields are dropped, and encoding/json emits map
// keys in sorted order.
func canonicalize(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var m interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}
	if obj, ok := m.(map[string]interface{}); ok {
		for _, f := range volatileFields {
			delete(obj, f)
		}
	}
	out, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
