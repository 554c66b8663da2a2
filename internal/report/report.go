// Package report turns pipeline errors into operator-facing failure lists.
package report

import (
	"errors"
	"sort"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"

	"shorts-sync/internal/i18n"
	"shorts-sync/internal/models"
)

// Failure names what failed, where and why. Index is -1 for run-level failures.
type Failure struct {
	Index  int          `json:"index"`
	Stage  models.Stage `json:"stage"`
	Reason string       `json:"reason"`
}

// Failures flattens a (possibly joined) pipeline error into one entry per
// failed segment, ordered by index.
func Failures(err error) []Failure {
	if err == nil {
		return nil
	}
	var out []Failure
	collect(err, &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func collect(err error, out *[]Failure) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			collect(e, out)
		}
		return
	}

	var seg models.SegmentError
	if errors.As(err, &seg) {
		*out = append(*out, Failure{Index: seg.SegmentIndex(), Stage: seg.Stage(), Reason: reason(err)})
		return
	}

	var incomplete *models.IncompleteAssemblyError
	if errors.As(err, &incomplete) {
		for _, i := range incomplete.MissingAudio {
			*out = append(*out, Failure{Index: i, Stage: models.StageAssembly, Reason: "missing audio"})
		}
		for _, i := range incomplete.MissingVideo {
			*out = append(*out, Failure{Index: i, Stage: models.StageAssembly, Reason: "missing video clip"})
		}
		for _, i := range incomplete.Duplicates {
			*out = append(*out, Failure{Index: i, Stage: models.StageAssembly, Reason: "duplicate entry"})
		}
		for _, i := range incomplete.Unexpected {
			*out = append(*out, Failure{Index: i, Stage: models.StageAssembly, Reason: "unexpected index"})
		}
		if len(incomplete.MissingAudio)+len(incomplete.MissingVideo)+len(incomplete.Duplicates)+len(incomplete.Unexpected) == 0 {
			*out = append(*out, Failure{Index: -1, Stage: models.StageAssembly, Reason: incomplete.Error()})
		}
		return
	}

	var malformed *models.MalformedScriptError
	if errors.As(err, &malformed) {
		*out = append(*out, Failure{Index: -1, Stage: models.StageScript, Reason: malformed.Error()})
		return
	}

	*out = append(*out, Failure{Index: -1, Reason: err.Error()})
}

// reason strips the "segment N:" prefix the typed errors carry.
func reason(err error) string {
	var u interface{ Unwrap() error }
	if errors.As(err, &u) {
		if inner := u.Unwrap(); inner != nil {
			return inner.Error()
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && strings.HasPrefix(msg, "segment ") {
		return msg[i+2:]
	}
	return msg
}

// Render formats failures as a localized message for chat or logs.
func Render(l *goi18n.Localizer, runID string, failures []Failure) string {
	lines := []string{i18n.Text(l, "report_header", map[string]any{"RunID": runID})}
	for _, f := range failures {
		data := map[string]any{"Index": f.Index, "Reason": f.Reason}
		if f.Stage != "" {
			data["Stage"] = i18n.Text(l, "stage_"+string(f.Stage), nil)
		}
		switch {
		case f.Index >= 0:
			lines = append(lines, i18n.Text(l, "report_segment", data))
		case f.Stage != "":
			lines = append(lines, i18n.Text(l, "report_run", data))
		default:
			lines = append(lines, i18n.Text(l, "report_run_plain", data))
		}
	}
	return strings.Join(lines, "\n")
}
