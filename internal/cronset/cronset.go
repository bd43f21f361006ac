// Package cronset reconciles a desired set of scheduled jobs into a crontab
// additively: missing jobs are appended, nothing else is touched.
package cronset

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// JobSpec is one desired scheduled job. Match identifies the job in the live
// table by substring; it defaults to Command.
type JobSpec struct {
	ID       string
	Schedule string
	Command  string
	Match    string
	Tool     string
}

// Identity returns the substring used to recognise the job.
func (j JobSpec) Identity() string {
	if j.Match != "" {
		return j.Match
	}
	return j.Command
}

// Line renders the job as a crontab line.
func (j JobSpec) Line() string {
	return j.Schedule + " " + j.Command
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a five-field or @descriptor schedule. @reboot is
// a crontab extension cron/v3 does not model, so it is accepted as is.
func ValidateSchedule(schedule string) error {
	if schedule == "@reboot" {
		return nil
	}
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// EntryKind classifies a crontab line.
type EntryKind int

const (
	EntryBlank EntryKind = iota
	EntryComment
	EntryEnv
	EntryJob
)

// Entry is one parsed line. Raw is the line exactly as read, without its
// newline.
type Entry struct {
	Kind     EntryKind
	Raw      string
	Schedule string
	Command  string
}

// Parse splits a crontab into entries. Lines it cannot classify as job
// lines are still kept as comments so nothing is ever lost.
func Parse(table []byte) []Entry {
	text := string(table)
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	entries := make([]Entry, 0, len(lines))
	for _, raw := range lines {
		entries = append(entries, parseLine(raw))
	}
	return entries
}

func parseLine(raw string) Entry {
	line := strings.TrimSpace(raw)
	switch {
	case line == "":
		return Entry{Kind: EntryBlank, Raw: raw}
	case strings.HasPrefix(line, "#"):
		return Entry{Kind: EntryComment, Raw: raw}
	}

	fields := strings.Fields(line)
	if strings.HasPrefix(fields[0], "@") {
		if len(fields) < 2 {
			return Entry{Kind: EntryComment, Raw: raw}
		}
		return Entry{Kind: EntryJob, Raw: raw, Schedule: fields[0], Command: strings.Join(fields[1:], " ")}
	}

	if eq := strings.IndexByte(line, '='); eq > 0 && !strings.ContainsAny(line[:eq], " \t") {
		return Entry{Kind: EntryEnv, Raw: raw}
	}

	if len(fields) < 6 {
		return Entry{Kind: EntryComment, Raw: raw}
	}
	return Entry{Kind: EntryJob, Raw: raw, Schedule: strings.Join(fields[:5], " "), Command: strings.Join(fields[5:], " ")}
}

// identifying returns the lines a job can be recognised in: jobs and
// comments. A job an operator disabled with # still counts as present, so
// it is never re-enabled or duplicated.
func identifying(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Kind == EntryJob || e.Kind == EntryComment {
			out = append(out, e)
		}
	}
	return out
}

// Missing returns the desired specs no live line identifies, in desired
// order. A matching line with a different schedule counts as present.
func Missing(desired []JobSpec, entries []Entry) []JobSpec {
	lines := identifying(entries)
	var missing []JobSpec
	for _, spec := range desired {
		found := false
		for _, e := range lines {
			if strings.Contains(e.Raw, spec.Identity()) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, spec)
		}
	}
	return missing
}

// Merge appends the lines of missing to table. The original bytes are the
// untouched prefix of the result; a newline is inserted only when the
// original does not end with one.
func Merge(table []byte, missing []JobSpec) []byte {
	if len(missing) == 0 {
		return append([]byte(nil), table...)
	}

	var buf bytes.Buffer
	buf.Write(table)
	if len(table) > 0 && !bytes.HasSuffix(table, []byte("\n")) {
		buf.WriteByte('\n')
	}
	for _, spec := range missing {
		buf.WriteString(spec.Line())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// IDs lists spec identifiers.
func IDs(specs []JobSpec) []string {
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	return ids
}
