// pkg/runner/yaml.go

package runner

import (
	"io"
	"time"

	cerr "github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

type yamlEntry struct {
	Name     string `yaml:"name"`
	Outcome  string `yaml:"outcome"`
	Policy   string `yaml:"policy"`
	Attempts int    `yaml:"attempts,omitempty"`
	Duration string `yaml:"duration,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

type yamlReport struct {
	RunID      string      `yaml:"run_id"`
	StartedAt  time.Time   `yaml:"started_at"`
	FinishedAt time.Time   `yaml:"finished_at"`
	DryRun     bool        `yaml:"dry_run,omitempty"`
	Aborted    bool        `yaml:"aborted"`
	AbortedAt  string      `yaml:"aborted_at,omitempty"`
	ExitCode   int         `yaml:"exit_code"`
	Steps      []yamlEntry `yaml:"steps"`
}

// MarshalYAML implements yaml.Marshaler.
func (r *RunReport) MarshalYAML() (interface{}, error) {
	out := yamlReport{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
		DryRun:     r.DryRun,
		Aborted:    r.Aborted,
		AbortedAt:  r.AbortedAt,
		ExitCode:   r.ExitCode(),
		Steps:      make([]yamlEntry, 0, len(r.Entries)),
	}
	for _, e := range r.Entries {
		ye := yamlEntry{
			Name:     e.Name,
			Outcome:  e.Outcome.String(),
			Policy:   e.Policy.String(),
			Attempts: e.Attempts,
		}
		if e.Duration > 0 {
			ye.Duration = e.Duration.Round(time.Millisecond).String()
		}
		if e.Err != nil {
			ye.Error = e.Err.Error()
		}
		out.Steps = append(out.Steps, ye)
	}
	return out, nil
}

// WriteYAML encodes the report as a YAML document.
func (r *RunReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return cerr.Wrap(err, "encode run report")
	}
	return cerr.Wrap(enc.Close(), "flush run report")
}
