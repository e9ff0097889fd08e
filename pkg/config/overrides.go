// pkg/config/overrides.go

package config

import (
	"github.com/CodeMonkeyCybersecurity/hestia/pkg/steps"
)

// Apply fills a step's retry policy from the retry section, then applies any
// per-step override keyed by the step name. Values the step sets itself win
// over the retry section but lose to an override.
func (c *Config) Apply(s steps.Step) (steps.Step, error) {
	if s.Retries <= 0 {
		s.Retries = c.Retry.Attempts
	}
	if s.RetryDelay == 0 {
		s.RetryDelay = c.Retry.Delay.Std()
	}

	o, ok := c.Steps[s.Name]
	if !ok {
		return s, nil
	}
	if o.Retries > 0 {
		s.Retries = o.Retries
	}
	if o.RetryDelay > 0 {
		s.RetryDelay = o.RetryDelay.Std()
	}
	if o.OnFailure != "" {
		policy, err := steps.ParseFailurePolicy(o.OnFailure)
		if err != nil {
			return s, err
		}
		s.OnFailure = policy
	}
	return s, nil
}

// ApplyAll runs Apply over list. Overrides naming steps that are not in
// list are returned so the caller can warn about typos.
func (c *Config) ApplyAll(list []steps.Step) ([]steps.Step, []string, error) {
	out := make([]steps.Step, 0, len(list))
	known := make(map[string]struct{}, len(list))
	for _, s := range list {
		applied, err := c.Apply(s)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, applied)
		known[s.Name] = struct{}{}
	}

	var unknown []string
	for name := range c.Steps {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return out, unknown, nil
}
