// pkg/execute/dryrun.go

package execute

import (
	"context"
	"sync"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Response is a canned result for DryRunner.
type Response struct {
	Output string
	Err    error
}

// DryRunner records commands instead of running them. Responses can be
// scripted per command line or per command name.
type DryRunner struct {
	mu        sync.Mutex
	calls     []Options
	responses map[string][]Response
}

var _ Runner = (*DryRunner)(nil)

func NewDryRunner() *DryRunner {
	return &DryRunner{responses: make(map[string][]Response)}
}

// On queues a response for key, which is either a full command line as
// rendered by CommandString or a bare command name. Queued responses are
// consumed in order; the last one repeats.
func (d *DryRunner) On(key string, output string, err error) *DryRunner {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses[key] = append(d.responses[key], Response{Output: output, Err: err})
	return d
}

func (d *DryRunner) Run(ctx context.Context, opts Options) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, opts)
	otelzap.Ctx(ctx).Info("Dry run: command not executed", zap.String("command", opts.String()))

	for _, key := range []string{opts.String(), opts.Command} {
		queue, ok := d.responses[key]
		if !ok || len(queue) == 0 {
			continue
		}
		r := queue[0]
		if len(queue) > 1 {
			d.responses[key] = queue[1:]
		}
		return r.Output, r.Err
	}
	return "", nil
}

// Calls returns every command seen so far.
func (d *DryRunner) Calls() []Options {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Options(nil), d.calls...)
}

// Commands returns the rendered command lines seen so far.
func (d *DryRunner) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	for i, c := range d.calls {
		out[i] = c.String()
	}
	return out
}
