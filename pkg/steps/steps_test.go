package steps

import (
	"context"
	"testing"

	"github.com/CodeMonkeyCybersecurity/hestia/pkg/hestia_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestAttempts(t *testing.T) {
	assert.Equal(t, DefaultRetries, Step{}.Attempts())
	assert.Equal(t, DefaultRetries, Step{Retries: -1}.Attempts())
	assert.Equal(t, 1, Step{Retries: 1}.Attempts())
	assert.Equal(t, 7, Step{Retries: 7}.Attempts())
}

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{in: "", want: Halt},
		{in: "halt", want: Halt},
		{in: "HALT", want: Halt},
		{in: "continue", want: ContinueNext},
		{in: "continue-next", want: ContinueNext},
		{in: " continue_next ", want: ContinueNext},
		{in: "ignore", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFailurePolicy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, 2, hestia_err.GetExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "halt", Halt.String())
	assert.Equal(t, "continue", ContinueNext.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		steps   []Step
		wantErr string
	}{
		{name: "ok", steps: []Step{{Name: "A", Body: noop}, {Name: "B", Body: noop}}},
		{name: "empty list", steps: nil},
		{name: "empty name", steps: []Step{{Name: " ", Body: noop}}, wantErr: "empty name"},
		{name: "newline", steps: []Step{{Name: "a\nb", Body: noop}}, wantErr: "newline"},
		{name: "padded", steps: []Step{{Name: " a", Body: noop}}, wantErr: "whitespace"},
		{name: "duplicate", steps: []Step{{Name: "A", Body: noop}, {Name: "A", Body: noop}}, wantErr: "duplicate"},
		{name: "nil body", steps: []Step{{Name: "A"}}, wantErr: "no body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.steps)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
