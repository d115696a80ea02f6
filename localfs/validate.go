package localfs

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amilabs/orchestrator/proc"
)

// DefaultValidatorTimeout bounds a validator command's wall-clock run.
const DefaultValidatorTimeout = 15 * time.Second

const validatorTimeoutLabel = "15 seconds"

// RunFunc executes a shell command with a timeout; proc.Run in production,
// a stub in tests.
type RunFunc func(ctx context.Context, command string, timeout time.Duration) (proc.Result, error)

// Validator runs the per-extension validation command against staged temp
// files before they replace their targets.
type Validator struct {
	types   FileTypes
	timeout time.Duration
	run     RunFunc
	log     *zap.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorTimeout overrides the 15-second default.
func WithValidatorTimeout(d time.Duration) ValidatorOption {
	return func(v *Validator) { v.timeout = d }
}

// WithRunFunc substitutes the command runner.
func WithRunFunc(run RunFunc) ValidatorOption {
	return func(v *Validator) { v.run = run }
}

// WithValidatorLogger sets the structured logger.
func WithValidatorLogger(log *zap.Logger) ValidatorOption {
	return func(v *Validator) { v.log = log }
}

// NewValidator builds a Validator over an extension table.
func NewValidator(types FileTypes, opts ...ValidatorOption) *Validator {
	v := &Validator{
		types:   types,
		timeout: DefaultValidatorTimeout,
		run:     proc.Run,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate judges the staged file at tmpPath with the validator configured
// for its extension. reportPath is the caller-facing target path used in
// error messages. Extensions with no entry, or with the command "none",
// pass without running anything. A non-zero exit or a timeout yields a
// ValidationError; the caller must leave the target untouched.
func (v *Validator) Validate(tmpPath, reportPath string) error {
	ext := strings.ToLower(filepath.Ext(tmpPath))
	ft, ok := v.types[ext]
	if !ok || ft.ValidationCommand == "" || ft.ValidationCommand == "none" {
		v.log.Debug("no validation command for extension", zap.String("extension", ext))
		return nil
	}

	abs, err := filepath.Abs(tmpPath)
	if err != nil {
		abs = tmpPath
	}
	command := strings.ReplaceAll(ft.ValidationCommand, "<file>", `"`+abs+`"`)

	res, err := v.run(context.Background(), command, v.timeout)
	if err != nil {
		return &ValidationError{Path: reportPath, Output: err.Error()}
	}
	output := strings.TrimSpace(res.Output)
	if res.TimedOut {
		v.log.Error("validator timed out", zap.String("command", command), zap.String("path", reportPath))
		return &ValidationError{Path: reportPath, TimedOut: true}
	}
	if res.ExitCode != 0 {
		v.log.Error("validator rejected content",
			zap.String("command", command),
			zap.Int("exit_code", res.ExitCode),
			zap.String("output", output))
		if output == "" {
			output = "validator exited non-zero"
		}
		return &ValidationError{Path: reportPath, Output: output}
	}
	v.log.Debug("validation passed", zap.String("command", command))
	return nil
}
