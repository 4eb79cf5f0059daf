package config

import (
	"fmt"
	"net"
	"strings"

	"keyscribe/internal/chord"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	// Validate version
	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if outputErrs := validateOutput(&c.Output); len(outputErrs) > 0 {
		errs = append(errs, outputErrs...)
	}

	if captureErrs := validateCapture(&c.Capture); len(captureErrs) > 0 {
		errs = append(errs, captureErrs...)
	}

	if journalErrs := validateJournal(&c.Journal); len(journalErrs) > 0 {
		errs = append(errs, journalErrs...)
	}

	if metricsErrs := validateMetrics(&c.Metrics); len(metricsErrs) > 0 {
		errs = append(errs, metricsErrs...)
	}

	if loggingErrs := validateLogging(&c.Logging); len(loggingErrs) > 0 {
		errs = append(errs, loggingErrs...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateOutput(o *OutputConfig) ValidationErrors {
	var errs ValidationErrors

	switch o.Backend {
	case "", "auto", "uinput", "wayland":
		// Valid backends
	default:
		errs = append(errs, ValidationError{
			Field:   "output.backend",
			Message: fmt.Sprintf("invalid backend: %s (valid: auto, uinput, wayland)", o.Backend),
		})
	}

	return errs
}

func validateCapture(c *CaptureConfig) ValidationErrors {
	var errs ValidationErrors

	switch c.Backend {
	case "", "auto", "evdev", "wayland":
		// Valid backends
	default:
		errs = append(errs, ValidationError{
			Field:   "capture.backend",
			Message: fmt.Sprintf("invalid backend: %s (valid: auto, evdev, wayland)", c.Backend),
		})
	}

	for i, name := range c.SuppressKeys {
		ch, err := chord.Parse(name)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("capture.suppress_keys[%d]", i),
				Message: fmt.Sprintf("unknown key %q", name),
			})
			continue
		}
		// Suppression matches single key codes, not combinations.
		if len(ch.Modifiers) > 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("capture.suppress_keys[%d]", i),
				Message: fmt.Sprintf("%q is a combination, expected a single key", name),
			})
		}
	}

	return errs
}

func validateJournal(j *JournalConfig) ValidationErrors {
	var errs ValidationErrors

	if j.Enabled && j.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "journal.path",
			Message: "path is required when the journal is enabled",
		})
	}

	if j.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "journal.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}

	if j.RetentionDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "journal.retention_days",
			Message: "retention cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if m.Enabled {
		if _, _, err := net.SplitHostPort(m.ListenAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics.listen_addr",
				Message: fmt.Sprintf("invalid listen address %q: %v", m.ListenAddr, err),
			})
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr", "file", "both":
		if (l.Output == "file" || l.Output == "both") && l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output includes a file",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	return errs
}
