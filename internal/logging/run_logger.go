package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunLogger writes a plain-text transcript of one fetch or summarize run,
// including the full prompt and response when an LLM is involved.
type RunLogger struct {
	runID     string
	path      string
	logFile   *os.File
	console   io.Writer
	mutex     sync.Mutex
	startTime time.Time
}

// StartRun creates dir if needed and opens run_<id>_<timestamp>.log in it.
// Lines are also echoed to console when it is non-nil.
func StartRun(dir string, console io.Writer) (*RunLogger, error) {
	runID := uuid.NewString()
	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(dir, fmt.Sprintf("run_%s_%s.log", runID, timestamp))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	r := &RunLogger{
		runID:     runID,
		path:      logPath,
		logFile:   logFile,
		console:   console,
		startTime: time.Now(),
	}
	r.writeHeader()
	return r, nil
}

// RunID returns the generated run id.
func (r *RunLogger) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Path returns the log file location.
func (r *RunLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Log writes a timestamped line. Safe on a nil receiver.
func (r *RunLogger) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.logFile == nil {
		return
	}

	timestamp := time.Now().Format("15:04:05.000")
	elapsed := time.Since(r.startTime)
	message := fmt.Sprintf("[%s] [+%v] %s\n", timestamp, elapsed.Round(time.Millisecond), fmt.Sprintf(format, args...))
	r.logFile.WriteString(message)

	if r.console != nil {
		fmt.Fprintf(r.console, "[RUN LOG] %s", message)
	}
}

// Section writes a banner line.
func (r *RunLogger) Section(title string) {
	if r == nil {
		return
	}

	separator := strings.Repeat("=", 80)
	r.Log("%s", separator)
	r.Log("= %s", title)
	r.Log("%s", separator)
}

// Block writes a multi-line payload verbatim between start and end markers.
func (r *RunLogger) Block(name, content string) {
	if r == nil {
		return
	}

	r.Log("--- %s START (%d characters) ---", name, len(content))
	r.mutex.Lock()
	if r.logFile != nil {
		r.logFile.WriteString(content + "\n")
	}
	r.mutex.Unlock()
	r.Log("--- %s END ---", name)
}

// LogRequest records an LLM prompt.
func (r *RunLogger) LogRequest(model, prompt string) {
	if r == nil {
		return
	}
	r.Section("LLM REQUEST")
	r.Log("Model: %s", model)
	r.Block("PROMPT", prompt)
}

// LogResponse records an LLM response.
func (r *RunLogger) LogResponse(response string) {
	if r == nil {
		return
	}
	r.Section("LLM RESPONSE")
	r.Block("RESPONSE", response)
}

// LogError records a failure of the named step.
func (r *RunLogger) LogError(step string, err error) {
	r.Log("ERROR in %s: %v", step, err)
}

// Hook mirrors warn and error events of a zerolog logger into the run log.
func (r *RunLogger) Hook() zerolog.Hook {
	return zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
		if level >= zerolog.WarnLevel {
			r.Log("%s: %s", strings.ToUpper(level.String()), msg)
		}
	})
}

// Close writes the total duration and closes the file.
func (r *RunLogger) Close() {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.logFile != nil {
		timestamp := time.Now().Format("15:04:05.000")
		elapsed := time.Since(r.startTime)
		finalMessage := fmt.Sprintf("[%s] [+%v] Run completed. Total duration: %v\n",
			timestamp, elapsed.Round(time.Millisecond), elapsed)
		r.logFile.WriteString(finalMessage)
		r.logFile.Sync()
		r.logFile.Close()
		r.logFile = nil

		if r.console != nil {
			fmt.Fprintf(r.console, "[RUN LOG] %s", finalMessage)
		}
	}
}

func (r *RunLogger) writeHeader() {
	header := fmt.Sprintf(`THREADRANK RUN LOG
Run ID: %s
Start Time: %s
Log Format: [HH:MM:SS.mmm] [+duration] message

`, r.runID, r.startTime.Format("2006-01-02 15:04:05"))

	r.logFile.WriteString(header)
	r.logFile.Sync()
}
