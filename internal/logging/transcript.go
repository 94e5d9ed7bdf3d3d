package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TranscriptLogger writes one session's prompts, model replies and outcomes
// to a file. A nil *TranscriptLogger is valid and discards everything.
type TranscriptLogger struct {
	sessionID string
	path      string
	logFile   *os.File
	mutex     sync.Mutex
	startTime time.Time
}

// StartTranscript creates dir if needed and opens a new transcript file for
// sessionID. An empty dir disables transcripts and returns nil.
func StartTranscript(dir, sessionID string) (*TranscriptLogger, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("session_%s_%s.log", sessionID, timestamp))
	logFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	t := &TranscriptLogger{
		sessionID: sessionID,
		path:      path,
		logFile:   logFile,
		startTime: time.Now(),
	}
	t.writeRaw(fmt.Sprintf("GITLABASSIST SESSION TRANSCRIPT\nSession ID: %s\nStart Time: %s\nLog Format: [HH:MM:SS.mmm] [+duration] message\n\n",
		sessionID, t.startTime.Format("2006-01-02 15:04:05")))
	return t, nil
}

// Path returns the transcript file location.
func (t *TranscriptLogger) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Log writes a timestamped line.
func (t *TranscriptLogger) Log(format string, args ...any) {
	if t == nil {
		return
	}
	elapsed := time.Since(t.startTime).Round(time.Millisecond)
	t.writeRaw(fmt.Sprintf("[%s] [+%v] %s\n", time.Now().Format("15:04:05.000"), elapsed, fmt.Sprintf(format, args...)))
}

// LogSection writes a section header.
func (t *TranscriptLogger) LogSection(title string) {
	if t == nil {
		return
	}
	separator := strings.Repeat("=", 80)
	t.Log("%s", separator)
	t.Log("= %s", title)
	t.Log("%s", separator)
}

// LogRequest records the text sent to the model.
func (t *TranscriptLogger) LogRequest(model, prompt string) {
	t.logBlock("LLM REQUEST", "PROMPT", fmt.Sprintf("Model: %s", model), prompt)
}

// LogResponse records the raw model reply.
func (t *TranscriptLogger) LogResponse(response string) {
	t.logBlock("LLM RESPONSE", "RESPONSE", "", response)
}

// LogOutcome records the action and result of a turn.
func (t *TranscriptLogger) LogOutcome(actionJSON, result string) {
	if t == nil {
		return
	}
	t.LogSection("TURN RESULT")
	t.Log("Action: %s", actionJSON)
	t.Log("Result: %s", result)
}

// LogError records a failure with its context.
func (t *TranscriptLogger) LogError(context string, err error) {
	if t == nil {
		return
	}
	t.Log("ERROR in %s: %v", context, err)
}

// Close writes the footer and closes the file.
func (t *TranscriptLogger) Close() error {
	if t == nil {
		return nil
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.logFile == nil {
		return nil
	}
	fmt.Fprintf(t.logFile, "[%s] Session transcript completed. Total duration: %v\n",
		time.Now().Format("15:04:05.000"), time.Since(t.startTime).Round(time.Millisecond))
	err := t.logFile.Close()
	t.logFile = nil
	return err
}

func (t *TranscriptLogger) logBlock(section, label, header, body string) {
	if t == nil {
		return
	}
	t.LogSection(section)
	if header != "" {
		t.Log("%s", header)
	}
	t.Log("%s length: %d characters", strings.ToLower(label), len(body))
	t.Log("--- %s START ---", label)
	t.writeRaw(body + "\n")
	t.Log("--- %s END ---", label)
}

func (t *TranscriptLogger) writeRaw(s string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.logFile == nil {
		return
	}
	_, _ = t.logFile.WriteString(s)
	_ = t.logFile.Sync()
}
