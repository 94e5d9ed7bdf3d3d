package dispatch

import (
	"fmt"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// SecretFinding is one suspected credential in file content.
type SecretFinding struct {
	RuleID      string
	Description string
	Line        int
}

func (f SecretFinding) String() string {
	return fmt.Sprintf("%s on line %d", f.RuleID, f.Line)
}

// SecretScanner inspects content before it is committed.
type SecretScanner interface {
	Scan(content string) []SecretFinding
}

// GitleaksScanner runs the default gitleaks rule set.
type GitleaksScanner struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewGitleaksScanner loads the default gitleaks configuration.
func NewGitleaksScanner() (*GitleaksScanner, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load gitleaks rules: %w", err)
	}
	return &GitleaksScanner{detector: detector}, nil
}

// Scan implements SecretScanner.
func (s *GitleaksScanner) Scan(content string) []SecretFinding {
	if content == "" {
		return nil
	}
	// The detector accumulates findings internally and is not safe for
	// concurrent calls.
	s.mu.Lock()
	findings := s.detector.DetectString(content)
	s.mu.Unlock()

	out := make([]SecretFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, SecretFinding{RuleID: f.RuleID, Description: f.Description, Line: f.StartLine})
	}
	return out
}
