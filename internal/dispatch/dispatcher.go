// Package dispatch routes canonical actions to backend operations and turns
// every backend failure into an OperationOutcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gitlabassist/internal/retry"
	"github.com/gitlabassist/pkg/models"
)

// Config contains dispatcher policy
type Config struct {
	DefaultBranch     string        `koanf:"-"`
	Timeout           time.Duration `koanf:"timeout"`
	Retries           int           `koanf:"retries"`
	ProtectedBranches []string      `koanf:"protected_branches"`
	PrimaryBranches   []string      `koanf:"primary_branches"`
	AutoBranch        bool          `koanf:"auto_branch"`
	ScanSecrets       bool          `koanf:"scan_secrets"`
}

// DefaultConfig returns the stock policy.
func DefaultConfig() Config {
	return Config{
		DefaultBranch:     "main",
		Timeout:           30 * time.Second,
		Retries:           2,
		ProtectedBranches: []string{"main", "master"},
		PrimaryBranches:   []string{"main", "master", "develop"},
		AutoBranch:        true,
		ScanSecrets:       true,
	}
}

// Dispatcher executes canonical actions for one session. Calls are expected
// to be sequential; the mutex only guards the ledger.
type Dispatcher struct {
	backend Backend
	cfg     Config
	scanner SecretScanner
	logger  zerolog.Logger
	now     func() time.Time
	routes  map[models.ActionName]route
	retry   retry.RetryConfig

	mu     sync.Mutex
	ledger map[string]*models.OperationOutcome
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSecretScanner enables content scanning before file writes.
func WithSecretScanner(s SecretScanner) Option {
	return func(d *Dispatcher) { d.scanner = s }
}

// WithLogger sets the logger; the global logger is used otherwise.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithClock overrides time.Now, used for feature branch names.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a Dispatcher over backend.
func New(backend Backend, cfg Config, opts ...Option) *Dispatcher {
	if cfg.DefaultBranch == "" {
		cfg.DefaultBranch = "main"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	d := &Dispatcher{
		backend: backend,
		cfg:     cfg,
		logger:  log.Logger,
		now:     time.Now,
		retry:   retry.BackendRetryConfig(cfg.Retries),
		ledger:  map[string]*models.OperationOutcome{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if !cfg.ScanSecrets {
		d.scanner = nil
	}
	d.routes = d.routeTable()
	return d
}

// BeginTurn starts a new user turn and forgets completed actions.
func (d *Dispatcher) BeginTurn() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ledger = map[string]*models.OperationOutcome{}
}

// Dispatch executes action and never returns an error: failures are
// outcomes. A write that already succeeded in this turn is not executed
// again unless confirmed is true.
func (d *Dispatcher) Dispatch(ctx context.Context, action *models.CanonicalAction, confirmed bool) *models.OperationOutcome {
	if action == nil {
		return failure(models.KindInvalid, "no action to execute", nil)
	}
	r, ok := d.routes[action.Action]
	if !ok {
		return failure(models.KindInvalid, fmt.Sprintf("unsupported action %q", action.Action), nil)
	}

	key := action.Key()
	if action.Action.IsWrite() && !confirmed {
		if prev := d.completed(key); prev != nil {
			d.logger.Info().Str("action", string(action.Action)).Msg("skipping action already completed in this turn")
			return &models.OperationOutcome{
				Status:           models.StatusSuccess,
				Message:          fmt.Sprintf("Already done in this turn: %s Repeat the request with confirmation to run it again.", prev.Message),
				Raw:              prev.Raw,
				AlreadyCompleted: true,
			}
		}
	}

	if missing := missingFields(action, r.requires); len(missing) > 0 {
		return failure(models.KindInvalid, fmt.Sprintf("%s is missing %s", action.Action, strings.Join(missing, ", ")), nil)
	}

	started := time.Now()
	outcome := r.handle(ctx, action)
	d.logger.Info().
		Str("action", string(action.Action)).
		Str("status", string(outcome.Status)).
		Str("kind", string(outcome.Kind)).
		Bool("fast_path", r.fastPath).
		Dur("duration", time.Since(started)).
		Msg("action dispatched")

	if outcome.Succeeded() && action.Action.IsWrite() {
		d.mu.Lock()
		d.ledger[key] = outcome
		d.mu.Unlock()
	}
	return outcome
}

func (d *Dispatcher) completed(key string) *models.OperationOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ledger[key]
}

// call runs one backend operation with the per-call timeout, retrying only
// transient failures.
func (d *Dispatcher) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	result := retry.RetryWithBackoff(ctx, d.retry, func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
		err := fn(callCtx)
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && models.KindOf(err) != models.KindTransient {
			return models.NewError(models.KindTransient, op, fmt.Errorf("timed out after %v: %w", d.cfg.Timeout, err))
		}
		return err
	}, &d.logger)
	if result.Success {
		return nil
	}
	if result.LastError != nil && models.KindOf(result.LastError) == models.KindTransient && result.Attempts > 1 {
		return fmt.Errorf("%s failed after %d attempts: %w", op, result.Attempts, result.LastError)
	}
	return result.LastError
}

func (d *Dispatcher) isProtected(branch string) bool {
	return containsFold(d.cfg.ProtectedBranches, branch)
}

func (d *Dispatcher) isPrimary(branch string) bool {
	return containsFold(d.cfg.PrimaryBranches, branch)
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

func missingFields(action *models.CanonicalAction, required []string) []string {
	var missing []string
	for _, name := range required {
		if !action.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func success(message string, raw any) *models.OperationOutcome {
	return &models.OperationOutcome{Status: models.StatusSuccess, Message: message, Raw: raw}
}

func failure(kind models.ErrorKind, message string, raw any) *models.OperationOutcome {
	return &models.OperationOutcome{Status: models.StatusFailure, Kind: kind, Message: message, Raw: raw}
}

// failed converts a backend error into an outcome with a readable message.
func failed(what string, err error) *models.OperationOutcome {
	kind := models.KindOf(err)
	return failure(kind, fmt.Sprintf("%s: %s", what, describeKind(kind, err)), err.Error())
}

func describeKind(kind models.ErrorKind, err error) string {
	var detail string
	var opErr *models.OperationError
	if errors.As(err, &opErr) && opErr.Err != nil {
		detail = opErr.Err.Error()
	} else {
		detail = err.Error()
	}
	switch kind {
	case models.KindNotFound:
		return "not found (" + detail + ")"
	case models.KindConflict:
		return "already exists (" + detail + ")"
	case models.KindPermissionDenied:
		return "permission denied (" + detail + ")"
	case models.KindInvalid:
		return "invalid request (" + detail + ")"
	default:
		return "temporary failure, try again later (" + detail + ")"
	}
}
