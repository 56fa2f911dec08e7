package poller

import (
	"context"
	"sync"
	"time"

	"github.com/Trescaul/afri-skill-showcase/internal/models"
)

// State is the poller's position in its lifecycle. Completed, Failed
// and TimedOut are terminal.
type State string

const (
	StateIdle      State = "idle"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// PaymentStatus is one observation from the status endpoint.
type PaymentStatus struct {
	PaymentID         string               `json:"paymentId"`
	Status            models.PaymentStatus `json:"status"`
	PaymentReference  string               `json:"paymentReference"`
	SkillCardID       string               `json:"skillCardId"`
	SkillCardCreated  bool                 `json:"skillCardCreated"`
	SkillCardVerified bool                 `json:"skillCardVerified"`
}

// Checker performs a single status lookup. Tests substitute a fake; the
// real implementation is HTTPChecker.
type Checker interface {
	Check(ctx context.Context, paymentID string) (*PaymentStatus, error)
}

type Config struct {
	// InitialDelay gives the customer time to react to the STK prompt
	// on their phone before the first check.
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

var DefaultConfig = Config{
	InitialDelay: 5 * time.Second,
	Interval:     5 * time.Second,
	MaxAttempts:  30,
}

// Result is the unified outcome of a poll run.
type Result struct {
	Outcome  State
	Attempts int
	// Last holds the final observation, nil if every check errored.
	Last *PaymentStatus
}

// Poller drives repeated status checks for one payment. Checks are
// issued strictly one at a time; the loop never starts a check while a
// previous one is outstanding.
type Poller struct {
	checker Checker
	config  Config

	mu       sync.Mutex
	state    State
	attempts int
}

func New(checker Checker, config Config) *Poller {
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultConfig.InitialDelay
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig.Interval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig.MaxAttempts
	}
	return &Poller{
		checker: checker,
		config:  config,
		state:   StateIdle,
	}
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Wait polls until a terminal payment status is observed or the attempt
// budget runs out. A check error counts as an attempt and polling
// continues: a briefly unreachable service and a gateway still waiting
// on the customer are treated the same, because giving up early on a
// payment that is still in flight is the worse failure mode.
//
// Cancelling ctx stops the timer and returns ctx.Err(); this is the
// teardown path when the surrounding flow goes away.
func (p *Poller) Wait(ctx context.Context, paymentID string) (*Result, error) {
	p.setState(StatePolling)

	timer := time.NewTimer(p.config.InitialDelay)
	defer timer.Stop()

	var last *PaymentStatus

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			p.setState(StateIdle)
			return nil, ctx.Err()
		case <-timer.C:
		}

		p.mu.Lock()
		p.attempts = attempt
		p.mu.Unlock()

		status, err := p.checker.Check(ctx, paymentID)
		if err == nil {
			last = status
			switch status.Status {
			case models.PaymentCompleted:
				p.setState(StateCompleted)
				return &Result{Outcome: StateCompleted, Attempts: attempt, Last: last}, nil
			case models.PaymentFailed:
				p.setState(StateFailed)
				return &Result{Outcome: StateFailed, Attempts: attempt, Last: last}, nil
			case models.PaymentPending:
				// keep polling
			}
		}

		timer.Reset(p.config.Interval)
	}

	// Budget exhausted with the payment still pending. The true state
	// is unknown: funds may have moved without the callback arriving,
	// so this outcome is kept distinct from an explicit failure.
	p.setState(StateTimedOut)
	return &Result{Outcome: StateTimedOut, Attempts: p.config.MaxAttempts, Last: last}, nil
}
