package backend

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState represents the state of a circuit breaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

const (
	failureThreshold = 5
	successThreshold = 2
	openTimeout      = 30 * time.Second
)

type breaker struct {
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// CircuitBreaker tracks transient failures per key and short-circuits calls
// once a key has failed repeatedly. After openTimeout the breaker lets a
// probe through; successThreshold consecutive successes close it again.
type CircuitBreaker struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	logger   *logrus.Logger
}

func NewCircuitBreaker(logger *logrus.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		breakers: make(map[string]*breaker),
		logger:   logger,
	}
}

// Execute runs fn if the breaker for key allows it
func (cb *CircuitBreaker) Execute(key string, fn func() error) error {
	if err := cb.before(key); err != nil {
		return err
	}

	err := fn()
	cb.after(key, err)
	return err
}

// State reports the current state of the breaker for key
func (cb *CircuitBreaker) State(key string) BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	b, ok := cb.breakers[key]
	if !ok {
		return StateClosed
	}
	if b.state == StateOpen && time.Since(b.lastFailure) >= openTimeout {
		return StateHalfOpen
	}
	return b.state
}

func (cb *CircuitBreaker) before(key string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	b, ok := cb.breakers[key]
	if !ok {
		b = &breaker{state: StateClosed}
		cb.breakers[key] = b
	}

	if b.state == StateOpen {
		if time.Since(b.lastFailure) < openTimeout {
			return &Error{Code: CodeUnavailable, Message: "circuit breaker open for " + key}
		}
		b.state = StateHalfOpen
		b.successes = 0
	}

	return nil
}

func (cb *CircuitBreaker) after(key string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	b := cb.breakers[key]

	if err == nil {
		switch b.state {
		case StateHalfOpen:
			b.successes++
			if b.successes >= successThreshold {
				b.state = StateClosed
				b.failures = 0
			}
		case StateClosed:
			b.failures = 0
		}
		return
	}

	// Only availability failures move the breaker. A rejected request or
	// a malformed reply is an answered one.
	if !Transient(err) {
		return
	}

	b.lastFailure = time.Now()
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		cb.logger.WithFields(logrus.Fields{
			"key": key,
		}).Warn("circuit breaker reopened after failed probe")
	case StateClosed:
		b.failures++
		if b.failures >= failureThreshold {
			b.state = StateOpen
			cb.logger.WithFields(logrus.Fields{
				"key":      key,
				"failures": b.failures,
			}).Warn("circuit breaker opened")
		}
	}
}
