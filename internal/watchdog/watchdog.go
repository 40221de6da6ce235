// Package watchdog polls the responder and heals it when it stops answering.
//
// A cycle checks the target once. After FailureThreshold consecutive failures an incident is
// opened: an alert is mailed, the container is restarted up to RetryRestart times and, if it
// still does not answer, the host is optionally rebooted.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"hellod/internal/config"
	"hellod/internal/logging"
	"hellod/internal/system"
	"hellod/internal/telemetry"
)

// Timings of the healing sequence
const (
	CheckTimeout  = 10 * time.Second
	RecoveryWait  = 10 * time.Second
	RetryDelay    = 5 * time.Second
	CooldownDelay = 30 * time.Second
)

// Restarter restarts the container hosting the responder
type Restarter interface {
	Restart(ctx context.Context, containerName string) error
}

// Notifier delivers an alert
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Rebooter reboots the host
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// StatusError reports a check that got an answer outside 2xx
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx response: %d", e.StatusCode)
}

// Watchdog tracks consecutive check failures and drives the healing sequence
type Watchdog struct {
	cfg       *config.WatchdogConfig
	client    *http.Client
	restarter Restarter
	notifier  Notifier
	rebooter  Rebooter
	hostFacts func() string
	sleep     func(ctx context.Context, d time.Duration) error

	// cycle serializes RunCycle; mu guards the failure state only
	cycle    sync.Mutex
	mu       sync.Mutex
	failures int
	incident string
}

// Option customises a Watchdog
type Option func(*Watchdog)

// WithHTTPClient sets the client used for checks
func WithHTTPClient(c *http.Client) Option {
	return func(w *Watchdog) { w.client = c }
}

// WithRestarter sets the container restarter. Without one, restarts are skipped.
func WithRestarter(r Restarter) Option {
	return func(w *Watchdog) { w.restarter = r }
}

// WithNotifier sets the alert channel
func WithNotifier(n Notifier) Option {
	return func(w *Watchdog) { w.notifier = n }
}

// WithRebooter sets the host rebooter
func WithRebooter(r Rebooter) Option {
	return func(w *Watchdog) { w.rebooter = r }
}

// New creates a Watchdog for cfg
func New(cfg *config.WatchdogConfig, opts ...Option) *Watchdog {
	w := &Watchdog{
		cfg:       cfg,
		client:    &http.Client{Timeout: CheckTimeout},
		notifier:  discardNotifier{},
		rebooter:  NewCommandRebooter(),
		hostFacts: describeHost,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Failures returns the current count of consecutive failed checks
func (w *Watchdog) Failures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}

// Check requests the target once and returns the status code it got. Any transport error
// or non-2xx status is a failure.
func (w *Watchdog) Check(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.TargetURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	telemetry.InjectHeaders(ctx, req.Header)

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

// RunCycle performs one check and, once the threshold is reached, the healing sequence.
// Cycles never overlap, but the failure state stays readable while one is healing.
func (w *Watchdog) RunCycle(ctx context.Context) {
	w.cycle.Lock()
	defer w.cycle.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "watchdog.cycle")
	defer span.End()
	span.SetAttributes(attribute.String("watchdog.target", w.cfg.TargetURL))

	logging.Infof("Checking %s ...", w.cfg.TargetURL)
	status, err := w.Check(ctx)
	if err == nil {
		if recovered, incident := w.recordSuccess(); recovered {
			logging.Infof("Website recovered.")
			w.notify(ctx, subject("Website recovered", incident),
				fmt.Sprintf("%s is responding again (status %d). Host: %s", w.cfg.TargetURL, status, w.hostFacts()))
		}
		span.SetAttributes(attribute.Int("watchdog.failures", 0))
		return
	}

	failures := w.recordFailure()
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Int("watchdog.failures", failures))
	var se *StatusError
	if errors.As(err, &se) {
		logging.Warnf("Non-2xx response: %d (failure #%d)", se.StatusCode, failures)
	} else {
		logging.Warnf("Request error (failure #%d): %v", failures, err)
	}

	if failures < w.cfg.FailureThreshold {
		return
	}

	w.handleIncident(ctx, failures)

	// Cool down so the next tick does not immediately act again
	_ = w.sleep(ctx, CooldownDelay)
}

func (w *Watchdog) handleIncident(ctx context.Context, failures int) {
	incident := w.openIncident()
	ctx, span := telemetry.StartSpan(ctx, "watchdog.incident")
	defer span.End()
	span.SetAttributes(attribute.String("watchdog.incident", incident))

	msg := fmt.Sprintf("%s has failed %d consecutive checks on host %s.", w.cfg.TargetURL, failures, w.hostFacts())
	logging.Errorf("Threshold exceeded: %s", msg)
	w.notify(ctx, subject("Website DOWN alert", incident), msg)

	for attempt := 1; attempt <= w.cfg.RetryRestart; attempt++ {
		logging.Infof("Attempt %d to restart container %s...", attempt, w.cfg.ContainerName)
		if status, ok := w.restartAndVerify(ctx, attempt); ok {
			w.notify(ctx, subject("Website recovered after restart", incident),
				fmt.Sprintf("%s recovered after restart of container %s (status %d).",
					w.cfg.TargetURL, w.cfg.ContainerName, status))
			w.reset()
			return
		}
		if err := w.sleep(ctx, RetryDelay); err != nil {
			return
		}
	}

	logging.Errorf("Restart attempts failed.")
	span.SetStatus(codes.Error, "restart attempts failed")
	if !w.cfg.RebootOnFailure {
		return
	}

	w.notify(ctx, subject("Host REBOOTING due to persistent failure", incident),
		fmt.Sprintf("%s did not recover; rebooting host %s now.", w.cfg.TargetURL, w.hostFacts()))
	logging.Warnf("Attempting host reboot...")
	if err := w.rebooter.Reboot(ctx); err != nil {
		logging.Errorf("Failed to reboot host: %v", err)
	}
}

// restartAndVerify restarts the container, waits for it to come up and checks once.
// It returns the status of that check.
func (w *Watchdog) restartAndVerify(ctx context.Context, attempt int) (int, bool) {
	if w.restarter == nil {
		logging.Warnf("No Docker client available; cannot restart container.")
		return 0, false
	}

	ctx, span := telemetry.StartSpan(ctx, "watchdog.restart")
	defer span.End()
	span.SetAttributes(
		attribute.String("container.name", w.cfg.ContainerName),
		attribute.Int("watchdog.attempt", attempt),
	)

	if err := w.restarter.Restart(ctx, w.cfg.ContainerName); err != nil {
		span.SetStatus(codes.Error, err.Error())
		logging.Errorf("Error restarting container: %v", err)
		return 0, false
	}

	logging.Infof("Waiting %s for app to recover...", RecoveryWait)
	if err := w.sleep(ctx, RecoveryWait); err != nil {
		return 0, false
	}

	status, err := w.Check(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logging.Warnf("Still unhealthy after restart: %v", err)
		return status, false
	}
	logging.Infof("App recovered after restart.")
	return status, true
}

func (w *Watchdog) recordFailure() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures++
	return w.failures
}

// recordSuccess clears the failure state and reports whether there was any, along with the
// incident being closed
func (w *Watchdog) recordSuccess() (bool, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	recovered, incident := w.failures != 0, w.incident
	w.failures = 0
	w.incident = ""
	return recovered, incident
}

// openIncident returns the current incident ID, assigning one on first use
func (w *Watchdog) openIncident() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.incident == "" {
		w.incident = uuid.NewString()
	}
	return w.incident
}

func (w *Watchdog) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures = 0
	w.incident = ""
}

func subject(s, incident string) string {
	if incident == "" {
		return s
	}
	return fmt.Sprintf("%s [incident %s]", s, incident)
}

func (w *Watchdog) notify(ctx context.Context, subject, body string) {
	if err := w.notifier.Notify(ctx, subject, body); err != nil {
		logging.Errorf("Failed to send alert %q: %v", subject, err)
	}
}

// Run checks immediately and then every CheckInterval until ctx is cancelled.
// A cycle still busy healing makes the next tick skip.
func (w *Watchdog) Run(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	spec := "@every " + w.cfg.CheckInterval().String()
	if _, err := c.AddFunc(spec, func() { w.RunCycle(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule checks %q: %w", spec, err)
	}

	logging.Infof("Watchdog monitoring %s every %s (threshold %d, container %s)",
		w.cfg.TargetURL, w.cfg.CheckInterval(), w.cfg.FailureThreshold, w.cfg.ContainerName)

	w.RunCycle(ctx)
	c.Start()
	<-ctx.Done()

	<-c.Stop().Done()
	logging.Infof("Watchdog stopped")
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func describeHost() string {
	v, err := system.GetVitals()
	if err != nil {
		return system.Hostname()
	}
	return v.String()
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, string, string) error { return nil }

// cronLogger routes cron's own messages through the logging package
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debugf("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
