package scheduler

import (
	"context"
	"log"
	"time"

	"sanitization-status-backend/config"
	"sanitization-status-backend/internal/clock"
	"sanitization-status-backend/internal/engine"
)

// Monitor is the part of the engine the scheduler drives.
type Monitor interface {
	Settings() engine.Settings
	ExpireSessions() []engine.SessionOutcome
	Scan(now time.Time) []engine.OverdueFinding
	ApplyOverdue(f engine.OverdueFinding) (bool, error)
}

// Report summarizes one scheduler cycle.
type Report struct {
	Expired  int
	Findings int
	Applied  int
	Errors   int
}

// ReportObserver is told about every completed cycle.
type ReportObserver interface {
	ObserveScan(r Report)
}

// Service periodically expires stale detection sessions and moves overdue
// CLEAN stations back to DIRTY or NEEDS_ATTENTION. Scans run every alert
// timeout unless a fixed interval is configured; session expiry runs every
// session timeout. Both are re-read from the engine after each cycle.
type Service struct {
	cfg      config.SchedulerConfig
	monitor  Monitor
	clock    clock.Clock
	observer ReportObserver
}

// NewService creates a scheduler service. observer may be nil.
func NewService(cfg config.SchedulerConfig, monitor Monitor, c clock.Clock, observer ReportObserver) *Service {
	if c == nil {
		c = clock.Real{}
	}
	return &Service{cfg: cfg, monitor: monitor, clock: c, observer: observer}
}

// Run executes scan cycles until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Scheduler is disabled. Not starting.")
		return
	}
	log.Printf("Starting scheduler service (scan every %s)...", s.scanInterval())

	s.ScanOnce(ctx)

	scanTimer := time.NewTimer(s.scanInterval())
	defer scanTimer.Stop()
	expiryTimer := time.NewTimer(s.expiryInterval())
	defer expiryTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler service shutting down.")
			return
		case <-scanTimer.C:
			s.ScanOnce(ctx)
			scanTimer.Reset(s.scanInterval())
		case <-expiryTimer.C:
			s.ExpireOnce()
			expiryTimer.Reset(s.expiryInterval())
		}
	}
}

// scanInterval is the fixed interval when configured, otherwise the current
// alert timeout.
func (s *Service) scanInterval() time.Duration {
	if s.cfg.Interval > 0 {
		return s.cfg.Interval
	}
	return s.monitor.Settings().AlertTimeout
}

func (s *Service) expiryInterval() time.Duration {
	return s.monitor.Settings().SessionTimeout
}

// ExpireOnce fails every session past its timeout and returns how many.
func (s *Service) ExpireOnce() int {
	expired := s.monitor.ExpireSessions()
	for _, o := range expired {
		log.Printf("Session %s timed out at %.0f%% confidence", o.SessionID, o.Score)
	}
	if len(expired) > 0 && s.observer != nil {
		s.observer.ObserveScan(Report{Expired: len(expired)})
	}
	return len(expired)
}

// ScanOnce runs a single cycle: expire sessions, scan, then apply each finding.
func (s *Service) ScanOnce(ctx context.Context) Report {
	var report Report

	expired := s.monitor.ExpireSessions()
	report.Expired = len(expired)
	for _, o := range expired {
		log.Printf("Session %s timed out at %.0f%% confidence", o.SessionID, o.Score)
	}

	findings := s.monitor.Scan(s.clock.Now())
	report.Findings = len(findings)
	for _, f := range findings {
		if ctx.Err() != nil {
			log.Printf("Scan cycle interrupted after %d of %d findings", report.Applied, len(findings))
			break
		}
		applied, err := s.monitor.ApplyOverdue(f)
		if err != nil {
			report.Errors++
			log.Printf("Error applying overdue finding for station %s: %v", f.StationID, err)
			continue
		}
		if applied {
			report.Applied++
			log.Printf("Station %s overdue by %s, moved to %s", f.StationID, f.Overdue.Truncate(time.Second), f.Target)
		}
	}

	if s.observer != nil {
		s.observer.ObserveScan(report)
	}
	return report
}
