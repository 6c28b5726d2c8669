package cli

import (
	"github.com/vburojevic/dbgwire/internal/config"
	"github.com/vburojevic/dbgwire/internal/session"
	"github.com/vburojevic/dbgwire/internal/supervisor"
	"github.com/vburojevic/dbgwire/internal/waiter"
)

// The helpers below assume cfg passed Validate.

func sessionWaits(cfg *config.Config) session.Waits {
	interval := config.MustDuration(cfg.Waits.Interval)
	return session.Waits{
		Response: waiter.Policy{Attempts: cfg.Waits.Attempts, Interval: interval},
		Thread:   waiter.Policy{Attempts: cfg.Waits.ThreadAttempts, Interval: interval},
		Ack:      waiter.Policy{Attempts: cfg.Waits.AckAttempts, Interval: config.MustDuration(cfg.Waits.AckInterval)},
		Settle:   config.MustDuration(cfg.Waits.WriteSettle),
	}
}

func sessionOptions(cfg *config.Config) []session.Option {
	return []session.Option{
		session.WithWaits(sessionWaits(cfg)),
		session.WithProtocolVersion(cfg.Session.Version, cfg.Session.OSTag),
		session.WithAcceptTimeout(config.MustDuration(cfg.Session.AcceptTimeout)),
	}
}

func processPolicy(cfg *config.Config) supervisor.Policy {
	return supervisor.Policy{
		PollInterval:    config.MustDuration(cfg.Process.PollInterval),
		WarnAfter:       cfg.Process.WarnAfter,
		FailAfter:       cfg.Process.FailAfter,
		FinishAttempts:  cfg.Process.FinishAttempts,
		FinishInterval:  config.MustDuration(cfg.Process.FinishInterval),
		SuccessMarker:   cfg.Process.SuccessMarker,
		RequireZeroExit: cfg.Process.RequireZeroExit,
		OutputGrace:     config.MustDuration(cfg.Process.OutputGrace),
	}
}
