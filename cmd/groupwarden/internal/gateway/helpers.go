package gateway

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/groupwarden/groupwarden/cmd/groupwarden/internal"
	"github.com/groupwarden/groupwarden/pkg/bus"
	"github.com/groupwarden/groupwarden/pkg/llm"
	"github.com/groupwarden/groupwarden/pkg/logger"
	"github.com/groupwarden/groupwarden/pkg/moderation"
	"github.com/groupwarden/groupwarden/pkg/reports"
	"github.com/groupwarden/groupwarden/pkg/telegram"
)

func gatewayCmd(debug bool) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logger.SetLevelName(cfg.Logging.Level)
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("error opening log file: %w", err)
		}
		defer f.Close()
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	// Fail fast: an unrunnable config must never reach polling.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	classifier, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("error creating classifier: %w", err)
	}

	policy := moderation.NewPolicy(cfg.Moderation)
	detector := moderation.NewDetector(policy, classifier)

	msgBus := bus.NewMessageBus()

	channel, err := telegram.NewChannel(cfg.Telegram.Token, msgBus, policy.Trusted, cfg.Moderation.CheckUsernames)
	if err != nil {
		return fmt.Errorf("error creating telegram channel: %w", err)
	}

	enforcer := moderation.NewEnforcer(channel, time.Duration(cfg.Moderation.NotifyTTLSeconds)*time.Second)
	recorder := reports.NewRecorder()
	enforcer.SetRecorder(recorder)

	pipeline := moderation.NewPipeline(policy, detector, enforcer)
	if cfg.Moderation.CheckUsernames {
		pipeline.SetUsernameChecker(classifier)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := channel.Start(ctx); err != nil {
		return fmt.Errorf("error starting telegram channel: %w", err)
	}

	go consumeLoop(ctx, msgBus, pipeline)

	if cfg.Reports.Enabled {
		digest, err := reports.NewDigest(
			recorder,
			msgBus,
			cfg.Reports.Cron,
			time.Duration(cfg.Reports.WindowHours)*time.Hour,
			cfg.Moderation.AdminIDs,
		)
		if err != nil {
			return fmt.Errorf("error creating report digest: %w", err)
		}
		go digest.Run(ctx)
		fmt.Println("✓ Daily report digest scheduled")
	}

	fmt.Printf("✓ Gateway started (provider: %s, model: %s, threshold: %.2f)\n",
		cfg.LLM.Provider, cfg.LLM.Model, cfg.Moderation.ConfidenceThreshold)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	channel.Stop(context.Background())
	msgBus.Close()
	fmt.Println("✓ Gateway stopped")

	return nil
}

// consumeLoop drains the bus, one goroutine per event. Pipelines share
// only read-only config, so no coordination beyond the bus is needed.
func consumeLoop(ctx context.Context, mb *bus.MessageBus, pipe *moderation.Pipeline) {
	for {
		ev, ok := mb.Consume(ctx)
		if !ok {
			return
		}
		go func(ev bus.Event) {
			switch {
			case ev.Message != nil:
				pipe.Process(ctx, *ev.Message)
			case ev.Join != nil:
				pipe.ProcessJoin(ctx, *ev.Join)
			}
		}(ev)
	}
}
