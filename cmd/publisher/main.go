package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/robfig/cron/v3"

	"github.com/basel-ax/leonardo-publisher/internal/config"
	"github.com/basel-ax/leonardo-publisher/internal/domain"
	"github.com/basel-ax/leonardo-publisher/internal/notify"
	"github.com/basel-ax/leonardo-publisher/internal/service"
	"github.com/basel-ax/leonardo-publisher/internal/ui/discord"
	"github.com/basel-ax/leonardo-publisher/internal/ui/web"
)

const (
	// Leonardo rejects longer prompts
	maxPromptLength = 1000
)

// truncatePrompt safely truncates a string to the specified length while preserving UTF-8 characters
func truncatePrompt(s string, length int) string {
	if utf8.RuneCountInString(s) <= length {
		return s
	}

	var size, n int
	for i := 0; i < length && n < len(s); i++ {
		_, size = utf8.DecodeRuneInString(s[n:])
		n += size
	}

	return s[:n]
}

// truncatingRunner caps prompt length before handing off to the pipeline
type truncatingRunner struct {
	domain.Runner
}

func (t truncatingRunner) Run(ctx context.Context, prompt string, reporters ...domain.Reporter) (*domain.Report, error) {
	truncated := truncatePrompt(prompt, maxPromptLength)
	if len(truncated) != len(prompt) {
		log.Printf("Prompt was truncated from %d to %d characters", utf8.RuneCountInString(prompt), maxPromptLength)
	}
	return t.Runner.Run(ctx, truncated, reporters...)
}

func main() {
	// Parse command line flags
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	prompt := flag.String("prompt", "", "Generate and publish images for this prompt, then exit")
	serve := flag.Bool("serve", false, "Serve the web UI")
	runDiscord := flag.Bool("discord", false, "Run the Discord bot")
	runCron := flag.Bool("cron", false, "Run SCHEDULE_PROMPT on SCHEDULE_SPEC")
	flag.Parse()

	// Configure logging
	if *verbose {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		log.Println("Verbose logging enabled")
	} else {
		log.SetFlags(log.Ldate | log.Ltime)
	}

	// Check if at least one mode is selected
	if *prompt == "" && !*serve && !*runDiscord && !*runCron {
		log.Fatal("Please specify at least one mode: -prompt, -serve, -discord, or -cron")
	}

	// Load configuration
	log.Println("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully")

	// Result consumers
	reporters := notify.Fanout{notify.NewLogReporter(nil)}
	if cfg.AMQP.URL != "" {
		queue, err := notify.DialQueueReporter(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			log.Fatalf("Failed to set up result queue: %v", err)
		}
		defer queue.Close()
		reporters = append(reporters, queue)
		log.Printf("Publishing results to queue %s", cfg.AMQP.Queue)
	}

	var notifiers []notify.Notifier
	if cfg.Mail.APIKey != "" {
		notifiers = append(notifiers, notify.NewMailNotifier(cfg.Mail.APIKey, cfg.Mail.FromName, cfg.Mail.From, cfg.Mail.To))
		log.Printf("Sending run summaries to %s", cfg.Mail.To)
	}

	log.Println("Initializing image generation service...")
	imgService, err := service.NewImageGenerationService(cfg, reporters)
	if err != nil {
		log.Fatalf("Failed to initialize image generation service: %v", err)
	}
	runner := truncatingRunner{notify.WithNotifiers(imgService, notifiers...)}
	log.Printf("Image generation service initialized, publishing to %s", cfg.PublishTarget)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating shutdown...", sig)
		cancel()
	}()

	if *prompt != "" && !*serve && !*runDiscord && !*runCron {
		if err := runOnce(ctx, runner, *prompt); err != nil {
			log.Printf("Run failed: %v", err)
			cancel()
			os.Exit(1)
		}
		return
	}

	var wg sync.WaitGroup

	if *prompt != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runOnce(ctx, runner, *prompt); err != nil {
				log.Printf("Run failed: %v", err)
			}
		}()
	}

	if *serve {
		log.Printf("Starting web UI on %s...", cfg.Web.Addr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			startWebServer(ctx, runner, cfg.Web.Addr)
		}()
	}

	if *runDiscord {
		if err := cfg.RequireDiscord(); err != nil {
			log.Fatalf("Failed to start Discord bot: %v", err)
		}
		bot, err := discord.New(discord.Config{
			BotToken: cfg.Discord.Token,
			GuildID:  cfg.Discord.GuildID,
			Command:  cfg.Discord.Command,
			Runner:   runner,
		})
		if err != nil {
			log.Fatalf("Failed to create Discord bot: %v", err)
		}
		log.Println("Starting Discord bot...")
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Start(ctx); err != nil {
				log.Printf("Discord bot stopped: %v", err)
				cancel()
			}
		}()
	}

	if *runCron {
		log.Println("Starting scheduled runs...")
		wg.Add(1)
		go func() {
			defer wg.Done()
			startCron(ctx, runner, cfg.Schedule)
		}()
	}

	// Wait for context cancellation
	<-ctx.Done()
	log.Println("Shutting down gracefully...")
	wg.Wait()
}

// runOnce runs the pipeline for prompt and prints every outcome.
func runOnce(ctx context.Context, runner domain.Runner, prompt string) error {
	report, err := runner.Run(ctx, prompt)
	if report != nil {
		for _, img := range report.Images {
			fmt.Println(img.URL)
		}
		for _, res := range report.Published() {
			fmt.Printf("%s -> %s\n", res.Subject, res.Value)
		}
	}
	fmt.Println(notify.RunMessage(report, err))
	if err != nil {
		return err
	}
	if report != nil && len(report.Failures()) > 0 {
		return fmt.Errorf("%d of %d items failed", len(report.Failures()), len(report.Results))
	}
	return nil
}

func startWebServer(ctx context.Context, runner domain.Runner, addr string) {
	srv := web.New(runner, addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down web UI: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Printf("Web UI stopped: %v", err)
	}
}

func startCron(ctx context.Context, runner domain.Runner, schedule config.ScheduleConfig) {
	if schedule.Prompt == "" {
		log.Println("SCHEDULE_PROMPT is empty, scheduled runs disabled")
		return
	}

	// Create a new cron scheduler
	c := cron.New(cron.WithSeconds())

	var cronMutex sync.Mutex

	_, err := c.AddFunc(schedule.Spec, func() {
		log.Println("[CRON] Attempting to start scheduled run...")
		if !cronMutex.TryLock() {
			log.Println("[CRON] Previous run still in progress, skipping")
			return
		}
		defer cronMutex.Unlock()
		log.Println("[CRON] Running scheduled generation...")
		if err := runOnce(ctx, runner, schedule.Prompt); err != nil {
			log.Printf("[CRON] Scheduled run failed: %v", err)
		}
		log.Println("[CRON] Finished scheduled generation.")
	})
	if err != nil {
		log.Printf("Error scheduling generation: %v", err)
		return
	}

	// Start the cron scheduler
	c.Start()
	log.Printf("Cron scheduler started with spec %q", schedule.Spec)

	// Keep the scheduler running until context is cancelled
	<-ctx.Done()
	<-c.Stop().Done()
	log.Println("Cron scheduler stopped")
}
