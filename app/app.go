package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"market-rankings/api"
	"market-rankings/cache"
	"market-rankings/config"
	"market-rankings/database"
	"market-rankings/database/events"
	"market-rankings/database/prices"
	"market-rankings/database/rankings"
	"market-rankings/database/scores"
	"market-rankings/metrics"
	"market-rankings/notifications"
	"market-rankings/ranking"
	"market-rankings/realtime"
)

// App wires configuration, storage and the three calculators
type App struct {
	config  *config.Config
	db      *database.Database
	repo    *database.Repository
	redis   *cache.RedisClient
	broker  *realtime.Broker
	metrics *metrics.Registry
	hook    *notifications.WebhookNotifier

	Momentum     *MomentumCalculator
	Rankings     *RankingCalculator
	Distribution *DistributionCalculator

	running sync.Map // job name -> *sync.Mutex
}

// New creates a new application instance. Call Connect before running jobs.
func New(cfg *config.Config) *App {
	return &App{
		config:  cfg,
		broker:  realtime.NewBroker(),
		metrics: metrics.New(),
	}
}

// Connect opens the database and optional cache and builds the calculators
func (a *App) Connect() error {
	log.Info().Msg("🗄️ Connecting to database...")
	db, err := database.Connect(a.config.Database)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db
	a.repo = database.NewRepository(db)

	var resultCache ResultCache
	if a.config.Redis.Enabled {
		log.Info().Msg("🧠 Connecting to Redis...")
		a.redis = cache.NewRedisClient(a.config.Redis.Host, a.config.Redis.Port, a.config.Redis.Password, a.config.Redis.TTL)
		if a.redis != nil {
			resultCache = a.redis
		}
	}

	ranker, err := a.config.Ranking.Ranker()
	if err != nil {
		return err
	}

	rec := NewRecorder(a.metrics, a.broker, resultCache)
	if a.hook = notifications.NewWebhookNotifier(a.config.Webhook); a.hook != nil {
		rec.WithNotifier(a.hook)
	}
	priceRepo := prices.NewRepository(db.DB())

	a.Momentum = NewMomentumCalculator(priceRepo, scores.NewRepository(db.DB()), a.config.Momentum.Weights, a.config.Momentum.TopN, rec)
	a.Rankings = NewRankingCalculator(rankings.NewRepository(db.DB()), priceRepo, a.repo, ranker, a.config.Ranking.Workers, a.config.Ranking.UnitTimeout, rec)
	a.Distribution = NewDistributionCalculator(priceRepo, events.NewRepository(db.DB()), a.config.Distribution.Rules(), a.config.Distribution.HistoryRows, rec)
	return nil
}

// webhookDrainTimeout bounds how long Close waits for in-flight webhook deliveries
const webhookDrainTimeout = 30 * time.Second

// Close waits for pending webhook deliveries, then releases the database and
// cache connections. Calling it twice is safe.
func (a *App) Close() {
	if a.hook != nil {
		ctx, cancel := context.WithTimeout(context.Background(), webhookDrainTimeout)
		if err := a.hook.Wait(ctx); err != nil {
			log.Warn().Err(err).Msg("⚠️ Exiting with webhook deliveries in flight")
		}
		cancel()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		} else {
			log.Info().Msg("✅ Database connection closed")
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing redis")
		}
		a.redis = nil
	}
}

// RunOnce runs the named jobs in order ("momentum", "rankings", "distribution").
// No names means all three. Every job runs even if an earlier one failed.
func (a *App) RunOnce(ctx context.Context, jobs ...string) error {
	if len(jobs) == 0 {
		jobs = []string{JobMomentum, JobRankings, JobDistribution}
	}
	var errs []error
	for _, job := range jobs {
		if err := a.runJob(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job, err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) runJob(ctx context.Context, job string) error {
	v, _ := a.running.LoadOrStore(job, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		log.Warn().Str("job", job).Msg("⏭️ Job already running, skipping")
		return nil
	}
	defer mu.Unlock()

	switch job {
	case JobMomentum:
		_, err := a.Momentum.Run(ctx, nil)
		return err
	case JobRankings:
		gs, err := a.config.Ranking.ParsedGranularities()
		if err != nil {
			return err
		}
		var errs []error
		for _, g := range gs {
			if _, err := a.Rankings.RunDate(ctx, g, time.Now(), VariantCurrent); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	case JobDistribution:
		_, err := a.Distribution.Run(ctx, a.config.Distribution.Symbols)
		return err
	default:
		return fmt.Errorf("unknown job %q", job)
	}
}

// Start runs the scheduler, the NOTIFY listener and the status server until
// SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve is Start with an explicit lifetime
func (a *App) Serve(ctx context.Context) error {
	go a.broker.Run(ctx)

	scheduler, err := a.schedule(ctx)
	if err != nil {
		return err
	}
	scheduler.Start()
	log.Info().Int("jobs", len(scheduler.Entries())).Msg("⏰ Scheduler started")

	var wg sync.WaitGroup
	if ch := a.config.Schedule.NotifyChannel; ch != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.listen(ctx, ch); err != nil {
				log.Error().Err(err).Msg("⚠️ Notification listener stopped")
			}
		}()
	}

	server := api.NewServer(a.db, a.broker, a.metrics)
	serverErr := server.Start(ctx, a.config.HTTPPort)

	log.Info().Msg("🛑 Shutting down...")
	done := scheduler.Stop()
	select {
	case <-done.Done():
	case <-time.After(30 * time.Second):
		log.Warn().Msg("⚠️ Scheduled jobs still running after shutdown timeout")
	}
	wg.Wait()
	log.Info().Msg("✅ Graceful shutdown completed")
	return serverErr
}

// schedule registers the configured cron specs. An empty spec disables the job.
func (a *App) schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	specs := []struct {
		job  string
		spec string
	}{
		{JobMomentum, a.config.Schedule.Momentum},
		{JobRankings, a.config.Schedule.Rankings},
		{JobDistribution, a.config.Schedule.Distribution},
	}
	for _, s := range specs {
		if strings.TrimSpace(s.spec) == "" {
			continue
		}
		job := s.job
		if _, err := c.AddFunc(s.spec, func() {
			if err := a.RunOnce(ctx, job); err != nil {
				log.Error().Err(err).Str("job", job).Msg("❌ Scheduled run failed")
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid schedule for %s: %w", job, err)
		}
	}
	return c, nil
}

// listen runs jobs when the loaders signal completion. The payload names a job;
// an empty payload runs all of them.
func (a *App) listen(ctx context.Context, channel string) error {
	listener := pq.NewListener(a.config.Database.DSN(), 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("Notification listener event")
		}
	})
	defer listener.Close()

	if err := listener.Listen(channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	log.Info().Str("channel", channel).Msg("👂 Listening for loader notifications")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// reconnected; notifications may have been missed
				continue
			}
			jobs, err := jobsFromPayload(n.Extra)
			if err != nil {
				log.Warn().Err(err).Str("payload", n.Extra).Msg("Ignoring notification")
				continue
			}
			if err := a.RunOnce(ctx, jobs...); err != nil {
				log.Error().Err(err).Msg("❌ Triggered run failed")
			}
		case <-time.After(90 * time.Second):
			go func() {
				if err := listener.Ping(); err != nil {
					log.Warn().Err(err).Msg("Listener ping failed")
				}
			}()
		}
	}
}

// jobsFromPayload parses "momentum,rankings" style payloads
func jobsFromPayload(payload string) ([]string, error) {
	var jobs []string
	for _, p := range strings.Split(payload, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		switch p {
		case "":
		case "all":
			return nil, nil
		case JobMomentum, JobRankings, JobDistribution:
			jobs = append(jobs, p)
		default:
			return nil, fmt.Errorf("unknown job %q", p)
		}
	}
	return jobs, nil
}

// Granularities returns the configured granularities
func (a *App) Granularities() ([]ranking.Granularity, error) {
	return a.config.Ranking.ParsedGranularities()
}
