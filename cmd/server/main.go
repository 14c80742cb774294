// Command server runs the ordering agent: provider webhooks, the admin API
// and the conversation worker pool in one process.
//
// @title       OrderFlow Agent API
// @version     1.0
// @description Multi-channel ordering agent for restaurants: SMS and Meta webhooks, tenant and menu administration, and the staff escalation inbox.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "github.com/tbourn/orderflow-agent/docs"
	"github.com/tbourn/orderflow-agent/internal/assistant"
	"github.com/tbourn/orderflow-agent/internal/config"
	"github.com/tbourn/orderflow-agent/internal/dispatch"
	"github.com/tbourn/orderflow-agent/internal/domain"
	httpapi "github.com/tbourn/orderflow-agent/internal/http"
	"github.com/tbourn/orderflow-agent/internal/notify"
	"github.com/tbourn/orderflow-agent/internal/observability"
	"github.com/tbourn/orderflow-agent/internal/repo"
	"github.com/tbourn/orderflow-agent/internal/services"
	"github.com/tbourn/orderflow-agent/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments use the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.Open(cfg.Store, cfg.OTEL.Enabled)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("open database")
	}
	if !sysutil.IsTruthy(os.Getenv("SKIP_MIGRATIONS")) {
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	events := newPublisher(cfg.Redis)
	catalogs := services.NewCatalogService(db, cfg.Agent.CatalogCacheTTL)
	conv := services.NewConversationService(db, catalogs, services.NewOrderService(db), newDispatcher(cfg.Channels), events)
	conv.MatchThreshold = cfg.Agent.MatchThreshold
	conv.Policy.CateringQuantity = cfg.Agent.CateringQuantity
	if cfg.OpenAI.APIKey != "" {
		conv.Assistant = assistant.NewOpenAI(assistant.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
		log.Info().Str("model", cfg.OpenAI.Model).Msg("free-text answers enabled")
	}

	worker := services.NewWorker(db, conv, cfg.Worker.Count, cfg.Worker.QueueSize)
	worker.Start(ctx)

	ingest := &services.Ingestor{
		DB:                 db,
		Queue:              worker,
		DefaultSMSReceiver: cfg.Agent.DefaultSMSReceiver,
		CountryCode:        cfg.Agent.CountryCode,
		ThreadIdleTTL:      cfg.Agent.ThreadIdleTTL,
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Ingest:   ingest,
		Catalogs: catalogs,
		Events:   events,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Stop taking webhooks first, then let queued conversations finish.
		err := srv.Shutdown(sctx)
		err = errors.Join(err, worker.Stop(sctx), events.Close(), shutdownOTel(sctx), closeDB(db))
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("bye")
}

// newDispatcher registers a sender per channel. Without gateway
// credentials replies are logged instead of sent.
func newDispatcher(cfg config.ChannelsConfig) *dispatch.Dispatcher {
	d := dispatch.NewDispatcher(dispatch.LogSender{})
	d.OnFailure = services.CountDispatchFailure

	if cfg.SMSGatewayURL != "" {
		d.Register(domain.ChannelSMS, dispatch.NewSMSGateway(dispatch.SMSGatewayConfig{
			BaseURL: cfg.SMSGatewayURL,
			Token:   cfg.SMSGatewayToken,
			Sender:  cfg.SMSSender,
			Timeout: cfg.SendTimeout,
		}))
	} else {
		log.Warn().Msg("SMS_GATEWAY_URL not set, SMS replies are only logged")
		d.Register(domain.ChannelSMS, dispatch.LogSender{Channel: domain.ChannelSMS})
	}

	if cfg.MetaPageToken != "" {
		for _, ch := range []string{domain.ChannelFacebook, domain.ChannelInstagram} {
			d.Register(ch, dispatch.NewMetaSender(dispatch.MetaSenderConfig{
				BaseURL:         cfg.MetaGraphURL,
				PageAccessToken: cfg.MetaPageToken,
				Provider:        ch,
				Timeout:         cfg.SendTimeout,
			}))
		}
	}
	return d
}

// newPublisher connects escalation events to Redis when configured.
func newPublisher(cfg config.RedisConfig) notify.Publisher {
	if cfg.Addr == "" {
		return notify.Nop{}
	}
	p, err := notify.NewRedis(notify.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Channel:  cfg.Channel,
	})
	if err != nil {
		// The inbox still shows flagged threads; only live notifications are lost.
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, escalation events disabled")
		return notify.Nop{}
	}
	return p
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
