package server

import (
	"audio-service/auth"
	"audio-service/config"
	"audio-service/constant"
	"audio-service/handler"
	"audio-service/pkg/rabbitmq"
	"audio-service/repository"
	"audio-service/service"
	"audio-service/validator"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

func RunHttp(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Database.AutoMigrate {
		if err := repository.RunMigrations(ctx, cfg.DB); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		return err
	}
	blobs, err := NewBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	var publisher service.Publisher = rabbitmq.NopPublisher{}
	var audioService service.AudioService
	if cfg.Queue == nil {
		zerolog.Ctx(ctx).Warn().Msg("rabbitmq not configured, upload events disabled")
		audioService = service.NewAudioService(repo, blobs, publisher)
	} else {
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		publisher, err = rabbitmq.NewPublisher(conn, cfg.Queue)
		if err != nil {
			return err
		}
		audioService = service.NewAudioService(repo, blobs, publisher)

		serviceDeps := handler.ServiceDependencies{AudioService: audioService}
		analysisConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, rabbitmq.Binding{
			Queue:      cfg.Queue.AnalysisQueue,
			RoutingKey: constant.RoutingKeyAudioAnalyzed,
		}, cfg.Server.Workers, handler.AnalysisHandler)
		go func() {
			err := analysisConsumer.Consume(ctx, serviceDeps)
			if err != nil && !errors.Is(err, context.Canceled) {
				zerolog.Ctx(ctx).Error().Err(err).Msg("analysis consumer error")
			}
		}()
	}

	audioHandler := handler.NewAudioHandler(audioService, validator.NewAudioValidator(cfg.Upload))
	r := NewRouter(*zerolog.Ctx(ctx), audioHandler, NewIdentityResolver(cfg.Auth))

	srv := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("addr", srv.Addr).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return nil
}

// NewRouter mounts the health check and the audio API behind request
// logging, panic recovery and caller identity.
func NewRouter(logger zerolog.Logger, audioHandler *handler.AudioHandler, resolver auth.IdentityResolver) *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(logger), gin.Recovery())
	addHealth(r)

	api := r.Group("/api/audio", auth.Middleware(resolver))
	audioHandler.Register(api)

	return r
}

func NewIdentityResolver(cfg config.Auth) auth.IdentityResolver {
	if cfg.Mode == constant.AuthModeHeader {
		return auth.Header{Name: cfg.Header, Default: cfg.DefaultUser}
	}
	return auth.Static{Username: cfg.DefaultUser}
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
