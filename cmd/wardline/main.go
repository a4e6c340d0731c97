package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	dbfs "github.com/wardline/wardline/db"
	"github.com/wardline/wardline/internal/channels"
	"github.com/wardline/wardline/internal/config"
	"github.com/wardline/wardline/internal/db"
	"github.com/wardline/wardline/internal/files"
	"github.com/wardline/wardline/internal/forward"
	"github.com/wardline/wardline/internal/handlers"
	"github.com/wardline/wardline/internal/logger"
	"github.com/wardline/wardline/internal/messages"
	"github.com/wardline/wardline/internal/realtime"
	"github.com/wardline/wardline/internal/server"
	"github.com/wardline/wardline/internal/storage"
	"github.com/wardline/wardline/internal/users"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideStorageProvider(cfg config.Config) storage.Provider {
	return storage.NewDiskProvider(cfg.Files.Root)
}

func provideUsersService(log *slog.Logger, pool *pgxpool.Pool) *users.Service {
	return users.NewService(log, pool)
}

func provideChannelsService(log *slog.Logger, pool *pgxpool.Pool, userService *users.Service) *channels.Service {
	return channels.NewService(log, pool, userService)
}

func provideMessagesService(log *slog.Logger, pool *pgxpool.Pool, userService *users.Service) *messages.DBService {
	return messages.NewService(log, pool, userService)
}

func provideFilesService(log *slog.Logger, pool *pgxpool.Pool, provider storage.Provider, userService *users.Service) *files.Service {
	return files.NewService(log, pool, provider, userService)
}

func provideGateway(log *slog.Logger, cfg config.Config, store messages.Store, channelService *channels.Service, userService *users.Service) *realtime.Gateway {
	hub := realtime.NewHub(log)
	return realtime.NewGateway(log, hub, store, channelService, userService, cfg.Auth.JWTSecret)
}

func provideForwardService(log *slog.Logger, channelService *channels.Service, store messages.Store, fileService *files.Service, gateway *realtime.Gateway) *forward.Service {
	return forward.NewService(log, channelService, store, fileService, gateway.Hub())
}

func provideAuthHandler(log *slog.Logger, cfg config.Config, userService *users.Service) (*handlers.AuthHandler, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse jwt expiry: %w", err)
	}
	return handlers.NewAuthHandler(log, userService, cfg.Auth.JWTSecret, expiresIn), nil
}

func provideMessagesHandler(log *slog.Logger, store messages.Store, gateway *realtime.Gateway) *handlers.MessagesHandler {
	return handlers.NewMessagesHandler(log, store, gateway.Hub())
}

func provideFilesHandler(log *slog.Logger, fileService *files.Service, channelService *channels.Service) *handlers.FilesHandler {
	return handlers.NewFilesHandler(log, fileService, channelService)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func startServer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	srv *server.Server,
	shutdowner fx.Shutdowner,
	cfg config.Config,
	userService *users.Service,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Admin.Password == "change-your-password-here" {
				logger.Warn("superuser password uses default placeholder; please update config.toml")
			}
			if err := userService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FullName); err != nil {
				return fmt.Errorf("bootstrap superuser: %w", err)
			}

			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown() // shutdown the application if the server fails to start
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func runMigrate(args []string) error {
	cfg, err := provideConfig()
	if err != nil {
		return err
	}
	log := provideLogger(cfg)

	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	migrations, err := fs.Sub(dbfs.MigrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration fs: %w", err)
	}
	return db.RunMigrate(log, cfg.Postgres, migrations, command, args)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideStorageProvider,

			provideUsersService,
			provideChannelsService,
			provideMessagesService,
			func(s *messages.DBService) messages.Store { return s },
			provideFilesService,
			provideGateway,
			provideForwardService,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(handlers.NewUsersHandler),
			provideServerHandler(handlers.NewChannelsHandler),
			provideServerHandler(provideMessagesHandler),
			provideServerHandler(provideFilesHandler),
			provideServerHandler(handlers.NewForwardHandler),
			provideServerHandler(handlers.NewWSHandler),

			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}
