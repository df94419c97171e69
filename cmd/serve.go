package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/es-reviewer/internal/bot"
	"github.com/spigell/es-reviewer/internal/line"
	"github.com/spigell/es-reviewer/internal/logger"
	"github.com/spigell/es-reviewer/internal/secrets"
	"github.com/spigell/es-reviewer/internal/server"
	"github.com/spigell/es-reviewer/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the LINE webhook",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "listen address (default :8080)")
	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the es-reviewer", zap.String("version", version))

	channelSecret, err := secrets.Load(secrets.Source{
		Name:  "line channel secret",
		Value: config.Line.ChannelSecret,
		File:  config.Line.ChannelSecretFile,
		Env:   "LINE_CHANNEL_SECRET",
	})
	if err != nil {
		logger.Fatal("loading line channel secret", zap.Error(err),
			zap.String("hint", "set LINE_CHANNEL_SECRET or line.channel-secret-file"))
	}

	accessToken, err := secrets.Load(secrets.Source{
		Name:  "line channel access token",
		Value: config.Line.ChannelAccessToken,
		File:  config.Line.ChannelAccessTokenFile,
		Env:   "LINE_CHANNEL_ACCESS_TOKEN",
	})
	if err != nil {
		logger.Fatal("loading line channel access token", zap.Error(err),
			zap.String("hint", "set LINE_CHANNEL_ACCESS_TOKEN or line.channel-access-token-file"))
	}

	logger.Debug("line credentials loaded",
		zap.String("channel_secret", secrets.Redact(channelSecret)),
		zap.String("access_token", secrets.Redact(accessToken)),
	)

	catalog, err := loadCatalog(config, logger)
	if err != nil {
		logger.Fatal("loading company catalog", zap.Error(err))
	}

	reviewer, err := newEvaluator(ctx, config, catalog, logger)
	if err != nil {
		logger.Fatal("building evaluator", zap.Error(err))
	}

	store, err := newStore(ctx, config.Redis, logger)
	if err != nil {
		logger.Fatal("connecting session store", zap.Error(err))
	}
	defer store.Close()

	deps := bot.Deps{
		Reviewer: reviewer,
		Store:    store,
		Catalog:  catalog,
		Logger:   logger.Named("bot"),
	}

	ledgerFile, err := newLedger(config.Ledger.Path)
	if err != nil {
		logger.Fatal("opening ledger", zap.Error(err))
	}
	if ledgerFile != nil {
		deps.Recorder = ledgerFile
		logger.Info("recording reviews", zap.String("path", ledgerFile.Path()))
	}

	b, err := bot.New(deps, bot.Config{
		MinChars:    config.Review.MinChars,
		MaxChars:    config.Review.MaxChars,
		ChunkLength: config.Review.ChunkLength,
		MaxChunks:   config.Review.MaxChunks,
	})
	if err != nil {
		logger.Fatal("building bot", zap.Error(err))
	}

	replier := line.NewClient(logger.Named("line"), accessToken, config.Line.APIURL)

	srv := server.New(server.Config{
		Address:       config.Server.Address,
		ChannelSecret: channelSecret,
	}, b, replier, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}

	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}

// newStore picks Redis when it is configured and falls back to an in-process
// store otherwise.
func newStore(ctx context.Context, cfg *RedisConfig, logger *zap.Logger) (session.Store, error) {
	if cfg.URL == "" && cfg.Address == "" {
		logger.Warn("redis is not configured, sessions are kept in memory")
		return session.NewMemory(cfg.TTL), nil
	}

	store, err := session.NewRedis(session.RedisOptions{
		URL:      cfg.URL,
		Address:  cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		TTL:      cfg.TTL,
	})
	if err != nil {
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}
