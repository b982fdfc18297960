package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/parley/pkg/inference"
	"github.com/go-go-golems/parley/pkg/server"
	"github.com/go-go-golems/parley/pkg/store"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Conversation persistence and LLM relay service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogger(viper.GetString("log-level"), viper.GetString("log-format"))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the conversation HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen-addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("mongodb-url", "mongodb://localhost:27017", "MongoDB connection URL")
	serveCmd.Flags().String("database-name", "conversation_db", "MongoDB database name")
	serveCmd.Flags().Bool("in-memory", false, "Use an in-memory store instead of MongoDB")

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	_ = viper.BindPFlags(serveCmd.Flags())
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	_ = viper.BindEnv("listen-addr", "LISTEN_ADDR")
	_ = viper.BindEnv("mongodb-url", "MONGODB_URL")
	_ = viper.BindEnv("database-name", "DATABASE_NAME")
	_ = viper.BindEnv("openai-api-key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai-base-url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("log-level", "LOG_LEVEL")

	rootCmd.AddCommand(serveCmd)
}

func initLogger(level string, format string) {
	if format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := inference.NewOpenAIClient(
		viper.GetString("openai-api-key"),
		inference.WithBaseURL(viper.GetString("openai-base-url")),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create model client")
	}

	st, cleanup, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(st, client, viper.GetString("listen-addr"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context) (store.Store, func(), error) {
	if viper.GetBool("in-memory") {
		log.Warn().Msg("using in-memory store, conversations will not survive restarts")
		return store.NewMemoryStore(), func() {}, nil
	}

	mongoURL := viper.GetString("mongodb-url")
	databaseName := viper.GetString("database-name")

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	if err := mongoClient.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, nil, errors.Wrapf(err, "MongoDB unreachable at %s", mongoURL)
	}
	log.Info().Str("url", mongoURL).Str("database", databaseName).Msg("connected to MongoDB")

	cleanup := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect from MongoDB")
		}
	}

	return store.NewMongoStore(mongoClient.Database(databaseName)), cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}
