package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"royalty-dag/dag"
	"royalty-dag/db"
	rerrors "royalty-dag/errors"
	"royalty-dag/handlers"
	"royalty-dag/logger"
	"royalty-dag/models"
	"royalty-dag/repository"
	"royalty-dag/routers"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	// Load config
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("log.app_log_file", "royalty-dag.log")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("leveldb.path", "data/royalty-dag")
	viper.SetDefault("staking.lock_interval", "24h")
	viper.SetConfigFile(*configPath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	appLogFile := viper.GetString("log.app_log_file")
	logLevel := viper.GetString("log.level")

	if err := logger.InitLogger(appLogFile, logLevel); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}

	logger.Logger.Info("Starting royalty graph server...")

	// Connect to LevelDB
	leveldbPath := viper.GetString("leveldb.path")
	ldb, err := db.NewLevelDB(leveldbPath)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	nodeRepo := repository.NewNodeRepository(ldb)

	g := dag.NewGraph(nodeRepo, clockwork.NewRealClock())
	if err := g.Restore(); err != nil {
		logger.Logger.Fatal("Failed to restore graph", zap.Error(err))
	}
	for _, id := range viper.GetStringSlice("royalty.tokens") {
		registerToken(g, models.TokenID(id))
	}
	if viper.GetBool("staking.enabled") {
		cfg := dag.StakingConfig{
			Token:        models.TokenID(viper.GetString("staking.token")),
			LockInterval: viper.GetDuration("staking.lock_interval"),
		}
		if s := viper.GetString("staking.min_amount"); s != "" {
			minAmount, err := uint256.FromDecimal(s)
			if err != nil {
				logger.Logger.Fatal("Invalid staking.min_amount", zap.String("value", s), zap.Error(err))
			}
			cfg.MinAmount = minAmount
		}
		registerToken(g, cfg.Token)
		g.EnableStaking(cfg)
		logger.Logger.Info("Staking enabled", zap.String("token", string(cfg.Token)), zap.Duration("lock_interval", cfg.LockInterval))
	}

	h := handlers.NewHandler(g)

	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", viper.GetInt("server.port")),
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", viper.GetInt("server.port")))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	srv.Close()
}

// registerToken creates the token unless it was restored from disk.
func registerToken(g *dag.Graph, id models.TokenID) {
	if _, err := g.RegisterToken(id); err != nil && !errors.Is(err, rerrors.ErrDuplicate) {
		logger.Logger.Fatal("Failed to register token", zap.String("token", string(id)), zap.Error(err))
	}
}
