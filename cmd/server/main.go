// Package main is the entry point for the AlphaTrader automated trading
// server. It wires the market data pipeline, the agent manager, the risk
// engine and the HTTP API, then runs until interrupted.
//
// The application uses a 3-database layout:
// - market.db: catalog, K-line history (rebuildable cache)
// - ledger.db: immutable fill history (audit trail)
// - workspace.db: persisted user workspace (agents, pools, settings)
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alphatrader/alphatrader/internal/clients/eastmoney"
	"github.com/alphatrader/alphatrader/internal/clients/mockfeed"
	"github.com/alphatrader/alphatrader/internal/clients/oracle"
	"github.com/alphatrader/alphatrader/internal/clients/tencent"
	"github.com/alphatrader/alphatrader/internal/config"
	"github.com/alphatrader/alphatrader/internal/database"
	"github.com/alphatrader/alphatrader/internal/events"
	"github.com/alphatrader/alphatrader/internal/modules/agents"
	"github.com/alphatrader/alphatrader/internal/modules/market_hours"
	"github.com/alphatrader/alphatrader/internal/modules/marketdata"
	"github.com/alphatrader/alphatrader/internal/modules/trading"
	"github.com/alphatrader/alphatrader/internal/modules/workspace"
	"github.com/alphatrader/alphatrader/internal/notify"
	"github.com/alphatrader/alphatrader/internal/orchestrator"
	"github.com/alphatrader/alphatrader/internal/server"
	"github.com/alphatrader/alphatrader/pkg/logger"
)

const defaultUserID = "default"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("broker_mode", cfg.BrokerMode).Msg("Starting AlphaTrader")

	// Databases
	marketDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "market.db"),
		Profile: database.ProfileCache,
		Name:    "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open market database")
	}
	defer marketDB.Close()

	ledgerDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "ledger.db"),
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	workspaceDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "workspace.db"),
		Profile: database.ProfileStandard,
		Name:    "workspace",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open workspace database")
	}
	defer workspaceDB.Close()

	for _, db := range []*database.DB{marketDB, ledgerDB, workspaceDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to run migrations")
		}
	}

	// Market data pipeline. Provider order is the fallback order: eastmoney
	// is primary, tencent the fallback, mockfeed the always-on floor.
	trends := marketdata.NewTrendBook()
	emClient := eastmoney.NewClient(trends, log)
	providers := []marketdata.Provider{
		emClient,
		tencent.NewClient(trends, log),
		mockfeed.NewClient(time.Now().UnixNano(), trends, log),
	}

	calendar := market_hours.NewSSECalendar()
	catalogs := marketdata.NewCatalogRepository(marketDB.Conn(), log)
	mirror := marketdata.NewCatalogFile(cfg.DataDir, log)
	cache := marketdata.NewCatalogCache(
		catalogs,
		mirror,
		providers,
		calendar,
		time.Duration(cfg.CatalogTTLSeconds)*time.Second,
		log,
	)
	history := marketdata.NewHistoryRepository(marketDB.Conn(), log)
	market := marketdata.NewService(cache, marketdata.NewAggregator(providers, log), catalogs, history, emClient, log)

	// Trading
	health := trading.NewMarketHealth(log)
	fills := trading.NewFillRepository(ledgerDB.Conn(), log)

	var broker trading.Broker
	switch cfg.BrokerMode {
	case "real":
		broker = trading.NewRandomRejectBroker(time.Now().UnixNano(), 0.05, 200*time.Millisecond, 2*time.Second)
	default:
		broker = trading.SimulatedBroker{}
	}
	engine := trading.NewEngine(broker, fills, health, cfg.Risk, log)

	// Agents and workspace persistence
	manager := agents.NewManager(log)
	wsRepo := workspace.NewRepository(workspaceDB.Conn(), log)
	saver := workspace.NewService(wsRepo, func(string) workspace.Workspace {
		states, pools := manager.Export()
		return workspace.Workspace{
			Agents: states,
			Pools:  pools,
			Notify: workspace.NotifyConfig{
				WebhookURL:     cfg.NotifyWebhookURL,
				TelegramToken:  cfg.NotifyTelegramToken,
				TelegramChatID: cfg.NotifyTelegramChatID,
			},
			UpdatedAt: time.Now(),
		}
	}, log)

	notifyCfg := notify.Config{
		WebhookURL:     cfg.NotifyWebhookURL,
		TelegramToken:  cfg.NotifyTelegramToken,
		TelegramChatID: cfg.NotifyTelegramChatID,
	}

	// Restore the saved workspace so agents survive restarts
	if ws, err := saver.Load(defaultUserID); err != nil {
		log.Error().Err(err).Msg("Failed to load workspace, starting empty")
	} else if ws != nil {
		manager.Restore(ws.Agents, ws.Pools)
		if ws.Notify.WebhookURL != "" || ws.Notify.TelegramToken != "" {
			notifyCfg = notify.Config{
				WebhookURL:     ws.Notify.WebhookURL,
				TelegramToken:  ws.Notify.TelegramToken,
				TelegramChatID: ws.Notify.TelegramChatID,
			}
		}
		log.Info().Int("agents", len(ws.Agents)).Int("pools", len(ws.Pools)).Msg("Workspace restored")
	}

	notifier := notify.New(notifyCfg, log)
	bus := events.NewBus(log)
	oracleClient := oracle.NewClient(cfg.OracleEndpoint, cfg.OracleAPIKey, cfg.OracleModel, cfg.OracleLocale, log)

	orch := orchestrator.New(orchestrator.Deps{
		Market:   market,
		Agents:   manager,
		Oracle:   oracleClient,
		Engine:   engine,
		Health:   health,
		Calendar: calendar,
		Bus:      bus,
		Notifier: notifier,
		Saver:    saver,
		Risk:     cfg.Risk,
		Log:      log,
	})
	if err := orch.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start orchestrator")
	}

	srv := server.New(server.Config{
		Log:       log,
		Cfg:       cfg,
		Market:    market,
		Agents:    manager,
		Fills:     fills,
		Workspace: saver,
		Bus:       bus,
		Health:    health,
		Calendar:  calendar,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop the trading loops first so no new fills arrive, then flush the
	// workspace, then drain the HTTP server.
	orch.Stop()
	saver.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
