package di

import (
	"context"
	"fmt"

	"github.com/aristath/assetflow/internal/cache"
	"github.com/aristath/assetflow/internal/clientdata"
	"github.com/aristath/assetflow/internal/clients/exchangerate"
	"github.com/aristath/assetflow/internal/clients/yahoo"
	"github.com/aristath/assetflow/internal/config"
	"github.com/aristath/assetflow/internal/events"
	"github.com/aristath/assetflow/internal/modules/dividends"
	"github.com/aristath/assetflow/internal/modules/marketdata"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	"github.com/aristath/assetflow/internal/modules/reports"
	"github.com/aristath/assetflow/internal/modules/simulation"
	"github.com/aristath/assetflow/internal/modules/snapshots"
	"github.com/aristath/assetflow/internal/modules/valuation"
	"github.com/aristath/assetflow/internal/reliability"
	"github.com/aristath/assetflow/internal/scheduler"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "assetflow:"

// InitializeServices builds clients, repositories and services on top of
// the opened databases
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventHub = events.NewHub(log)
	container.Scheduler = scheduler.New(log)

	// Clients
	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
	container.YahooClient = yahoo.NewClient(cfg.YahooBaseURL, container.ClientDataRepo, log)
	container.FXClient = exchangerate.NewClient(cfg.ExchangeRateBaseURL, cfg.ReportingCurrency, container.ClientDataRepo, log)

	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		rdb, err := cache.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return err
		}
		container.redisClient = rdb
		container.SnapshotCache = cache.NewRedis(rdb, redisKeyPrefix, log)
	default:
		container.SnapshotCache = cache.NewMemory(cache.SystemClock)
	}

	// Repositories
	container.AssetRepo = portfolio.NewAssetRepository(container.PortfolioDB.Conn(), log)
	container.CategoryRepo = portfolio.NewCategoryRepository(container.PortfolioDB.Conn(), log)
	container.SnapshotRepo = snapshots.NewRepository(container.HistoryDB.Conn(), log)
	container.DividendRepo = dividends.NewRepository(container.PortfolioDB.Conn(), log)

	if err := container.CategoryRepo.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	// Services
	container.PortfolioService = portfolio.NewService(
		container.PortfolioDB.Conn(),
		container.AssetRepo,
		container.CategoryRepo,
		container.SnapshotCache,
		container.FXClient,
		valuation.NewEngine(cfg.Thresholds),
		portfolio.ServiceConfig{
			ReportingCurrency: cfg.ReportingCurrency,
			FXFallbackUSD:     cfg.FXFallbackUSD,
			CacheTTL:          cfg.Cache.TTL,
		},
		log,
	)

	container.RefreshService = marketdata.NewRefreshService(
		container.AssetRepo,
		container.YahooClient,
		container.SnapshotCache,
		container.EventHub,
		log,
	)
	container.PortfolioService.SetRefresher(container.RefreshService)

	container.SnapshotService = snapshots.NewService(container.SnapshotRepo, container.PortfolioService, container.EventHub, log)
	container.PortfolioService.SetSnapshotRecorder(container.SnapshotService)
	container.DividendService = dividends.NewService(container.AssetRepo, container.YahooClient, container.DividendRepo, log)
	container.SimulationService = simulation.NewService(container.SnapshotService, container.PortfolioService, simulation.DefaultParams(), log)
	container.ReportsService = reports.NewService(
		container.PortfolioService,
		reports.NewXLSXGenerator(cfg.ReportingCurrency, log),
		log,
	)

	// Backups
	container.BackupService = reliability.NewBackupService(container.Databases(), cfg.BackupDir(), cfg.BackupRetentionDays, log)
	if cfg.S3.Enabled() {
		store, err := reliability.NewS3Client(ctx, cfg.S3, log)
		if err != nil {
			return err
		}
		container.RemoteBackupService = reliability.NewRemoteBackupService(store, container.BackupService, cfg.DataDir, cfg.BackupRetentionDays, log)
	}

	log.Info().Str("cache", cfg.Cache.Backend).Bool("remote_backups", cfg.S3.Enabled()).Msg("Services initialized")
	return nil
}
