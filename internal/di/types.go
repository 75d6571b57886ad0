// Package di provides dependency injection type definitions.
package di

import (
	"github.com/redis/go-redis/v9"

	"github.com/aristath/assetflow/internal/cache"
	"github.com/aristath/assetflow/internal/clientdata"
	"github.com/aristath/assetflow/internal/clients/exchangerate"
	"github.com/aristath/assetflow/internal/clients/yahoo"
	"github.com/aristath/assetflow/internal/database"
	"github.com/aristath/assetflow/internal/events"
	"github.com/aristath/assetflow/internal/modules/dividends"
	"github.com/aristath/assetflow/internal/modules/marketdata"
	"github.com/aristath/assetflow/internal/modules/portfolio"
	"github.com/aristath/assetflow/internal/modules/reports"
	"github.com/aristath/assetflow/internal/modules/simulation"
	"github.com/aristath/assetflow/internal/modules/snapshots"
	"github.com/aristath/assetflow/internal/reliability"
	"github.com/aristath/assetflow/internal/scheduler"
)

// Container holds all dependencies for the application. It is created by
// Wire and shared by the server and the CLI.
type Container struct {
	// Databases
	PortfolioDB  *database.DB // Categories, assets, positions and market data
	HistoryDB    *database.DB // Daily portfolio snapshots
	ClientDataDB *database.DB // Provider response cache

	// Clients
	ClientDataRepo *clientdata.Repository
	YahooClient    *yahoo.Client
	FXClient       *exchangerate.Client
	SnapshotCache  cache.Cache
	redisClient    *redis.Client

	// Repositories
	AssetRepo    *portfolio.AssetRepository
	CategoryRepo *portfolio.CategoryRepository
	SnapshotRepo *snapshots.Repository
	DividendRepo *dividends.Repository

	// Services
	PortfolioService    *portfolio.Service
	RefreshService      *marketdata.RefreshService
	SnapshotService     *snapshots.Service
	DividendService     *dividends.Service
	SimulationService   *simulation.Service
	ReportsService      *reports.Service
	BackupService       *reliability.BackupService
	RemoteBackupService *reliability.RemoteBackupService // nil unless S3 is configured

	EventHub  *events.Hub
	Scheduler *scheduler.Scheduler
}

// JobInstances holds every scheduled job so they can be triggered manually
type JobInstances struct {
	MarketRefresh     *scheduler.MarketRefreshJob
	Snapshot          *scheduler.SnapshotJob
	Backup            *reliability.BackupJob
	DailyMaintenance  *reliability.DailyMaintenanceJob
	ClientDataCleanup *clientdata.CleanupJob
	WALCheckpoints    *scheduler.WALCheckpointJob
}

// Databases returns every open database keyed by name
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		database.NamePortfolio:  c.PortfolioDB,
		database.NameHistory:    c.HistoryDB,
		database.NameClientData: c.ClientDataDB,
	}
}

// Close stops the scheduler and releases connections
func (c *Container) Close() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	for _, db := range []*database.DB{c.PortfolioDB, c.HistoryDB, c.ClientDataDB} {
		if db != nil {
			_ = db.Close()
		}
	}
}
