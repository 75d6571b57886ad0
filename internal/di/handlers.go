package di

import (
	"github.com/rs/zerolog"

	dividendshandlers "github.com/aristath/assetflow/internal/modules/dividends/handlers"
	marketdatahandlers "github.com/aristath/assetflow/internal/modules/marketdata/handlers"
	portfoliohandlers "github.com/aristath/assetflow/internal/modules/portfolio/handlers"
	reportshandlers "github.com/aristath/assetflow/internal/modules/reports/handlers"
	simulationhandlers "github.com/aristath/assetflow/internal/modules/simulation/handlers"
	snapshotshandlers "github.com/aristath/assetflow/internal/modules/snapshots/handlers"
	reliabilityhandlers "github.com/aristath/assetflow/internal/reliability/handlers"
	"github.com/aristath/assetflow/internal/server"
)

// Handlers builds the HTTP handlers of every module
func Handlers(container *Container, jobs *JobInstances, log zerolog.Logger) []server.RouteRegistrar {
	var remote reliabilityhandlers.RemoteLister
	if container.RemoteBackupService != nil {
		remote = container.RemoteBackupService
	}

	return []server.RouteRegistrar{
		portfoliohandlers.NewHandler(container.AssetRepo, container.CategoryRepo, container.PortfolioService, container.YahooClient, log),
		marketdatahandlers.NewHandler(container.RefreshService, log),
		snapshotshandlers.NewHandler(container.SnapshotService, log),
		dividendshandlers.NewHandler(container.DividendService, log),
		simulationhandlers.NewHandler(container.SimulationService, log),
		reportshandlers.NewHandler(container.ReportsService, log),
		reliabilityhandlers.NewHandler(jobs.Backup, remote, log),
	}
}
