package bootstrap

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	app "github.com/mohammadpnp/school-import/internal/application/importing"
	"github.com/mohammadpnp/school-import/internal/config"
	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/file"
	"github.com/mohammadpnp/school-import/internal/infrastructure/repository"
	"github.com/mohammadpnp/school-import/internal/infrastructure/security"
	"github.com/mohammadpnp/school-import/internal/infrastructure/tabular"
	httpecho "github.com/mohammadpnp/school-import/internal/interfaces/http/echo"
	"github.com/mohammadpnp/school-import/internal/logging"
)

// multipartOverhead leaves room for form fields around the uploaded file.
const multipartOverhead = 64 << 10

// NewHTTPServer assembles the import API. lockPool backs the advisory
// locker and may be nil when the in-process locker is configured.
func NewHTTPServer(cfg *config.Config, db *gorm.DB, pool, lockPool *pgxpool.Pool, logger *logging.Logger) (*echo.Echo, error) {
	storage, err := file.NewLocalStorage(cfg.Import.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init upload storage: %w", err)
	}

	batches := repository.NewBatchRepository(db)
	staging := repository.NewStagingRepository(pool, db)
	production := repository.NewProductionRepository(db)
	refs := repository.NewReferenceRepository(db)
	var locker domain.BatchLocker = app.NewKeyedMutex()
	if cfg.Import.Locker == "postgres" {
		if lockPool == nil {
			return nil, fmt.Errorf("advisory locker needs a lock pool")
		}
		locker = repository.NewAdvisoryLocker(lockPool, repository.AdvisoryLockerOptions{MaxWait: cfg.Import.LockWait}, logger)
	}
	decoder := tabular.NewDecoder(tabular.Options{MaxRows: cfg.Import.MaxRows, Strict: cfg.Import.StrictFileType})
	validator := app.NewValidator(refs, production)
	engine := app.NewCommitEngine(production, security.NewBcryptHasher(cfg.Account.BcryptCost), logger)

	handler := httpecho.NewImportHandler(httpecho.ImportUseCases{
		Modules:  app.NewListModules(batches, production),
		Upload:   app.NewUploadBatch(batches, refs, storage, decoder, logger, app.UploadConfig{MaxUploadBytes: cfg.Import.MaxUploadBytes}),
		Validate: app.NewValidateBatch(batches, staging, storage, decoder, validator, locker, logger, app.ValidateConfig{ParseTimeout: cfg.Import.ParseTimeout}),
		Preview:  app.NewPreviewBatch(batches, staging),
		Commit:   app.NewCommitBatch(batches, staging, storage, refs, engine, locker, logger),
		Cancel:   app.NewCancelBatch(batches, staging, storage, locker, logger),
		History:  app.NewListHistory(batches),
		Template: app.NewDownloadTemplate(tabular.NewTemplateWriter()),
	}, logger, cfg.Debug)

	server := echo.New()
	server.HideBanner = true
	server.Debug = cfg.Debug
	server.Server.ReadHeaderTimeout = 10 * time.Second

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(httpecho.RequestLogger(logger))
	server.Use(middleware.BodyLimit(strconv.FormatInt(cfg.Import.MaxUploadBytes+multipartOverhead, 10) + "B"))

	httpecho.RegisterRoutes(server, handler)
	return server, nil
}
