package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vibeelabs/vibee-go/vibee"
	"github.com/vibeelabs/vibee-go/vibee/cache"
	"github.com/vibeelabs/vibee-go/vibee/catalog"
	"github.com/vibeelabs/vibee-go/vibee/config"
	"github.com/vibeelabs/vibee-go/vibee/httpx"
	"github.com/vibeelabs/vibee-go/vibee/library"
	logpkg "github.com/vibeelabs/vibee-go/vibee/logger"
	"github.com/vibeelabs/vibee-go/vibee/lyrics"
	"github.com/vibeelabs/vibee-go/vibee/player"
	"github.com/vibeelabs/vibee-go/vibee/playlist"
	"github.com/vibeelabs/vibee-go/vibee/resolver"
	"github.com/vibeelabs/vibee-go/vibee/search"
	"github.com/vibeelabs/vibee-go/vibee/sections"
	"github.com/vibeelabs/vibee-go/vibee/store"
	"github.com/vibeelabs/vibee-go/vibee/worker"
	gormlogger "gorm.io/gorm/logger"
)

// App wires all application dependencies.
type App struct {
	Config   *config.Config
	Logger   *logpkg.Logger
	DB       *store.Repository
	Pool     *worker.Pool
	Catalog  *catalog.Client
	Sections *sections.Service
	Search   *search.Service
	Playlist *playlist.Builder
	Lyrics   *lyrics.Service
	Library  *library.Service
	Player   *player.Service
	Build    BuildInfo
}

// BuildInfo provides build-time metadata.
type BuildInfo struct {
	RuntimeVer string
	BinVersion string
	CommitSHA  string
	BuildTime  string
	BuildArch  string
}

// Options carries the external integrations the core does not own: the
// generative recommender and the playback transport. Both may be nil;
// mood sections and autoplay refills then degrade gracefully.
type Options struct {
	Recommender vibee.Recommender
	Transport   vibee.MediaTransport
}

// New builds the application container.
func New(ctx context.Context, configPath string, build BuildInfo, opts Options) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logpkg.New(
		conf.GetString("LogDir"),
		conf.GetString("LogLevel"),
		conf.GetString("LogFormat"),
		conf.GetBool("LogSource"),
	)
	if err != nil {
		return nil, err
	}

	gormLogger := logpkg.NewGormLogger(
		log,
		mapGormLevel(conf.GetString("GormLogLevel")),
		time.Duration(conf.GetInt("GormSlowThresholdMs"))*time.Millisecond,
	)
	databasePath := strings.TrimSpace(conf.GetString("Database"))
	if databasePath == "" {
		databasePath = "vibee.db"
	}

	repo, err := store.NewSQLiteRepository(databasePath, gormLogger)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	maxLifetime := time.Duration(conf.GetInt("DBConnMaxLifetimeSec")) * time.Second
	if err := repo.ConfigurePool(conf.GetInt("DBMaxOpenConns"), conf.GetInt("DBMaxIdleConns"), maxLifetime); err != nil {
		return nil, fmt.Errorf("configure db pool: %w", err)
	}

	pool := worker.New(conf.GetInt("WorkerPoolSize"), log)

	httpClient := httpx.New(log)
	cat := catalog.NewClient(httpClient, conf.GetString("APIBase"), log)

	sectionTTL := time.Duration(conf.GetInt("SectionTTLMinutes")) * time.Minute
	searchTTL := time.Duration(conf.GetInt("SearchTTLMinutes")) * time.Minute
	sectionCache := cache.NewSectionCache(repo, sectionTTL, log)
	searchCache := cache.NewSearchCache(repo, searchTTL, log)

	res := resolver.New(
		cat,
		opts.Recommender,
		conf.GetInt("ResolveBatchSize"),
		time.Duration(conf.GetInt("ResolveBatchPauseMs"))*time.Millisecond,
		log,
	)

	defaultLang := conf.GetString("DefaultLanguage")
	sectionSvc := sections.NewService(
		sections.NewFetcher(cat, log),
		res,
		sectionCache,
		repo,
		pool,
		sections.Config{
			DefaultLanguage: defaultLang,
			Languages:       vibee.Languages,
			WarmupLanguages: conf.GetInt("WarmupLanguages"),
			WarmupDelay:     time.Duration(conf.GetInt("WarmupDelaySeconds")) * time.Second,
		},
		log,
	)

	return &App{
		Config:   conf,
		Logger:   log,
		DB:       repo,
		Pool:     pool,
		Catalog:  cat,
		Sections: sectionSvc,
		Search:   search.New(cat, searchCache, log),
		Playlist: playlist.NewBuilder(cat, res, opts.Recommender, log),
		Lyrics:   lyrics.New(cat, conf.GetString("LyricsAPIBase"), log),
		Library:  library.New(repo, cat, pool, defaultLang, log),
		Player:   player.New(cat, opts.Transport, log),
		Build:    build,
	}, nil
}

// Start kicks off background work: the preferred language's sections
// are prefetched so the first screen renders from cache.
func (a *App) Start(ctx context.Context) error {
	if a.Logger != nil {
		a.Logger.Info("vibee core started",
			"version", a.Build.BinVersion,
			"commit", a.Build.CommitSHA,
			"runtime", a.Build.RuntimeVer,
			"arch", a.Build.BuildArch,
		)
	}

	if err := a.Pool.Submit(func() {
		prefetchCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		lang, err := a.Library.Language(prefetchCtx)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Warn("language preference unavailable, using default", "error", err)
			}
			lang = ""
		}
		if _, err := a.Sections.Sections(prefetchCtx, lang, nil); err != nil {
			if a.Logger != nil {
				a.Logger.Warn("section prefetch failed", "lang", lang, "error", err)
			}
		}
	}); err != nil && a.Logger != nil {
		a.Logger.Warn("section prefetch rejected", "error", err)
	}

	return nil
}

// Shutdown releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Pool.StopNow()
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown worker pool: %w", err)
			}
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("failed to close database", "error", err)
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("close database: %w", err)
			}
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("close logger: %w", err)
			}
		}
	}

	return firstErr
}

func mapGormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	case "warn", "warning":
		fallthrough
	default:
		return gormlogger.Warn
	}
}
