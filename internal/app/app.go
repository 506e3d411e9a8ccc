package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jgivc/regarchive/internal/adapter/addonclient"
	"github.com/jgivc/regarchive/internal/adapter/copyclient"
	"github.com/jgivc/regarchive/internal/config"
	"github.com/jgivc/regarchive/internal/entity"
	httphandler "github.com/jgivc/regarchive/internal/handler/http"
	"github.com/jgivc/regarchive/internal/queue"
	jobrepo "github.com/jgivc/regarchive/internal/repository/job"
	noderepo "github.com/jgivc/regarchive/internal/repository/node"
	"github.com/jgivc/regarchive/internal/service/archiver"
	"github.com/jgivc/regarchive/internal/service/mailer"
	"github.com/jgivc/regarchive/internal/worker"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	pool    *worker.Pool
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		panic(err)
	}

	rdb := redis.NewClient(opt)
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		panic(err)
	}

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	jobs := jobrepo.NewRedisRepository(rdb, log)
	nodes := noderepo.NewInmemStore(log)
	q := queue.NewRedisQueue(rdb, a.cfg.WorkerConfig.PollDelay, log)

	addons := addonclient.NewHTTPClient(a.cfg.CopyServiceConfig.URL, a.cfg.CopyServiceConfig.Timeout, log)
	copier := copyclient.New(a.cfg.CopyServiceConfig.URL, a.cfg.CopyServiceConfig.Timeout, log)

	ml, err := mailer.New(&a.cfg.MailConfig, mailer.NewLogSender(log), log)
	if err != nil {
		panic(err)
	}

	svc := archiver.New(a.cfg, jobs, nodes, entity.DefaultRegistry(), addons, copier, q, ml, archiver.NewSignals(), log)

	a.pool = worker.NewPool(q, svc, a.cfg.WorkerConfig.Workers, log)
	a.pool.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("POST /archives/{$}", httphandler.NewArchiveHandler(svc, log))
	mux.Handle("GET /jobs/{id}/{$}", httphandler.NewJobHandler(svc, log))
	mux.Handle("POST /hooks/copy/{id}/{target}/{$}", httphandler.NewCopyHookHandler(svc, log))
	mux.Handle("POST /nodes/{$}", httphandler.NewNodeSeedHandler(nodes, log))
	mux.Handle("POST /users/{$}", httphandler.NewUserSeedHandler(nodes, log))

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: mux,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.srv != nil {
		a.srv.Shutdown(ctx)
	}
	if a.pool != nil {
		a.pool.Stop()
	}
}
