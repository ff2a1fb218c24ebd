package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pachmu/nice_job_alert_bot/config"
	"github.com/pachmu/nice_job_alert_bot/internal/api"
	"github.com/pachmu/nice_job_alert_bot/internal/bot"
	"github.com/pachmu/nice_job_alert_bot/internal/browser"
	"github.com/pachmu/nice_job_alert_bot/internal/coordinator"
	"github.com/pachmu/nice_job_alert_bot/internal/db"
	"github.com/pachmu/nice_job_alert_bot/internal/job"
	"github.com/pachmu/nice_job_alert_bot/internal/notifier"
	"github.com/pachmu/nice_job_alert_bot/internal/scheduler"
	"github.com/pachmu/nice_job_alert_bot/internal/search"
	"github.com/pachmu/nice_job_alert_bot/internal/store"
)

var configPath = flag.String("config", "./config/config.yaml", "Path to config file")

const shutdownTimeout = 5 * time.Second

type backend interface {
	store.Backend
	Close() error
}

func main() {
	flag.Parse()
	conf, err := config.GetConfig(*configPath)
	if err != nil {
		logrus.Fatal(err)
	}
	setupLogging(conf.Log)

	ctx, cancel := context.WithCancel(context.Background())
	errGr, ctx := errgroup.WithContext(ctx)

	kv, err := openBackend(ctx, conf.Storage)
	if err != nil {
		logrus.Fatal(err)
	}
	defer closeLogged("storage", kv.Close)

	tg, err := tgbotapi.NewBotAPI(conf.Bot.Token)
	if err != nil {
		logrus.Fatal(errors.Wrap(err, "telegram login"))
	}
	display := bot.NewDisplay(tg, conf.Bot.ChatID)

	st := store.New(kv, store.WithDefaults(job.Settings{
		NotificationsEnabled: *conf.Defaults.Notifications,
		CheckIntervalMinutes: conf.Defaults.CheckIntervalMinutes,
	}))
	notif := notifier.New(st, display, display,
		notifier.WithMaxPerBatch(conf.Notifier.MaxPerBatch),
		notifier.WithStagger(conf.Notifier.Stagger),
	)

	brw := browser.New(browser.Options{HeadlessForeground: conf.Search.HeadlessForeground})
	defer closeLogged("browser", brw.Close)

	keptForeground := conf.Search.KeptForeground
	if conf.Search.HeadlessForeground {
		keptForeground = 0
	}
	orch := search.NewOrchestrator(brw, st,
		search.WithBaseURL(conf.Search.BaseURL),
		search.WithForegroundTimeout(conf.Search.ForegroundTimeout),
		search.WithBackgroundGrace(conf.Search.BackgroundGrace),
		search.WithKeptForeground(keptForeground),
	)
	defer orch.Close()
	coord := coordinator.New(ctx, st, orch, notif)
	sched := scheduler.New(st, coord.CheckAlert)
	orch.SetScheduler(sched)
	coord.SetScheduler(sched)

	handler := bot.NewMessageHandler(conf.Bot.ChatID, coord)
	bt := bot.NewTelegramBot(tg, handler)

	errGr.Go(func() error {
		quitCh := make(chan os.Signal, 1)
		signal.Notify(quitCh, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		select {
		case <-quitCh:
		case <-ctx.Done():
		}

		cancel()
		return nil
	})

	errGr.Go(func() error {
		err := bt.Run(ctx)
		if err != nil {
			return err
		}
		return nil
	})
	logrus.Info("Bot started")

	if conf.API.Listen != "" {
		srv := &http.Server{
			Addr:    conf.API.Listen,
			Handler: api.NewRouter(api.NewHandler(coord)),
		}
		errGr.Go(func() error {
			logrus.Infof("API listening on %s", conf.API.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.WithStack(err)
			}
			return nil
		})
		errGr.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			return errors.WithStack(srv.Shutdown(shutdownCtx))
		})
	}

	if err := sched.Start(ctx); err != nil {
		logrus.Errorf("Arm alert timer: %+v", err)
	}

	err = errGr.Wait()
	sched.Stop()
	coord.Wait()
	if err != nil {
		logrus.Error(err)
	}
	logrus.Info("Process terminated")
}

func openBackend(ctx context.Context, conf config.Storage) (backend, error) {
	switch conf.Backend {
	case config.BackendRedis:
		return db.NewRedisDB(ctx, conf.Redis.URL)
	case config.BackendMemory:
		logrus.Warn("Using in-memory storage, alerts will not survive a restart")
		return db.NewMemoryDB(), nil
	default:
		return db.NewSQLiteDB(conf.Datasource)
	}
}

func setupLogging(conf config.Log) {
	level, err := logrus.ParseLevel(conf.Level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", conf.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if conf.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if level < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

func closeLogged(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logrus.Errorf("Close %s: %+v", name, err)
	}
}
