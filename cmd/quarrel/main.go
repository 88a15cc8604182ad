package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/quarrel-lab/quarrel/dao/query"
	"github.com/quarrel-lab/quarrel/internal"
	"github.com/quarrel-lab/quarrel/internal/handler"
	"github.com/quarrel-lab/quarrel/pkg/access"
	"github.com/quarrel-lab/quarrel/pkg/accessindex"
	"github.com/quarrel-lab/quarrel/pkg/config"
	"github.com/quarrel-lab/quarrel/pkg/issues"
	"github.com/quarrel-lab/quarrel/pkg/logutils"
	"github.com/quarrel-lab/quarrel/pkg/notify"
	"github.com/quarrel-lab/quarrel/pkg/reconciler"
	"github.com/quarrel-lab/quarrel/pkg/tenant"
)

var (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	if gin.Mode() == gin.DebugMode {
		if err := godotenv.Load(".debug.env"); err != nil {
			logutils.Log.Warn("no .debug.env loaded: ", err)
		}
	}

	conf := config.GetConfig()

	db := query.GetDB()
	if err := query.Migrate(db); err != nil {
		logutils.Log.Fatal("migrate: ", err)
	}

	var dispatcher notify.Dispatcher
	if conf.SMTP.Enable {
		dispatcher = notify.NewSMTPDispatcher(db, conf)
	} else {
		dispatcher = notify.NewLogDispatcher()
	}

	index := accessindex.NewService(db)
	tenants := tenant.NewManager(db)
	engine := issues.NewEngine(db, tenants, dispatcher)
	checker := access.NewChecker(db, index, engine)

	rec := reconciler.New(db)
	if conf.Reconciler.Enable {
		if err := rec.Start(conf.Reconciler.Spec); err != nil {
			logutils.Log.Fatal("start reconciler: ", err)
		}
		defer rec.Stop()
	}

	backend := internal.Register(&handler.RegisterConfig{
		DB:         db,
		Index:      index,
		Tenants:    tenants,
		Engine:     engine,
		Checker:    checker,
		Reconciler: rec,
	})

	// reference: https://gin-gonic.com/en/docs/examples/graceful-restart-or-stop
	srv := &http.Server{
		Addr:              conf.ServerAddr,
		Handler:           backend,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logutils.Log.Fatalf("listen: %s", err)
		}
	}()
	logutils.Log.Info("server started on ", conf.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logutils.Log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logutils.Log.Fatal("server forced to shutdown: ", err)
	}
	logutils.Log.Info("server exited")
}
