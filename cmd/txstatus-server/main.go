package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/oschwald/maxminddb-golang"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	v3 "go.etcd.io/etcd/client/v3"

	pg "github.com/code-payments/txstatus-server/pkg/database/postgres"
	"github.com/code-payments/txstatus-server/pkg/lock"
	etcd_lock "github.com/code-payments/txstatus-server/pkg/lock/etcd"
	memory_lock "github.com/code-payments/txstatus-server/pkg/lock/memory"
	"github.com/code-payments/txstatus-server/pkg/metrics"
	"github.com/code-payments/txstatus-server/pkg/txstatus/audit"
	"github.com/code-payments/txstatus-server/pkg/txstatus/auth"
	"github.com/code-payments/txstatus-server/pkg/txstatus/callback"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data"
	"github.com/code-payments/txstatus-server/pkg/txstatus/handler"
	"github.com/code-payments/txstatus-server/pkg/txstatus/resolver"
	transactionstatus_web "github.com/code-payments/txstatus-server/pkg/txstatus/server/web/transactionstatus"
	"github.com/code-payments/txstatus-server/pkg/txstatus/substitute"
	"github.com/code-payments/txstatus-server/pkg/web/app"
)

type txStatusApp struct {
	log *logrus.Entry

	metricsProvider *newrelic.Application
	server          *transactionstatus_web.Server

	db          *sql.DB
	etcdClient  *v3.Client
	lockManager *etcd_lock.LockManager
	geoDb       *maxminddb.Reader

	stopOnce   sync.Once
	shutdownCh chan struct{}
}

func newTxStatusApp() *txStatusApp {
	return &txStatusApp{
		log:        logrus.StandardLogger().WithField("type", "txstatus-server"),
		shutdownCh: make(chan struct{}),
	}
}

// Init implements app.App.Init
func (a *txStatusApp) Init(appConfig app.Config, metricsProvider *newrelic.Application) error {
	ctx := metrics.WithNewRelicApp(context.Background(), metricsProvider)

	conf, err := decodeConfig(appConfig)
	if err != nil {
		return err
	}

	a.metricsProvider = metricsProvider

	var dataProvider data.Provider
	if conf.Database != nil {
		a.db, err = pg.New(conf.Database.toPgConfig())
		if err != nil {
			return errors.Wrap(err, "error connecting to database")
		}
		dataProvider = data.NewDatabaseProviderFromDB(a.db)
	} else {
		a.log.Warn("no database configured, using in memory stores")
		dataProvider = data.NewTestDatabaseProvider()
	}

	var locks lock.Manager
	if endpoints := splitEndpoints(conf.Etcd.Endpoints); len(endpoints) > 0 {
		a.etcdClient, err = v3.New(v3.Config{
			Endpoints:   endpoints,
			DialTimeout: conf.Etcd.DialTimeout,
		})
		if err != nil {
			return errors.Wrap(err, "error creating etcd client")
		}

		hostname, _ := os.Hostname()
		a.lockManager, err = etcd_lock.NewLockManager(a.etcdClient, conf.Etcd.LockRootKey, conf.Etcd.LockTTL, hostname)
		if err != nil {
			return errors.Wrap(err, "error creating etcd lock manager")
		}
		locks = a.lockManager
	} else {
		a.log.Warn("no etcd endpoints configured, using in process locks")
		locks = memory_lock.NewLockManager()
	}

	if len(conf.MaxMindDbPath) > 0 {
		raw, err := app.LoadFile(conf.MaxMindDbPath)
		if err != nil {
			return errors.Wrap(err, "error loading maxmind database")
		}

		a.geoDb, err = maxminddb.FromBytes(raw)
		if err != nil {
			return errors.Wrap(err, "error opening maxmind database")
		}
	}

	authConfig := auth.WithEnvConfigs()
	processor := callback.NewProcessor(
		auth.NewAuthenticator(auth.NewConfigValidator(authConfig), auth.NewRateLimiter(ctx, authConfig)),
		resolver.NewOrderResolver(dataProvider),
		substitute.NewReconciler(dataProvider, locks, substitute.WithEnvConfigs()),
		audit.NewLogger(dataProvider, a.geoDb),
		handler.NewDefaultHandler(dataProvider, locks),
	)

	a.server = transactionstatus_web.NewTransactionStatusServer(ctx, processor, transactionstatus_web.WithEnvConfigs())

	return nil
}

// RegisterWithHTTP implements app.App.RegisterWithHTTP
func (a *txStatusApp) RegisterWithHTTP(mux *http.ServeMux) {
	for path, h := range a.server.GetHandlers() {
		mux.Handle(path, metrics.WrapHttpHandler(a.metricsProvider, path, h))
	}
}

// ShutdownChan implements app.App.ShutdownChan
func (a *txStatusApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *txStatusApp) Stop() {
	a.stopOnce.Do(func() {
		if a.lockManager != nil {
			a.lockManager.Close()
		}
		if a.etcdClient != nil {
			if err := a.etcdClient.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing etcd client")
			}
		}
		if a.geoDb != nil {
			if err := a.geoDb.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing maxmind database")
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing database")
			}
		}

		close(a.shutdownCh)
	})
}

func splitEndpoints(raw string) []string {
	var endpoints []string
	for _, endpoint := range strings.Split(raw, ",") {
		endpoint = strings.TrimSpace(endpoint)
		if len(endpoint) > 0 {
			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints
}

func main() {
	if err := app.Run(newTxStatusApp()); err != nil {
		logrus.StandardLogger().WithError(err).Fatal("error running txstatus server")
	}
}
