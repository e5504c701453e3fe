package postgres

import (
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/order/tests"

	postgrestest "github.com/code-payments/txstatus-server/pkg/database/postgres/test"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	// Used for testing ONLY, the table and migrations are external to this repository
	tableCreate = `
		CREATE TABLE txstatus__core_order(
			id SERIAL NOT NULL PRIMARY KEY,

			order_ref TEXT NOT NULL UNIQUE,
			tx_id TEXT NOT NULL,
			status INTEGER NOT NULL,

			is_interactive BOOL NOT NULL,

			customer_id TEXT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			amount_total BIGINT NOT NULL CHECK (amount_total >= 0),

			sequence_number BIGINT NULL CHECK (sequence_number >= 0),
			last_tx_action TEXT NULL,

			substitute_for TEXT NULL UNIQUE,
			substituted_by TEXT NULL UNIQUE,

			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX txstatus__core_order__tx_id__created_at ON txstatus__core_order (tx_id, created_at);
	`

	// Used for testing ONLY, the table and migrations are external to this repository
	tableDestroy = `
		DROP TABLE txstatus__core_order;
	`
)

var (
	testStore order.Store
	teardown  func()
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	testPool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	var cleanUpFunc func()
	db, cleanUpFunc, err := postgrestest.StartPostgresDB(testPool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}
	defer db.Close()

	if err := createTestTables(db); err != nil {
		logrus.StandardLogger().WithError(err).Error("Error creating test tables")
		cleanUpFunc()
		os.Exit(1)
	}

	testStore = New(db)
	teardown = func() {
		if pc := recover(); pc != nil {
			cleanUpFunc()
			panic(pc)
		}

		if err := resetTestTables(db); err != nil {
			logrus.StandardLogger().WithError(err).Error("Error resetting test tables")
			cleanUpFunc()
			os.Exit(1)
		}
	}

	code := m.Run()
	cleanUpFunc()
	os.Exit(code)
}

func TestOrderPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}

func createTestTables(db *sql.DB) error {
	_, err := db.Exec(tableCreate)
	if err != nil {
		logrus.StandardLogger().WithError(err).Error("could not create test tables")
		return err
	}
	return nil
}

func resetTestTables(db *sql.DB) error {
	_, err := db.Exec(tableDestroy)
	if err != nil {
		logrus.StandardLogger().WithError(err).Error("could not drop test tables")
		return err
	}

	return createTestTables(db)
}
