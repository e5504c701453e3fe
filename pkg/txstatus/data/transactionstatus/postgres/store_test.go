package postgres

import (
	"database/sql"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus"
	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus/tests"

	postgrestest "github.com/code-payments/txstatus-server/pkg/database/postgres/test"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	// Used for testing ONLY, the table and migrations are external to this repository
	tableCreate = `
		CREATE TABLE txstatus__core_transactionstatus(
			id SERIAL NOT NULL PRIMARY KEY,

			tx_id TEXT NOT NULL,
			tx_action TEXT NOT NULL,
			sequence_number BIGINT NULL CHECK (sequence_number >= 0),

			order_ref TEXT NULL,
			will_be_handled BOOL NOT NULL,

			payload JSONB NOT NULL,

			remote_address TEXT NOT NULL,
			country TEXT NULL,
			city TEXT NULL,

			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX txstatus__core_transactionstatus__tx_id ON txstatus__core_transactionstatus (tx_id);
		CREATE INDEX txstatus__core_transactionstatus__order_ref ON txstatus__core_transactionstatus (order_ref);
	`

	// Used for testing ONLY, the table and migrations are external to this repository
	tableDestroy = `
		DROP TABLE txstatus__core_transactionstatus;
	`
)

var (
	testStore transactionstatus.Store
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

func TestTransactionStatusPostgresStore(t *testing.T) {
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
