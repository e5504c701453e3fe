package memory

import (
	"testing"

	"github.com/code-payments/txstatus-server/pkg/txstatus/data/transactionstatus/tests"
)

func TestTransactionStatusMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}

	tests.RunTests(t, testStore, teardown)
}
