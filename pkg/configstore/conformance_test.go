package configstore_test

import (
	"testing"

	"github.com/txn2/gamedna/pkg/configstore"
	"github.com/txn2/gamedna/pkg/configstore/storetest"
)

func TestMemoryStore_Conformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) configstore.Store {
		return configstore.NewMemoryStore()
	})
}

func TestInstrumentedStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) configstore.Store {
		s, err := configstore.Instrument(configstore.NewMemoryStore())
		if err != nil {
			t.Fatalf("instrumenting store: %v", err)
		}
		return s
	})
}
