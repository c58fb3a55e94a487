package memstore_test

import (
	"testing"

	es "github.com/xeonchen/twsoftball-sub000"
	"github.com/xeonchen/twsoftball-sub000/eventstoretest"
	"github.com/xeonchen/twsoftball-sub000/memstore"
)

func newStore(t *testing.T) es.EventStore {
	return memstore.New()
}

func TestCompliance(t *testing.T) {
	eventstoretest.Run(t, newStore)
}

func TestProperties(t *testing.T) {
	eventstoretest.RunProperties(t, newStore)
}
