package memory_test

import (
	"testing"

	"github.com/aretw0/argview/pkg/adapters/memory"
	"github.com/aretw0/argview/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSnapshotStoreContract(t, store)
}

func TestMemoryJournal_Contract(t *testing.T) {
	journal := memory.NewJournal()
	defer journal.Close()
	ports.RunJournalContract(t, journal)
}
