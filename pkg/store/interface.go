package store

import "github.com/mcclellann/hpgLedger/pkg/models"

// Storage persists the ledger snapshot as a whole. Save must write every
// collection or none of them.
type Storage interface {
	Load() (models.Snapshot, error)
	Save(snapshot models.Snapshot) error

	Close() error
}
