package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/storage/badger"
)

// NewStorageManager creates the storage manager backing the run ledger.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	return badger.NewManager(logger, &config.Storage.Badger)
}
