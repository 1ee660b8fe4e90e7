package memory

import (
	"testing"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
	metadatatesting "github.com/marmos91/dittoquota/pkg/store/metadata/testing"
)

// TestMemoryMetadataStore runs the complete Store test suite against the
// MemoryMetadataStore implementation.
func TestMemoryMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			return NewMemoryMetadataStoreWithDefaults()
		},
	}

	suite.Run(t)
}
