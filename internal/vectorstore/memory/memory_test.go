package memory

import (
	"testing"

	"studyrag/internal/vectorstore"
	"studyrag/internal/vectorstore/storetest"
)

func TestStorage(t *testing.T) {
	storetest.Run(t, func() vectorstore.Storage { return NewStorage() })
}
