package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"arena/internal/store"
	"arena/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func(t *testing.T) store.Store { return New() },
	})
}
