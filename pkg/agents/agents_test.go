package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, "Commerce", Get(Commerce).Name)
	assert.Equal(t, General, Get("unknown").ID)
	assert.Equal(t, General, Get("").ID)
}

func TestRegistryComplete(t *testing.T) {
	all := All()
	assert.Len(t, all, len(IDs))
	for i, a := range all {
		assert.Equal(t, IDs[i], a.ID)
		assert.NotEmpty(t, a.Prompt)
		assert.True(t, Valid(a.ID))
	}
	assert.False(t, Valid("marketing"))
	assert.Contains(t, Get(Commerce).Prompt, "checkout <itemNumber> qty <n>")
	assert.True(t, Get(Sales).CatalogTool)
}
