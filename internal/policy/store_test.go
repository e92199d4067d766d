package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mablr/trace2e/api"
)

func TestAbsentRecordIsZeroLabel(t *testing.T) {
	s := New(nil)
	assert.Equal(t, api.Label{}, s.Get(api.ID{Node: "n1", Resource: api.File("/x")}))
}

func TestFlagSetters(t *testing.T) {
	s := New(nil)
	id := api.ID{Node: "n1", Resource: api.File("/x")}

	s.SetLocalConfidentiality(id, true)
	s.SetLocalIntegrity(id, true)
	s.SetConsentRequired(id, true)

	l := s.Get(id)
	assert.True(t, l.LocalConfidentiality)
	assert.True(t, l.LocalIntegrity)
	assert.True(t, l.ConsentRequired)

	s.SetLocalConfidentiality(id, false)
	assert.False(t, s.Get(id).LocalConfidentiality)
}

func TestDeletionStateMachine(t *testing.T) {
	s := New(nil)
	id := api.ID{Node: "n1", Resource: api.File("/x")}

	assert.False(t, s.Deleted(id))

	require.NoError(t, s.SetDeleted(id))
	assert.True(t, s.Deleted(id))
	assert.ErrorIs(t, s.SetDeleted(id), ErrAlreadyPending)

	s.ConfirmDeleted(id)
	assert.True(t, s.Deleted(id))
	assert.Equal(t, api.DeletionConfirmed, s.Get(id).Deleted)
}

func TestRemoteDeletionShadowState(t *testing.T) {
	s := New(nil)
	id := api.ID{Node: "n2", Resource: api.File("/remote")}

	assert.False(t, s.Deleted(id))
	s.MarkRemoteDeletion(id)
	assert.True(t, s.Deleted(id))
	// No local Label was ever created for a remotely-deleted resource.
	assert.Equal(t, api.Label{}, s.Get(id))
}
