package scalpel

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifestWith(ids ...string) *Manifest {
	m := &Manifest{Path: "ppt/slides/_rels/slide1.xml.rels", Source: slide1}
	for _, id := range ids {
		m.rels.Relationship = append(m.rels.Relationship, Relationship{ID: id, Type: ImageRelationshipType, Target: "../media/image1.png"})
	}
	return m
}

func TestManifestAllocate_SkipsTakenIDs(t *testing.T) {
	m := manifestWith("rId1000", "rId1001", "rId5")
	m.next = 1000

	id, err := m.allocate()
	require.NoError(t, err)
	assert.Equal(t, "rId1002", id)

	id, err = m.allocate()
	require.NoError(t, err)
	assert.Equal(t, "rId1003", id)
}

func TestManifestAllocate_StartsAboveExistingIDs(t *testing.T) {
	id, err := manifestWith("rId1", "rId2").allocate()
	require.NoError(t, err)
	assert.Equal(t, "rId1000", id)

	id, err = manifestWith("rId1", "rId1500").allocate()
	require.NoError(t, err)
	assert.Equal(t, "rId1501", id)
}

func TestManifestAllocate_GivesUpAfterRepeatedCollisions(t *testing.T) {
	ids := make([]string, 0, maxAllocationAttempts)
	for n := 1; n <= maxAllocationAttempts; n++ {
		ids = append(ids, "rId"+strconv.Itoa(n))
	}
	m := manifestWith(ids...)
	m.next = 1

	_, err := m.allocate()
	assert.ErrorIs(t, err, ErrCollidingRelationshipID)
}
