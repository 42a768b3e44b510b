package relauth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectID_EqualsAndUniqueID(t *testing.T) {
	id := uuid.New()
	a := DirectSubject(id)
	b := DirectSubject(id)
	other := DirectSubject(uuid.New())

	assert.True(t, a.(SubjectID).Equals(b), "two SubjectIDs over the same UUID must be equal")
	assert.False(t, a.(SubjectID).Equals(other), "SubjectIDs over different UUIDs must not be equal")
	assert.Equal(t, id, a.(SubjectID).UniqueID())

	assert.False(t, a.(SubjectID).Equals(SetSubject("doc", id, "viewer")),
		"a direct subject must never equal a subject set, even over the same UUID")
}

func TestSubjectSet_EqualsAndUniqueID(t *testing.T) {
	object := uuid.New()
	a := SetSubject("doc", object, "viewer")
	b := SetSubject("doc", object, "viewer")
	other := SetSubject("doc", object, "editor")

	require.True(t, a.(SubjectSet).Equals(b))
	require.False(t, a.(SubjectSet).Equals(other))

	assert.Equal(t, a.(SubjectSet).UniqueID(), b.(SubjectSet).UniqueID(),
		"UniqueID must be deterministic for identical subject sets")
	assert.NotEqual(t, a.(SubjectSet).UniqueID(), other.(SubjectSet).UniqueID())
}

func TestSubjectSet_UniqueID_DistinctObjectsNeverCollide(t *testing.T) {
	o1, o2 := uuid.New(), uuid.New()
	s1 := SetSubject("doc", o1, "viewer").(SubjectSet)
	s2 := SetSubject("doc", o2, "viewer").(SubjectSet)

	assert.NotEqual(t, s1.UniqueID(), s2.UniqueID())
}

func TestTuple_String(t *testing.T) {
	object := uuid.New()
	subjectID := uuid.New()

	tuple := Tuple{
		Namespace: "doc",
		Object:    object,
		Relation:  "viewer",
		Subject:   DirectSubject(subjectID),
	}

	want := "doc:" + object.String() + "#viewer@" + subjectID.String()
	assert.Equal(t, want, tuple.String())
}

func TestEdge_String(t *testing.T) {
	tests := []struct {
		edge Edge
		want string
	}{
		{EdgeUnknown, "unknown"},
		{EdgeSubjectSetExpand, "subject set expand"},
		{EdgeComputedUserset, "computed userset"},
		{EdgeTupleToUserset, "tuple to userset"},
		{Edge(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.edge.String())
	}
}
