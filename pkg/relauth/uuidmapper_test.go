package relauth

import (
	"context"
	"sort"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockUUIDMapper(t *testing.T, limits Limits) (*pgUUIDMapper, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mapper := NewUUIDMapper(db, limits, nil).(*pgUUIDMapper)
	return mapper, mock
}

func TestMapStringsToUUIDsReadonly_IsDeterministic(t *testing.T) {
	mapper, _ := newMockUUIDMapper(t, Limits{})
	rc := RequestContext{NetworkID: uuid.New()}

	a, err := mapper.MapStringsToUUIDsReadonly(context.Background(), rc, []string{"alice", "bob"})
	require.NoError(t, err)

	b, err := mapper.MapStringsToUUIDsReadonly(context.Background(), rc, []string{"alice", "bob"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0], a[1])
}

func TestMapStringsToUUIDsReadonly_DistinctNetworksDiverge(t *testing.T) {
	mapper, _ := newMockUUIDMapper(t, Limits{})

	a, err := mapper.MapStringsToUUIDsReadonly(context.Background(), RequestContext{NetworkID: uuid.New()}, []string{"alice"})
	require.NoError(t, err)

	b, err := mapper.MapStringsToUUIDsReadonly(context.Background(), RequestContext{NetworkID: uuid.New()}, []string{"alice"})
	require.NoError(t, err)

	assert.NotEqual(t, a[0], b[0], "the same string under different tenants must not collide")
}

func TestMapStringsToUUIDs_PersistsAndDedupes(t *testing.T) {
	mapper, mock := newMockUUIDMapper(t, Limits{UUIDMappingInsertChunkSize: 100})
	rc := RequestContext{NetworkID: uuid.New()}

	mock.ExpectExec("INSERT INTO heimdall_uuid_mappings").WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	ids, err := mapper.MapStringsToUUIDs(context.Background(), rc, []string{"alice", "alice", "bob"})

	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[1], "duplicate input strings must map to the same id")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapStringsToUUIDs_ChunksAcrossInsertChunkSize(t *testing.T) {
	mapper, mock := newMockUUIDMapper(t, Limits{UUIDMappingInsertChunkSize: 1})

	mock.ExpectExec("INSERT INTO heimdall_uuid_mappings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO heimdall_uuid_mappings").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := mapper.MapStringsToUUIDs(context.Background(), RequestContext{NetworkID: uuid.New()}, []string{"alice", "bob"})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMapUUIDsToStrings_FillsEveryPositionIncludingDuplicatesAndMisses(t *testing.T) {
	mapper, mock := newMockUUIDMapper(t, Limits{DefaultPageSize: 100})
	rc := RequestContext{NetworkID: uuid.New()}

	known := uuid.New()
	unknown := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "string_representation"}).AddRow(known, "alice")
	mock.ExpectQuery("SELECT id, string_representation FROM heimdall_uuid_mappings").WillReturnRows(rows)

	results, err := mapper.MapUUIDsToStrings(context.Background(), rc, []uuid.UUID{known, unknown, known}, PageRequest{})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "alice", results[0])
	assert.Equal(t, "", results[1], "an id with no persisted mapping resolves to the empty string")
	assert.Equal(t, "alice", results[2], "every position of a duplicate id must be filled")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLessUUID_ProducesTotalOrder(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return lessUUID(sorted[i], sorted[j]) })

	for i := 1; i < len(sorted); i++ {
		assert.False(t, lessUUID(sorted[i], sorted[i-1]), "sorted order must be non-decreasing")
	}
}
