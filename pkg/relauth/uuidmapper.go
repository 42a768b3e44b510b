package relauth

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/romrossi/relauth/pkg/txutil"
)

// UUIDMapper derives deterministic UUIDs from strings and best-effort
// persists the reverse mapping for observability.
type UUIDMapper interface {
	// MapStringsToUUIDs derives a v5 UUID per input string under
	// rc.NetworkID, persists the (id, string) pairs idempotently, and
	// returns the ids in input order.
	MapStringsToUUIDs(ctx context.Context, rc RequestContext, values []string) ([]uuid.UUID, error)

	// MapStringsToUUIDsReadonly performs the same derivation with no
	// persistence side effect.
	MapStringsToUUIDsReadonly(ctx context.Context, rc RequestContext, values []string) ([]uuid.UUID, error)

	// MapUUIDsToStrings looks up the persisted string representation of
	// each id, returning "" for any id with no persisted mapping. The
	// result always has exactly len(ids) entries, position-preserving.
	MapUUIDsToStrings(ctx context.Context, rc RequestContext, ids []uuid.UUID, page PageRequest) ([]string, error)
}

type pgUUIDMapper struct {
	db     *sql.DB
	limits Limits
	log    *slog.Logger
}

// NewUUIDMapper builds a UUIDMapper backed by db. A zero-value Limits falls
// back to DefaultLimits(); a nil logger falls back to slog.Default().
func NewUUIDMapper(db *sql.DB, limits Limits, logger *slog.Logger) UUIDMapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &pgUUIDMapper{db: db, limits: limits.normalize(), log: logger}
}

// MapStringsToUUIDsReadonly derives a v5 UUID per string, namespaced under
// rc.NetworkID, with no database access: determinism means no lookup is
// ever required to obtain an id.
func (m *pgUUIDMapper) MapStringsToUUIDsReadonly(ctx context.Context, rc RequestContext, values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(values))
	for i, v := range values {
		ids[i] = uuid.NewSHA1(rc.NetworkID, []byte(v))
	}
	return ids, nil
}

// MapStringsToUUIDs derives ids via MapStringsToUUIDsReadonly, then
// persists (id, string) pairs idempotently: sort by id, drop adjacent
// duplicates, insert in chunks of at most the configured UUID-mapping
// insert chunk size with ON CONFLICT(id) DO NOTHING.
func (m *pgUUIDMapper) MapStringsToUUIDs(ctx context.Context, rc RequestContext, values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}

	log := m.log.With("op", "relauth.MapStringsToUUIDs", "nid", rc.NetworkID, "count", len(values))

	ids, _ := m.MapStringsToUUIDsReadonly(ctx, rc, values)

	type mapping struct {
		id     uuid.UUID
		string string
	}
	mappings := make([]mapping, len(values))
	for i, v := range values {
		mappings[i] = mapping{id: ids[i], string: v}
	}

	sort.Slice(mappings, func(i, j int) bool {
		return lessUUID(mappings[i].id, mappings[j].id)
	})

	deduped := mappings[:0]
	for i, mp := range mappings {
		if i > 0 && mp.id == mappings[i-1].id {
			continue
		}
		deduped = append(deduped, mp)
	}

	log.Info("persisting uuid mappings", "distinct", len(deduped))

	for lo := 0; lo < len(deduped); lo += m.limits.UUIDMappingInsertChunkSize {
		hi := lo + m.limits.UUIDMappingInsertChunkSize
		if hi > len(deduped) {
			hi = len(deduped)
		}
		chunk := deduped[lo:hi]

		chunkIDs := make([]uuid.UUID, len(chunk))
		chunkStrings := make([]string, len(chunk))
		for i, mp := range chunk {
			chunkIDs[i] = mp.id
			chunkStrings[i] = mp.string
		}

		const query = `
			INSERT INTO heimdall_uuid_mappings (id, string_representation)
			SELECT * FROM UNNEST($1::UUID[], $2::VARCHAR[])
			ON CONFLICT (id) DO NOTHING`

		if _, err := txutil.Statement(ctx, m.db).ExecContext(ctx, query, pq.Array(chunkIDs), pq.Array(chunkStrings)); err != nil {
			log.Error("insert uuid mappings failed", "err", err)
			return nil, wrapDB(err)
		}
	}

	return ids, nil
}

func lessUUID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// MapUUIDsToStrings groups positions by id to amortise lookups, then
// queries in chunks sized by page.PageSize (defaulting to the configured
// default page size) using id = ANY($1). Duplicate ids in the input fill
// every one of their positions; unmapped ids resolve to "".
func (m *pgUUIDMapper) MapUUIDsToStrings(ctx context.Context, rc RequestContext, ids []uuid.UUID, page PageRequest) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	log := m.log.With("op", "relauth.MapUUIDsToStrings", "nid", rc.NetworkID, "count", len(ids))

	pageSize := page.PageSize
	if pageSize <= 0 {
		pageSize = m.limits.DefaultPageSize
	}

	positions := make(map[uuid.UUID][]int, len(ids))
	for i, id := range ids {
		positions[id] = append(positions[id], i)
	}

	keys := make([]uuid.UUID, 0, len(positions))
	for id := range positions {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return lessUUID(keys[i], keys[j]) })

	results := make([]string, len(ids))

	for lo := 0; lo < len(keys); lo += pageSize {
		hi := lo + pageSize
		if hi > len(keys) {
			hi = len(keys)
		}
		chunk := keys[lo:hi]

		query, args, err := statementBuilder.
			Select("id", "string_representation").
			From(uuidMappingsTable).
			Where(squirrel.Expr("id = ANY(?)", pq.Array(chunk))).
			ToSql()
		if err != nil {
			return nil, wrapDB(err)
		}

		rows, err := txutil.Statement(ctx, m.db).QueryContext(ctx, query, args...)
		if err != nil {
			log.Error("lookup uuid mappings failed", "err", err)
			return nil, wrapDB(err)
		}

		for rows.Next() {
			var id uuid.UUID
			var stringRepresentation string
			if err := rows.Scan(&id, &stringRepresentation); err != nil {
				rows.Close()
				return nil, wrapDB(err)
			}
			for _, idx := range positions[id] {
				if idx < 0 || idx >= len(results) {
					panic("relauth: uuid mapping position out of bounds")
				}
				results[idx] = stringRepresentation
			}
		}
		rerr := rows.Err()
		rows.Close()
		if rerr != nil {
			return nil, wrapDB(rerr)
		}
	}

	return results, nil
}
