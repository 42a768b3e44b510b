package relauth

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/romrossi/relauth/pkg/txutil"
)

// RelationTupleStore is the multi-tenant, paginated, batched repository of
// relation tuples.
type RelationTupleStore interface {
	Write(ctx context.Context, rc RequestContext, tuples []Tuple) error
	Read(ctx context.Context, rc RequestContext, filter Filter, page PageRequest) (PaginatedTuples, error)
	Exists(ctx context.Context, rc RequestContext, filter Filter) (bool, error)
	Delete(ctx context.Context, rc RequestContext, tuples []Tuple) error
	DeleteAll(ctx context.Context, rc RequestContext, filter Filter) error
}

type pgTupleStore struct {
	db     *sql.DB
	limits Limits
	log    *slog.Logger
}

// NewRelationTupleStore builds a RelationTupleStore backed by db. A
// zero-value Limits falls back to DefaultLimits(); a nil logger falls back
// to slog.Default().
func NewRelationTupleStore(db *sql.DB, limits Limits, logger *slog.Logger) RelationTupleStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &pgTupleStore{db: db, limits: limits.normalize(), log: logger}
}

// Write inserts every tuple under rc.NetworkID atomically, in chunks of at
// most the configured write-chunk size rows per insert statement, all
// within a single transaction.
func (s *pgTupleStore) Write(ctx context.Context, rc RequestContext, tuples []Tuple) error {
	if len(tuples) == 0 {
		return ErrMalformedInput
	}

	log := s.log.With("op", "relauth.Write", "nid", rc.NetworkID, "count", len(tuples))
	start := time.Now()

	commitTime := time.Now().UTC()

	err := txutil.WithTransaction(ctx, s.db, func(ctx context.Context) error {
		for lo := 0; lo < len(tuples); lo += s.limits.WriteChunkSize {
			hi := lo + s.limits.WriteChunkSize
			if hi > len(tuples) {
				hi = len(tuples)
			}
			if err := insertChunk(ctx, txutil.Statement(ctx, s.db), rc.NetworkID, tuples[lo:hi], commitTime); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("write failed", "err", err, "elapsed", time.Since(start))
		return wrapDB(err)
	}

	log.Info("write committed", "elapsed", time.Since(start))
	return nil
}

func insertChunk(ctx context.Context, stmt txutil.Queryer, nid uuid.UUID, chunk []Tuple, commitTime time.Time) error {
	n := len(chunk)
	shardIDs := make([]uuid.UUID, n)
	nids := make([]uuid.UUID, n)
	namespaces := make([]string, n)
	objects := make([]uuid.UUID, n)
	relations := make([]string, n)
	subjectIDs := make([]uuid.NullUUID, n)
	subjectSetNamespaces := make([]sql.NullString, n)
	subjectSetObjects := make([]uuid.NullUUID, n)
	subjectSetRelations := make([]sql.NullString, n)
	commitTimes := make([]time.Time, n)

	for i, t := range chunk {
		shardIDs[i] = uuid.New()
		nids[i] = nid
		namespaces[i] = t.Namespace
		objects[i] = t.Object
		relations[i] = t.Relation
		commitTimes[i] = commitTime

		switch subj := t.Subject.(type) {
		case SubjectID:
			subjectIDs[i] = uuid.NullUUID{UUID: subj.ID, Valid: true}
		case SubjectSet:
			subjectSetNamespaces[i] = sql.NullString{String: subj.Namespace, Valid: true}
			subjectSetObjects[i] = uuid.NullUUID{UUID: subj.Object, Valid: true}
			subjectSetRelations[i] = sql.NullString{String: subj.Relation, Valid: true}
		}
	}

	const query = `
		INSERT INTO heimdall_relation_tuples
			(shard_id, nid, namespace, object, relation, subject_id,
			 subject_set_namespace, subject_set_object, subject_set_relation, commit_time)
		SELECT * FROM UNNEST(
			$1::UUID[], $2::UUID[], $3::VARCHAR[], $4::UUID[], $5::VARCHAR[],
			$6::UUID[], $7::VARCHAR[], $8::UUID[], $9::VARCHAR[], $10::TIMESTAMPTZ[])`

	_, err := stmt.ExecContext(ctx, query,
		pq.Array(shardIDs), pq.Array(nids), pq.Array(namespaces), pq.Array(objects), pq.Array(relations),
		pq.Array(subjectIDs), pq.Array(subjectSetNamespaces), pq.Array(subjectSetObjects), pq.Array(subjectSetRelations),
		pq.Array(commitTimes))
	return err
}

// Read returns up to page.PageSize tuples matching filter under
// rc.NetworkID, plus a next-page token.
func (s *pgTupleStore) Read(ctx context.Context, rc RequestContext, filter Filter, page PageRequest) (PaginatedTuples, error) {
	log := s.log.With("op", "relauth.Read", "nid", rc.NetworkID)

	pageSize := page.PageSize
	if pageSize <= 0 {
		pageSize = s.limits.DefaultPageSize
	}

	lastID := uuid.Nil
	if page.LastID != nil {
		lastID = *page.LastID
	}

	builder := statementBuilder.Select(
		"shard_id", "nid", "namespace", "object", "relation",
		"subject_id", "subject_set_namespace", "subject_set_object", "subject_set_relation", "commit_time",
	).From(relationTuplesTable).Where(tenantPredicate(rc.NetworkID))
	builder = applyFilter(builder, filter)
	builder = builder.Where(squirrel.Gt{"shard_id": lastID}).OrderBy("shard_id ASC").Limit(uint64(pageSize) + 1)

	query, args, err := builder.ToSql()
	if err != nil {
		return PaginatedTuples{}, wrapDB(err)
	}

	rows, err := txutil.Statement(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("read query failed", "err", err)
		return PaginatedTuples{}, wrapDB(err)
	}
	defer rows.Close()

	tuples := make([]Tuple, 0, pageSize+1)
	var shardIDs []uuid.UUID
	for rows.Next() {
		var (
			shardID, nid, object                    uuid.UUID
			namespace, relation                     string
			subjectID                                uuid.NullUUID
			subjectSetNamespace, subjectSetRelation sql.NullString
			subjectSetObject                        uuid.NullUUID
			commitTime                               time.Time
		)
		if err := rows.Scan(&shardID, &nid, &namespace, &object, &relation,
			&subjectID, &subjectSetNamespace, &subjectSetObject, &subjectSetRelation, &commitTime); err != nil {
			return PaginatedTuples{}, wrapDB(err)
		}

		tuples = append(tuples, Tuple{
			Namespace: namespace,
			Object:    object,
			Relation:  relation,
			Subject:   subjectFromColumns(subjectID, subjectSetNamespace, subjectSetObject, subjectSetRelation),
		})
		shardIDs = append(shardIDs, shardID)
	}
	if err := rows.Err(); err != nil {
		return PaginatedTuples{}, wrapDB(err)
	}

	token := uuid.Nil.String()
	if len(tuples) > pageSize {
		token = shardIDs[pageSize-1].String()
		tuples = tuples[:pageSize]
	}

	return PaginatedTuples{Data: tuples, Token: token}, nil
}

// subjectFromColumns reconstructs the Subject tagged union from the four
// flattened, nullable columns: reconstruct the variant at read time from
// column nullability.
func subjectFromColumns(id uuid.NullUUID, setNS, setRel sql.NullString, setObj uuid.NullUUID) Subject {
	if id.Valid {
		return SubjectID{ID: id.UUID}
	}
	return SubjectSet{Namespace: setNS.String, Object: setObj.UUID, Relation: setRel.String}
}

// Exists reports whether any row matches filter under rc.NetworkID.
func (s *pgTupleStore) Exists(ctx context.Context, rc RequestContext, filter Filter) (bool, error) {
	inner := statementBuilder.Select("1").From(relationTuplesTable).Where(tenantPredicate(rc.NetworkID))
	inner = applyFilter(inner, filter)

	innerSQL, args, err := inner.ToSql()
	if err != nil {
		return false, wrapDB(err)
	}

	var exists bool
	row := txutil.Statement(ctx, s.db).QueryRowContext(ctx, "SELECT EXISTS ("+innerSQL+")", args...)
	if err := row.Scan(&exists); err != nil {
		return false, wrapDB(err)
	}
	return exists, nil
}

// Delete removes rows equal to any given tuple on all seven tuple columns
// (namespace, object, relation and the four subject columns) under
// rc.NetworkID, in chunks of at most the configured delete-chunk size rows,
// within a single transaction.
func (s *pgTupleStore) Delete(ctx context.Context, rc RequestContext, tuples []Tuple) error {
	if len(tuples) == 0 {
		return nil
	}

	log := s.log.With("op", "relauth.Delete", "nid", rc.NetworkID, "count", len(tuples))
	start := time.Now()

	err := txutil.WithTransaction(ctx, s.db, func(ctx context.Context) error {
		for lo := 0; lo < len(tuples); lo += s.limits.DeleteChunkSize {
			hi := lo + s.limits.DeleteChunkSize
			if hi > len(tuples) {
				hi = len(tuples)
			}
			if err := deleteChunk(ctx, txutil.Statement(ctx, s.db), rc.NetworkID, tuples[lo:hi]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("delete failed", "err", err, "elapsed", time.Since(start))
		return wrapDB(err)
	}

	log.Info("delete committed", "elapsed", time.Since(start))
	return nil
}

func deleteChunk(ctx context.Context, stmt txutil.Queryer, nid uuid.UUID, chunk []Tuple) error {
	n := len(chunk)
	namespaces := make([]string, n)
	objects := make([]uuid.UUID, n)
	relations := make([]string, n)
	subjectIDs := make([]uuid.NullUUID, n)
	subjectSetNamespaces := make([]sql.NullString, n)
	subjectSetObjects := make([]uuid.NullUUID, n)
	subjectSetRelations := make([]sql.NullString, n)
	nids := make([]uuid.UUID, n)

	for i, t := range chunk {
		namespaces[i] = t.Namespace
		objects[i] = t.Object
		relations[i] = t.Relation
		nids[i] = nid

		switch subj := t.Subject.(type) {
		case SubjectID:
			subjectIDs[i] = uuid.NullUUID{UUID: subj.ID, Valid: true}
		case SubjectSet:
			subjectSetNamespaces[i] = sql.NullString{String: subj.Namespace, Valid: true}
			subjectSetObjects[i] = uuid.NullUUID{UUID: subj.Object, Valid: true}
			subjectSetRelations[i] = sql.NullString{String: subj.Relation, Valid: true}
		}
	}

	const query = `
		DELETE FROM heimdall_relation_tuples t
		USING UNNEST($1::VARCHAR[], $2::UUID[], $3::VARCHAR[], $4::UUID[], $5::VARCHAR[], $6::UUID[], $7::VARCHAR[], $8::UUID[])
			AS u(namespace, object, relation, subject_id, subject_set_namespace, subject_set_object, subject_set_relation, nid)
		WHERE t.namespace = u.namespace
		  AND t.object = u.object
		  AND t.relation = u.relation
		  AND t.subject_id IS NOT DISTINCT FROM u.subject_id
		  AND t.subject_set_namespace IS NOT DISTINCT FROM u.subject_set_namespace
		  AND t.subject_set_object IS NOT DISTINCT FROM u.subject_set_object
		  AND t.subject_set_relation IS NOT DISTINCT FROM u.subject_set_relation
		  AND t.nid = u.nid`

	_, err := stmt.ExecContext(ctx, query,
		pq.Array(namespaces), pq.Array(objects), pq.Array(relations),
		pq.Array(subjectIDs), pq.Array(subjectSetNamespaces), pq.Array(subjectSetObjects), pq.Array(subjectSetRelations),
		pq.Array(nids))
	return err
}

// DeleteAll removes every row matching filter under rc.NetworkID,
// atomically.
func (s *pgTupleStore) DeleteAll(ctx context.Context, rc RequestContext, filter Filter) error {
	log := s.log.With("op", "relauth.DeleteAll", "nid", rc.NetworkID)

	err := txutil.WithTransaction(ctx, s.db, func(ctx context.Context) error {
		builder := statementBuilder.Delete(relationTuplesTable).Where(tenantPredicate(rc.NetworkID))
		builder = applyFilter(builder, filter)

		query, args, err := builder.ToSql()
		if err != nil {
			return err
		}

		if _, err := txutil.Statement(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
			log.Error("delete_all failed", "err", err)
			return err
		}
		return nil
	})
	return wrapDB(err)
}
