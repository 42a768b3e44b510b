package relauth

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/romrossi/relauth/pkg/txutil"
)

// SubjectSetTraversal is the bounded, shard-ordered, cursor-paged graph
// walk over the tuple store.
type SubjectSetTraversal interface {
	// TraverseSubjectSetExpansion follows start's subject-set edges until a
	// terminating direct subject is proved reachable or the search space
	// is exhausted.
	TraverseSubjectSetExpansion(ctx context.Context, rc RequestContext, start Tuple) ([]TraversalResult, error)

	// TraverseSubjectSetRewrite is unimplemented upstream; its semantics
	// over computed subject sets are undefined. It always returns
	// ErrUnimplemented.
	TraverseSubjectSetRewrite(ctx context.Context, rc RequestContext, start Tuple, computedSubjectSets []string) ([]TraversalResult, error)
}

type pgTraversal struct {
	db     *sql.DB
	limits Limits
	log    *slog.Logger
}

// NewSubjectSetTraversal builds a SubjectSetTraversal backed by db. A
// zero-value Limits falls back to DefaultLimits(); a nil logger falls back
// to slog.Default().
func NewSubjectSetTraversal(db *sql.DB, limits Limits, logger *slog.Logger) SubjectSetTraversal {
	if logger == nil {
		logger = slog.Default()
	}
	return &pgTraversal{db: db, limits: limits.normalize(), log: logger}
}

// TraverseSubjectSetExpansion walks the subject-set graph: each round issues one
// query returning up to the configured traversal query limit of set-valued
// edges rooted at start's (namespace, object, relation), ordered by shard_id
// ascending, with a correlated EXISTS subquery collapsing "is the terminal
// tuple already present" into the same round-trip. The walk stops the
// instant any row proves reachability, or when a round returns fewer rows
// than the limit.
func (t *pgTraversal) TraverseSubjectSetExpansion(ctx context.Context, rc RequestContext, start Tuple) ([]TraversalResult, error) {
	log := t.log.With("op", "relauth.TraverseSubjectSetExpansion", "nid", rc.NetworkID,
		"namespace", start.Namespace, "object", start.Object, "relation", start.Relation)

	existsFragment, existsArgs, err := existsTerminalSQL(start.Subject)
	if err != nil {
		return nil, wrapDB(err)
	}

	var results []TraversalResult
	shardID := uuid.Nil

	for {
		query, args, err := roundSQL(existsFragment, existsArgs, rc.NetworkID, start.Namespace, start.Object, start.Relation, shardID, t.limits.TraversalQueryLimit)
		if err != nil {
			return nil, wrapDB(err)
		}

		rows, err := txutil.Statement(ctx, t.db).QueryContext(ctx, query, args...)
		if err != nil {
			log.Error("traversal round failed", "err", err)
			return nil, wrapDB(err)
		}

		rowCount := 0
		for rows.Next() {
			rowCount++

			var (
				edgeShardID                     uuid.UUID
				subjectSetNamespace, subjectSetRelation string
				subjectSetObject                uuid.UUID
				found                            bool
			)
			if err := rows.Scan(&edgeShardID, &subjectSetNamespace, &subjectSetObject, &subjectSetRelation, &found); err != nil {
				rows.Close()
				return nil, wrapDB(err)
			}

			to := Tuple{
				Namespace: subjectSetNamespace,
				Object:    subjectSetObject,
				Relation:  subjectSetRelation,
				Subject:   start.Subject,
			}
			results = append(results, TraversalResult{From: start, To: to, Via: EdgeSubjectSetExpand, Found: found})

			if found {
				rows.Close()
				log.Info("traversal proved reachability", "edges", len(results))
				return results, nil
			}
			shardID = edgeShardID
		}
		rerr := rows.Err()
		rows.Close()
		if rerr != nil {
			return nil, wrapDB(rerr)
		}

		if rowCount < t.limits.TraversalQueryLimit {
			log.Info("traversal exhausted", "edges", len(results))
			return results, nil
		}
	}
}

// existsTerminalSQL builds the correlated-subquery fragment that tests
// whether a row matching current's (subject_set_namespace, subject_set_object,
// subject_set_relation) and the target subject already exists. It is
// rendered with "?" placeholders (squirrel's Question format) because it is
// spliced, unrendered, into roundSQL's single Dollar-placeholder builder —
// rendering it independently would restart numbering at $1 and collide with
// the outer query's own bound parameters.
func existsTerminalSQL(target Subject) (string, []interface{}, error) {
	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question).
		Select("1").From("heimdall_relation_tuples").
		Where("nid = current.nid").
		Where("namespace = current.subject_set_namespace").
		Where("relation = current.subject_set_relation").
		Where("object = current.subject_set_object").
		Where(subjectPredicate(target))
	return builder.ToSql()
}

// roundSQL builds one traversal round's SELECT: up to limit set-valued
// edges rooted at (namespace, object, relation) with shard_id > lastShardID,
// plus the EXISTS(...) terminal check projected as found, all bound through
// a single placeholder sequence.
func roundSQL(existsFragment string, existsArgs []interface{}, nid uuid.UUID, namespace string, object uuid.UUID, relation string, lastShardID uuid.UUID, limit int) (string, []interface{}, error) {
	builder := statementBuilder.Select(
		"current.shard_id",
		"current.subject_set_namespace",
		"current.subject_set_object",
		"current.subject_set_relation",
	).Column("EXISTS ("+existsFragment+") AS found", existsArgs...).
		From("heimdall_relation_tuples AS current").
		Where("current.nid = ?", nid).
		Where("current.shard_id > ?", lastShardID).
		Where("current.namespace = ?", namespace).
		Where("current.object = ?", object).
		Where("current.relation = ?", relation).
		Where("current.subject_id IS NULL").
		OrderBy("current.shard_id ASC").
		Limit(uint64(limit))
	return builder.ToSql()
}

// TraverseSubjectSetRewrite always fails with ErrUnimplemented: its
// intended semantics over computedSubjectSets are undefined. The signature
// is preserved so callers can compile against it.
func (t *pgTraversal) TraverseSubjectSetRewrite(ctx context.Context, rc RequestContext, start Tuple, computedSubjectSets []string) ([]TraversalResult, error) {
	return nil, ErrUnimplemented
}
