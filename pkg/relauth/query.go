package relauth

import (
	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// relationTuplesTable is the persisted schema name.
const relationTuplesTable = "heimdall_relation_tuples"

// uuidMappingsTable is the persisted schema name.
const uuidMappingsTable = "heimdall_uuid_mappings"

// statementBuilder is the package-wide squirrel builder, bound to Postgres'
// $N bound-parameter placeholder style. Every predicate built through it is
// bound; none is ever string-interpolated.
var statementBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// tenantPredicate scopes a query to nid = network_id. Every read, write and
// delete predicate chain starts here.
func tenantPredicate(networkID uuid.UUID) squirrel.Eq {
	return squirrel.Eq{"nid": networkID}
}

// subjectPredicate builds the WHERE clause fragment for a subject filter:
// a direct subject pins subject_id and nils the three subject_set_*
// columns; a subject-set subject pins the three subject_set_* columns and
// nils subject_id.
func subjectPredicate(subject Subject) squirrel.Sqlizer {
	switch s := subject.(type) {
	case SubjectID:
		return squirrel.And{
			squirrel.Eq{"subject_id": s.ID},
			squirrel.Eq{"subject_set_namespace": nil},
			squirrel.Eq{"subject_set_object": nil},
			squirrel.Eq{"subject_set_relation": nil},
		}
	case SubjectSet:
		return squirrel.And{
			squirrel.Eq{"subject_id": nil},
			squirrel.Eq{"subject_set_namespace": s.Namespace},
			squirrel.Eq{"subject_set_object": s.Object},
			squirrel.Eq{"subject_set_relation": s.Relation},
		}
	default:
		return squirrel.And{}
	}
}

// applyFilter layers an optional Filter's predicates onto a SELECT/DELETE
// builder already scoped to a tenant. Absent fields are unrestricted: a
// filter with every field left unset matches every row under the tenant.
func applyFilter[B interface {
	Where(pred interface{}, args ...interface{}) B
}](b B, filter Filter) B {
	if filter.Namespace != nil {
		b = b.Where(squirrel.Eq{"namespace": *filter.Namespace})
	}
	if filter.Object != nil {
		b = b.Where(squirrel.Eq{"object": *filter.Object})
	}
	if filter.Relation != nil {
		b = b.Where(squirrel.Eq{"relation": *filter.Relation})
	}
	if filter.Subject != nil {
		b = b.Where(subjectPredicate(filter.Subject))
	}
	return b
}
