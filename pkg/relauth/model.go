// Package relauth implements the storage and graph-traversal core of a
// relationship-based authorization service: a multi-tenant relation-tuple
// store, a bounded subject-set traversal engine, and a deterministic UUID
// mapping service.
package relauth

import (
	"fmt"

	"github.com/google/uuid"
)

// Tuple is a logical relation assertion: namespace:object#relation@subject.
type Tuple struct {
	Namespace string
	Object    uuid.UUID
	Relation  string
	Subject   Subject
}

func (t Tuple) String() string {
	return fmt.Sprintf("%s:%s#%s@%s", t.Namespace, t.Object, t.Relation, t.Subject)
}

// Subject is the polymorphic subject of a tuple: either a direct principal
// or an indirect subject set. The unexported isSubject method limits its
// implementations to SubjectID and SubjectSet, built by DirectSubject and
// SetSubject.
type Subject interface {
	isSubject()
	fmt.Stringer
}

// SubjectID is a direct principal reference.
type SubjectID struct {
	ID uuid.UUID
}

func (SubjectID) isSubject() {}

func (s SubjectID) String() string { return s.ID.String() }

// DirectSubject builds a direct-principal Subject.
func DirectSubject(id uuid.UUID) Subject { return SubjectID{ID: id} }

// UniqueID returns a stable identifier for this direct subject.
func (s SubjectID) UniqueID() uuid.UUID { return s.ID }

// Equals reports whether other denotes the same direct subject.
func (s SubjectID) Equals(other Subject) bool {
	o, ok := other.(SubjectID)
	return ok && o.ID == s.ID
}

// SubjectSet is an indirect subject: the set of subjects holding Relation on
// Object within Namespace.
type SubjectSet struct {
	Namespace string
	Object    uuid.UUID
	Relation  string
}

func (SubjectSet) isSubject() {}

func (s SubjectSet) String() string {
	return fmt.Sprintf("%s:%s#%s", s.Namespace, s.Object, s.Relation)
}

// SetSubject builds a subject-set Subject.
func SetSubject(namespace string, object uuid.UUID, relation string) Subject {
	return SubjectSet{Namespace: namespace, Object: object, Relation: relation}
}

// UniqueID derives a stable identifier for this subject set, namespaced
// under its own object so distinct objects never collide.
func (s SubjectSet) UniqueID() uuid.UUID {
	return uuid.NewSHA1(s.Object, []byte(s.Namespace+"-"+s.Relation))
}

// Equals reports whether other denotes the same subject set.
func (s SubjectSet) Equals(other Subject) bool {
	o, ok := other.(SubjectSet)
	return ok && o.Namespace == s.Namespace && o.Object == s.Object && o.Relation == s.Relation
}

// Filter restricts a relation-tuple query. A nil/zero field is unrestricted.
type Filter struct {
	Namespace *string
	Object    *uuid.UUID
	Relation  *string
	Subject   Subject
}

// PageRequest is the pagination protocol: nil LastID starts at the
// beginning, PageSize <= 0 falls back to the store's configured default
// page size.
type PageRequest struct {
	LastID   *uuid.UUID
	PageSize int
}

// PaginatedTuples is a page of tuples plus the token for the next page.
// Token is the nil UUID string when this is the final page.
type PaginatedTuples struct {
	Data  []Tuple
	Token string
}

// Edge names how a traversal step reached its target tuple.
type Edge int

const (
	EdgeUnknown Edge = iota
	EdgeSubjectSetExpand
	EdgeComputedUserset
	EdgeTupleToUserset
)

func (e Edge) String() string {
	switch e {
	case EdgeSubjectSetExpand:
		return "subject set expand"
	case EdgeComputedUserset:
		return "computed userset"
	case EdgeTupleToUserset:
		return "tuple to userset"
	default:
		return "unknown"
	}
}

// TraversalResult is one explored edge in a subject-set expansion trace.
type TraversalResult struct {
	From  Tuple
	To    Tuple
	Via   Edge
	Found bool
}
