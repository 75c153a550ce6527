package perm

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// Condition builds a SQL condition over a permissions table (joined under
// the given alias) which holds exactly when Permission.Satisfies would
// return true for the principal. The alias row may be absent (LEFT JOIN);
// all clauses are false against NULL columns.
func Condition(alias string, p domain.Principal, m domain.Membership) sq.Sqlizer {
	public := sq.Eq{alias + ".is_public": true}
	if p.IsAnonymous() {
		return public
	}

	cond := sq.Or{
		public,
		sq.Eq{alias + ".is_signed_in": true},
		sq.Expr(alias+".crsids @> ARRAY[?]::text[]", p.Username),
	}
	if len(m.GroupIDs) > 0 {
		cond = append(cond, sq.Expr(alias+".lookup_groups && ?", m.GroupIDs))
	}
	if len(m.InstIDs) > 0 {
		cond = append(cond, sq.Expr(alias+".lookup_insts && ?", m.InstIDs))
	}
	return cond
}

// Never is a condition which no row satisfies. Used in place of Condition
// when a capability or ownership check has already decided the outcome.
func Never() sq.Sqlizer {
	return sq.Expr("FALSE")
}

// Always is a condition every row satisfies.
func Always() sq.Sqlizer {
	return sq.Expr("TRUE")
}
