package storage

import "strings"

// queryBuilder accumulates SQL WHERE clauses and parameters
type queryBuilder struct {
	whereClauses []string
	args         []any
}

// addClause appends a WHERE clause with its arguments
func (qb *queryBuilder) addClause(clause string, args ...any) {
	qb.whereClauses = append(qb.whereClauses, clause)
	qb.args = append(qb.args, args...)
}

// addIn appends "column IN (?, ...)" for the given values
func (qb *queryBuilder) addIn(column string, values []string) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	qb.addClause(column+" IN ("+placeholders(len(values))+")", args...)
}

// build returns the WHERE clauses joined with AND
func (qb *queryBuilder) build() string {
	return strings.Join(qb.whereClauses, " AND ")
}
