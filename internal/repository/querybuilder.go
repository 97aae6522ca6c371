package repository

import (
	"fmt"
	"strings"
)

// predicate — одно условие фильтрации вида (колонка, оператор, значение).
type predicate struct {
	column string
	op     string
	value  any
}

// queryBuilder собирает упорядоченный список условий и превращает его в
// параметризованное WHERE-выражение. Значения никогда не подставляются в
// текст запроса.
type queryBuilder struct {
	predicates []predicate
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{}
}

func (qb *queryBuilder) where(column, op string, value any) *queryBuilder {
	qb.predicates = append(qb.predicates, predicate{column: column, op: op, value: value})
	return qb
}

// build возвращает WHERE-выражение с плейсхолдерами $1..$N и срез
// аргументов в том же порядке. Без условий возвращается TRUE.
func (qb *queryBuilder) build() (string, []any) {
	if len(qb.predicates) == 0 {
		return "TRUE", nil
	}

	parts := make([]string, 0, len(qb.predicates))
	args := make([]any, 0, len(qb.predicates))

	for i, p := range qb.predicates {
		parts = append(parts, fmt.Sprintf("%s %s $%d", p.column, p.op, i+1))
		args = append(args, p.value)
	}

	return strings.Join(parts, " AND "), args
}
