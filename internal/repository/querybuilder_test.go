package repository

import (
	"testing"
)

func TestQueryBuilder_Empty(t *testing.T) {
	clause, args := newQueryBuilder().build()

	if clause != "TRUE" {
		t.Fatalf("clause = %q, want TRUE", clause)
	}
	if len(args) != 0 {
		t.Fatalf("args = %v, want empty", args)
	}
}

func TestQueryBuilder_SinglePredicate(t *testing.T) {
	clause, args := newQueryBuilder().
		where("i.buyer_id", "=", int64(7)).
		build()

	if clause != "i.buyer_id = $1" {
		t.Fatalf("clause = %q", clause)
	}
	if len(args) != 1 || args[0] != int64(7) {
		t.Fatalf("args = %v", args)
	}
}

func TestQueryBuilder_OrderPreserved(t *testing.T) {
	clause, args := newQueryBuilder().
		where("i.seller_id", "=", int64(1)).
		where("i.searchable_id", "=", int64(2)).
		where("i.external_id", "=", "ext-3").
		build()

	want := "i.seller_id = $1 AND i.searchable_id = $2 AND i.external_id = $3"
	if clause != want {
		t.Fatalf("clause = %q, want %q", clause, want)
	}
	if len(args) != 3 || args[0] != int64(1) || args[1] != int64(2) || args[2] != "ext-3" {
		t.Fatalf("args = %v", args)
	}
}

func TestQueryBuilder_NoValueInterpolation(t *testing.T) {
	// Значение не должно попадать в текст запроса, только в аргументы.
	clause, args := newQueryBuilder().
		where("i.external_id", "=", "'; DROP TABLE invoices; --").
		build()

	if clause != "i.external_id = $1" {
		t.Fatalf("clause = %q", clause)
	}
	if len(args) != 1 {
		t.Fatalf("args = %v", args)
	}
}
