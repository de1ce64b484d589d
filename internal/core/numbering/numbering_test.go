package numbering

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"voucher-service/internal/domain"
)

func rec(typ domain.TransactionType, y, m, d int) domain.TransactionRecord {
	return domain.TransactionRecord{Type: typ, Date: domain.EraDate{Year: y, Month: m, Day: d}}
}

func numbers(records []domain.TransactionRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.VoucherNumber
	}
	return out
}

func TestAssignScenarios(t *testing.T) {
	t.Parallel()

	got := numbers(Assign([]domain.TransactionRecord{
		rec(domain.TypeIncome, 114, 3, 5),
	}))
	if got[0] != "1140305A01" {
		t.Fatalf("income voucher=%q", got[0])
	}

	got = numbers(Assign([]domain.TransactionRecord{
		rec(domain.TypeExpense, 114, 3, 5),
		rec(domain.TypeExpense, 114, 3, 5),
	}))
	if want := []string{"1140305B01", "1140305B02"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expense vouchers=%v, want %v", got, want)
	}
}

func TestAssignSequencesPerKey(t *testing.T) {
	t.Parallel()

	input := []domain.TransactionRecord{
		rec(domain.TypeIncome, 114, 3, 5),
		rec(domain.TypeExpense, 114, 3, 5),
		rec(domain.TypeIncome, 114, 3, 6),
		rec(domain.TypeIncome, 114, 3, 5),
		rec(domain.TypeExpense, 99, 12, 31),
		rec(domain.TypeExpense, 114, 3, 5),
	}
	want := []string{
		"1140305A01",
		"1140305B01",
		"1140306A01",
		"1140305A02",
		"0991231B01",
		"1140305B02",
	}
	got := numbers(Assign(input))
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("vouchers=%v, want %v", got, want)
	}
	for _, r := range input {
		if r.VoucherNumber != "" {
			t.Fatalf("input record was modified: %+v", r)
		}
	}
}

func TestAssignIsDeterministic(t *testing.T) {
	t.Parallel()

	var input []domain.TransactionRecord
	for i := 0; i < 50; i++ {
		typ := domain.TypeIncome
		if i%3 == 0 {
			typ = domain.TypeExpense
		}
		input = append(input, rec(typ, 114, 1+i%2, 1+i%4))
	}
	first := numbers(Assign(input))
	for run := 0; run < 5; run++ {
		if again := numbers(Assign(input)); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs", run)
		}
	}

	seen := make(map[string]bool)
	last := make(map[string]int)
	for i, r := range Assign(input) {
		if seen[r.VoucherNumber] {
			t.Fatalf("duplicate voucher %s", r.VoucherNumber)
		}
		seen[r.VoucherNumber] = true
		k := fmt.Sprintf("%s%c", r.Date.Code(), r.Type.Letter())
		var seq int
		fmt.Sscanf(r.VoucherNumber[8:], "%d", &seq)
		if seq != last[k]+1 {
			t.Fatalf("record %d: seq %d after %d for %s", i, seq, last[k], k)
		}
		last[k] = seq
	}
}

func TestAssignWidensPastNinetyNine(t *testing.T) {
	t.Parallel()

	input := make([]domain.TransactionRecord, 101)
	for i := range input {
		input[i] = rec(domain.TypeExpense, 114, 3, 5)
	}
	got := Assign(input)
	if v := got[98].VoucherNumber; v != "1140305B99" {
		t.Fatalf("99th=%q", v)
	}
	if v := got[99].VoucherNumber; v != "1140305B100" {
		t.Fatalf("100th=%q", v)
	}
	if v := got[100].VoucherNumber; v != "1140305B101" {
		t.Fatalf("101st=%q", v)
	}
}

func TestAssignRunsAreIndependent(t *testing.T) {
	t.Parallel()

	input := []domain.TransactionRecord{
		rec(domain.TypeIncome, 114, 3, 5),
		rec(domain.TypeIncome, 114, 3, 5),
	}
	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = numbers(Assign(input))
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		if want := []string{"1140305A01", "1140305A02"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d=%v", i, got)
		}
	}
}
