package schema

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  CanonicalType
		ok    bool
	}{
		{"exact", "Date", Date, true},
		{"lowercase", "sales", Sales, true},
		{"uppercase", "REGION", Region, true},
		{"underscore", "Transaction_ID", TransactionID, true},
		{"space variant", "transaction id", TransactionID, true},
		{"ignore", "ignore", Ignore, true},
		{"padded", "  Amount  ", Amount, true},
		{"unknown", "Widget", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDropdownDisplayList(t *testing.T) {
	list := DropdownDisplayList()

	if len(list) != len(AllTypes())+1 {
		t.Fatalf("dropdown list length = %d, want %d", len(list), len(AllTypes())+1)
	}
	if list[len(list)-1] != string(Ignore) {
		t.Errorf("last dropdown entry = %q, want %q", list[len(list)-1], Ignore)
	}
	if list[0] != string(Date) {
		t.Errorf("first dropdown entry = %q, want %q", list[0], Date)
	}
}

func TestAliasesFor(t *testing.T) {
	for _, ct := range AllTypes() {
		aliases := AliasesFor(ct)
		if len(aliases) == 0 {
			t.Errorf("canonical type %s has no aliases", ct)
		}
	}

	if aliases := AliasesFor(Ignore); aliases != nil {
		t.Errorf("Ignore should have no aliases, got %v", aliases)
	}

	// Возвращаемый срез не должен быть разделяемым с внутренним словарем
	aliases := AliasesFor(Date)
	aliases[0] = "mutated"
	if AliasesFor(Date)[0] == "mutated" {
		t.Error("AliasesFor leaks internal alias slice")
	}
}

func TestFeasibility(t *testing.T) {
	// Пример из постановки: Date + Sales + Product
	available := map[CanonicalType]bool{
		Date:    true,
		Sales:   true,
		Product: true,
	}

	feasible := FeasibleProducts(available)
	set := make(map[string]bool)
	for _, name := range feasible {
		set[name] = true
	}

	if !set["Sales Summary"] {
		t.Error("Sales Summary must be feasible with Date+Sales+Product")
	}
	if !set["Product Performance"] {
		t.Error("Product Performance must be feasible with Date+Sales+Product")
	}
	if set["Regional Sales"] {
		t.Error("Regional Sales must not be feasible without Region")
	}
}

func TestFeasibilityAlternatives(t *testing.T) {
	// Amount закрывает требование Sales через альтернативу
	available := map[CanonicalType]bool{
		Date:   true,
		Amount: true,
	}

	summary, ok := ProductByName("Sales Summary")
	if !ok {
		t.Fatal("Sales Summary product not registered")
	}
	if !summary.Feasible(available) {
		t.Error("Sales Summary must accept Amount as alternative to Sales")
	}
}

func TestIsCritical(t *testing.T) {
	for _, ct := range AllTypes() {
		if !IsCritical(ct) {
			t.Errorf("type %s expected to be critical for at least one product", ct)
		}
	}
	if IsCritical(Ignore) {
		t.Error("Ignore must never be critical")
	}
}
