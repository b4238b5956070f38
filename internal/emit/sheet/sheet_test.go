package sheet

import "testing"

func TestSheetNameFor_StripsForbiddenChars(t *testing.T) {
	got := sheetNameFor("orders/2024:q1")
	for _, r := range got {
		switch r {
		case '\\', '/', '?', '*', '[', ']', ':':
			t.Fatalf("sheetNameFor(%q) = %q still contains forbidden char %q", "orders/2024:q1", got, r)
		}
	}
}

func TestSheetNameFor_TruncatesToExcelLimit(t *testing.T) {
	long := "this_is_a_very_long_resource_name_that_exceeds_the_excel_sheet_name_limit"
	got := sheetNameFor(long)
	if len(got) > 31 {
		t.Errorf("len(sheetNameFor(long)) = %d, want <= 31", len(got))
	}
}

func TestSheetNameFor_ShortNamePassesThrough(t *testing.T) {
	if got := sheetNameFor("orders"); got != "orders" {
		t.Errorf("sheetNameFor(orders) = %q, want orders", got)
	}
}

func TestNumOrBlank(t *testing.T) {
	if v := numOrBlank(nil); v != "" {
		t.Errorf("numOrBlank(nil) = %v, want empty string", v)
	}
	n := 3.5
	if v := numOrBlank(&n); v != 3.5 {
		t.Errorf("numOrBlank(&3.5) = %v, want 3.5", v)
	}
}
