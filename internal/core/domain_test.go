package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2024-02-29" || d.MonthKey() != "2024-02" {
		t.Fatalf("unexpected date %q month %q", d.String(), d.MonthKey())
	}
	for _, bad := range []string{"", "2024-13-01", "01/02/2024", "2023-02-29"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:     NewDate(2025, 1, 1),
		Amount:   MustMoney("10"),
		Note:     "ok",
		Category: "Food",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Date: Date{}, Amount: MustMoney("1"), Category: "c"},
		{Date: NewDate(2025, 1, 1), Category: "c"},
		{Date: NewDate(2025, 1, 1), Amount: MustMoney("1"), Category: " "},
		{Date: NewDate(2025, 1, 1), Amount: MustMoney("1"), Category: "c", Note: strings.Repeat("x", 201)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseJSON(t *testing.T) {
	e := Expense{ID: 1, Amount: MustMoney("10.50"), Date: NewDate(2024, 1, 1), Category: "Food"}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":1,"amount":10.5,"date":"2024-01-01","note":"","category":"Food"}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}

	var decoded Expense
	in := `{"id":7,"amount":"12,25","date":"2024-03-05","note":"n","category":"Bills","created_by":"me"}`
	if err := json.Unmarshal([]byte(in), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != 7 || !decoded.Amount.Equal(MustMoney("12.25").Decimal) || decoded.Date.String() != "2024-03-05" || decoded.CreatedBy != "me" {
		t.Fatalf("unexpected decode: %+v", decoded)
	}
}

func TestFormDraftValidate(t *testing.T) {
	cases := []struct {
		name  string
		draft FormDraft
		ok    bool
	}{
		{"complete", FormDraft{Amount: "10", Date: "2024-01-01", Category: "Food"}, true},
		{"note and creator optional", FormDraft{Amount: "x", Date: "y", Category: "z"}, true},
		{"missing amount", FormDraft{Date: "2024-01-01", Category: "Food"}, false},
		{"missing date", FormDraft{Amount: "10", Category: "Food"}, false},
		{"missing category", FormDraft{Amount: "10", Date: "2024-01-01"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.draft.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrMissingField) {
				t.Fatalf("expected ErrMissingField, got %v", err)
			}
		})
	}
}

func TestEditDraftUpdateDropsCategory(t *testing.T) {
	e := Expense{ID: 3, Amount: MustMoney("4.20"), Date: NewDate(2024, 5, 6), Note: "lunch", Category: "Food"}
	d := e.Draft()
	if d.Category != "Food" || d.Amount != "4.2" || d.Date != "2024-05-06" {
		t.Fatalf("unexpected draft %+v", d)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("expected valid draft, got %v", err)
	}

	b, err := json.Marshal(d.Update())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "category") {
		t.Fatalf("update payload must not carry category: %s", b)
	}

	d.Amount = ""
	if err := d.Validate(); !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestFilterCriteriaIsEmpty(t *testing.T) {
	if !(FilterCriteria{}).IsEmpty() {
		t.Fatal("zero criteria should be empty")
	}
	if (FilterCriteria{EndDate: "2024-01-31"}).IsEmpty() {
		t.Fatal("criteria with end date should not be empty")
	}
}
