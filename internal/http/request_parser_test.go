package http

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"homepay/internal/core"
	"homepay/internal/settlement"
)

func TestConfirmer(t *testing.T) {
	ctx := context.Background()
	yes, no := true, false

	if ok, err := Confirmer(&yes).Confirm(ctx, "q"); !ok || err != nil {
		t.Errorf("yes = %v, %v", ok, err)
	}
	if ok, err := Confirmer(&no).Confirm(ctx, "q"); ok || err != nil {
		t.Errorf("no = %v, %v", ok, err)
	}
	_, err := Confirmer(nil).Confirm(ctx, "Overwrite April?")
	var pending *pendingConfirmation
	if !errors.As(err, &pending) || pending.question != "Overwrite April?" {
		t.Errorf("unanswered = %v", err)
	}
}

func TestExpenseRequest(t *testing.T) {
	split := false
	tests := []struct {
		name      string
		req       ExpenseRequest
		wantErr   bool
		wantMode  core.RecurrenceMode
		wantSplit bool
		wantPayer core.Payer
	}{
		{
			name:      "defaults",
			req:       ExpenseRequest{Description: " Gym ", Amount: "30"},
			wantMode:  core.CurrentMonthForward,
			wantSplit: true,
		},
		{
			name:      "explicit fields",
			req:       ExpenseRequest{Description: "Rent", Amount: "1200", Mode: "ry", Split: &split, Payer: "2"},
			wantMode:  core.YearFromJanuary,
			wantPayer: core.PayerParty2,
		},
		{
			name:      "empty amount leaves cell alone",
			req:       ExpenseRequest{Description: "Gym"},
			wantMode:  core.CurrentMonthForward,
			wantSplit: true,
		},
		{name: "bad payer", req: ExpenseRequest{Description: "Gym", Payer: "3"}, wantErr: true},
		{name: "bad amount", req: ExpenseRequest{Description: "Gym", Amount: "ten"}, wantErr: true},
		{name: "no description", req: ExpenseRequest{Amount: "10"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := tt.req.Expense()
			if tt.wantErr {
				var ve *core.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expense: %v", err)
			}
			if exp.Mode != tt.wantMode || exp.Split != tt.wantSplit || exp.Payer != tt.wantPayer {
				t.Errorf("expense = %+v", exp)
			}
			if exp.Description != "Gym" && exp.Description != "Rent" {
				t.Errorf("description = %q", exp.Description)
			}
		})
	}
}

func TestSettlementRequest(t *testing.T) {
	got, err := SettlementRequest{Mode: "p", Amount: "40", Current: true}.Settle()
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got.Mode != settlement.PartialAmount || got.Amount.Cell() != "40.00" || !got.Current {
		t.Errorf("request = %+v", got)
	}

	got, err = SettlementRequest{Mode: "carry"}.Settle()
	if err != nil || !got.Amount.IsUnset() {
		t.Errorf("carry = %+v, %v", got, err)
	}

	if _, err := (SettlementRequest{Mode: "full", Month: 13}).Settle(); err == nil {
		t.Error("month 13 accepted")
	}
}

func TestParseDelete(t *testing.T) {
	desc, mode, confirm, err := ParseDelete(url.Values{"description": {"Gym"}, "mode": {"ot"}, "confirm": {"false"}})
	if err != nil {
		t.Fatalf("ParseDelete: %v", err)
	}
	if desc != "Gym" || mode != core.OneTimeCurrentMonth || confirm == nil || *confirm {
		t.Errorf("got %q %q %v", desc, mode, confirm)
	}

	_, mode, confirm, err = ParseDelete(url.Values{"description": {"Gym"}})
	if err != nil || mode != core.CurrentMonthForward || confirm != nil {
		t.Errorf("defaults: %q %v %v", mode, confirm, err)
	}

	if _, _, _, err := ParseDelete(url.Values{}); err == nil {
		t.Error("missing description accepted")
	}
}

func TestParseAssumptions(t *testing.T) {
	as, err := ParseAssumptions(url.Values{"groceries": {"650"}, "misc": {""}})
	if err != nil {
		t.Fatalf("ParseAssumptions: %v", err)
	}
	if as.Groceries.String() != "650" {
		t.Errorf("groceries = %s", as.Groceries)
	}
	if as.Misc.String() != "1000" {
		t.Errorf("misc = %s, want default", as.Misc)
	}

	if _, err := ParseAssumptions(url.Values{"online": {"-1"}}); err == nil {
		t.Error("negative assumption accepted")
	}
}
