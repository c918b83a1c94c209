package validate_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/puzzlekit/foundation/validate"
	"github.com/davecgh/go-spew/spew"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type send struct {
	From       string `json:"from" validate:"required"`
	PuzzleHash string `json:"puzzle_hash" validate:"required,bytes32"`
	Amount     uint64 `json:"amount" validate:"gt=0"`
}

func TestCheck(t *testing.T) {
	const ph = "0x0101010101010101010101010101010101010101010101010101010101010101"

	type test struct {
		name   string
		val    send
		fields []string
	}

	tt := []test{
		{name: "valid", val: send{From: "bill", PuzzleHash: ph, Amount: 1}},
		{name: "missing from", val: send{PuzzleHash: ph, Amount: 1}, fields: []string{"from"}},
		{name: "short hash", val: send{From: "bill", PuzzleHash: "0x01", Amount: 1}, fields: []string{"puzzle_hash"}},
		{name: "zero amount", val: send{From: "bill", PuzzleHash: ph}, fields: []string{"amount"}},
	}

	t.Log("Given the need to validate request models.")
	{
		for testID, test := range tt {
			t.Logf("\tTest %d:\tWhen checking a %s model.", testID, test.name)
			{
				err := validate.Check(test.val)

				if test.fields == nil {
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould pass validation: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould pass validation.", success, testID)
					continue
				}

				if !validate.IsFieldErrors(err) {
					t.Fatalf("\t%s\tTest %d:\tShould fail with field errors: %v", failed, testID, err)
				}

				fields := validate.GetFieldErrors(err).Fields()
				for _, f := range test.fields {
					if _, exists := fields[f]; !exists {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, spew.Sdump(fields))
						t.Fatalf("\t%s\tTest %d:\tShould report the %s field.", failed, testID, f)
					}
				}
				t.Logf("\t%s\tTest %d:\tShould report the failing fields.", success, testID)
			}
		}

		if validate.IsFieldErrors(errors.New("plain")) {
			t.Fatalf("\t%s\tShould not treat a plain error as field errors.", failed)
		}
		t.Logf("\t%s\tShould not treat a plain error as field errors.", success)
	}
}
