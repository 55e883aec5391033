package validator

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	Surname string `json:"surname" validate:"required,notblank,max=50"`
	Grade   int    `json:"grade" validate:"gte=0,lte=100"`
}

type testPatch struct {
	Surname *string `json:"surname" validate:"omitempty,notblank,max=50"`
	Grade   *int    `json:"grade" validate:"omitempty,gte=0,lte=100"`
}

func TestValidateStructSuccess(t *testing.T) {
	if err := ValidateStruct(testPayload{Surname: "Ivanov", Grade: 85}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(testPayload{Surname: "   ", Grade: 150})
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d", len(vErrs))
	}

	foundGrade := false
	for _, v := range vErrs {
		if v.Field == "grade" && v.Tag == "lte" {
			foundGrade = true
		}
	}
	if !foundGrade {
		t.Fatal("expected grade field to be present in validation errors")
	}
}

func TestPointerFieldsOnlyValidatedWhenPresent(t *testing.T) {
	if err := ValidateStruct(testPatch{}); err != nil {
		t.Fatalf("expected empty patch to pass, got %v", err)
	}

	zero := 0
	if err := ValidateStruct(testPatch{Grade: &zero}); err != nil {
		t.Fatalf("expected zero grade to pass, got %v", err)
	}

	tooHigh := 101
	if err := ValidateStruct(testPatch{Grade: &tooHigh}); err == nil {
		t.Fatal("expected out of range grade to fail")
	}
}

func TestMessage(t *testing.T) {
	err := ValidateStruct(testPayload{Surname: "Petrov", Grade: 150})
	msg := Message(err)
	if !strings.Contains(msg, "grade must be at most 100") {
		t.Fatalf("unexpected message %q", msg)
	}

	if Message(nil) != "invalid request payload" {
		t.Fatal("expected generic message for non validation errors")
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("rosterd", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "rosterd"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"rosterd"`
	}

	if err := ValidateStruct(custom{Value: "rosterd"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
