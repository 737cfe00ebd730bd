package errors

import (
	"math"
	"testing"
)

func TestValidateVariableName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "AGE", false},
		{"valid with dot", "BMRKR1.log", false},
		{"valid with space inside", "Baseline ECOG", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
		{"leading space", " AGE", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVariableName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVariableName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateVariableNamesDuplicate(t *testing.T) {
	if err := ValidateVariableNames([]string{"AGE", "SEX"}); err != nil {
		t.Errorf("distinct names should pass: %v", err)
	}
	if err := ValidateVariableNames([]string{"AGE", "AGE"}); err == nil {
		t.Error("duplicate names should fail")
	}
}

func TestValidateConfLevel(t *testing.T) {
	tests := []struct {
		level   float64
		wantErr bool
	}{
		{0.95, false},
		{0.5, false},
		{0, true},
		{1, true},
		{-0.1, true},
		{math.NaN(), true},
	}

	for _, tt := range tests {
		err := ValidateConfLevel(tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateConfLevel(%v) error = %v, wantErr %v", tt.level, err, tt.wantErr)
		}
		if err != nil && !IsConfiguration(err) {
			t.Errorf("ValidateConfLevel(%v) code = %v, want %v", tt.level, GetCode(err), ErrCodeConfiguration)
		}
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid file", "forest.svg", false},
		{"valid nested", "out/forest.svg", false},
		{"empty", "", true},
		{"traversal", "../forest.svg", true},
		{"control", "fo\x01rest.svg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
