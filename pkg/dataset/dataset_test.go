package dataset

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/forestplot/pkg/errors"
)

func sample() *Dataset {
	return MustNew(
		CategoricalColumn("SEX", []string{"F", "M", "F", "", "M"}),
		NumericColumn("AGE", []float64{34, 51, math.NaN(), 62, 45}),
	)
}

func TestNewRejectsLengthMismatch(t *testing.T) {
	_, err := New(
		NumericColumn("A", []float64{1, 2}),
		NumericColumn("B", []float64{1}),
	)
	if err == nil {
		t.Fatal("expected error for mismatched column lengths")
	}
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New(
		NumericColumn("A", []float64{1}),
		NumericColumn("A", []float64{2}),
	)
	if err == nil {
		t.Fatal("expected error for duplicate column")
	}
}

func TestLevelsKeepFirstAppearanceOrder(t *testing.T) {
	d := MustNew(CategoricalColumn("ARM", []string{"B", "A", "B", "C", "A"}))
	got, err := d.Levels("ARM")
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	if want := []string{"B", "A", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Levels = %v, want %v", got, want)
	}
}

func TestWhereAndSubset(t *testing.T) {
	d := sample()
	idx, err := d.Where("SEX", "F")
	if err != nil {
		t.Fatalf("Where: %v", err)
	}
	if want := []int{0, 2}; !reflect.DeepEqual(idx, want) {
		t.Errorf("Where = %v, want %v", idx, want)
	}

	sub := d.Subset(idx)
	if sub.NumRows() != 2 {
		t.Errorf("NumRows = %d, want 2", sub.NumRows())
	}
	age, _ := sub.Numeric("AGE")
	if age[0] != 34 || !math.IsNaN(age[1]) {
		t.Errorf("AGE = %v", age)
	}
}

func TestEmptySubset(t *testing.T) {
	sub := sample().Subset(nil)
	if sub.NumRows() != 0 {
		t.Errorf("NumRows = %d, want 0", sub.NumRows())
	}
	if !sub.Has("AGE") {
		t.Error("empty subset should keep columns")
	}
}

func TestCompleteCases(t *testing.T) {
	idx, err := sample().CompleteCases("SEX", "AGE")
	if err != nil {
		t.Fatalf("CompleteCases: %v", err)
	}
	if want := []int{0, 1, 4}; !reflect.DeepEqual(idx, want) {
		t.Errorf("CompleteCases = %v, want %v", idx, want)
	}
}

func TestUnknownColumnIsConfigurationError(t *testing.T) {
	_, err := sample().Numeric("BMI")
	if !errors.IsConfiguration(err) {
		t.Errorf("Numeric(unknown) error = %v, want CONFIGURATION", err)
	}
	_, err = sample().Numeric("SEX")
	if !errors.IsConfiguration(err) {
		t.Errorf("Numeric(categorical) error = %v, want CONFIGURATION", err)
	}
}

func TestReadCSVInfersKinds(t *testing.T) {
	in := "ID,AGE,SEX,RSP\n1,34,F,1\n2,NA,M,0\n3,51,,1\n"
	d, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if d.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", d.NumRows())
	}
	age, err := d.Numeric("AGE")
	if err != nil {
		t.Fatalf("AGE should be numeric: %v", err)
	}
	if !math.IsNaN(age[1]) {
		t.Errorf("AGE[1] = %v, want NaN", age[1])
	}
	c, _ := d.Column("SEX")
	if c.Kind != Categorical {
		t.Errorf("SEX kind = %v, want categorical", c.Kind)
	}
	if !c.IsMissing(2) {
		t.Error("SEX[2] should be missing")
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, d); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "ID,AGE,SEX,RSP\n1,34,F,1\n2,NA,M,0\n") {
		t.Errorf("WriteCSV = %q", buf.String())
	}
}

func TestFromRecords(t *testing.T) {
	records := []map[string]any{
		{"AGE": 30.0, "SEX": "F", "RSP": true},
		{"AGE": nil, "SEX": "M", "RSP": false},
	}
	d, err := FromRecords(records, nil)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	if got := d.Names(); !reflect.DeepEqual(got, []string{"AGE", "RSP", "SEX"}) {
		t.Errorf("Names = %v", got)
	}
	rsp, _ := d.Numeric("RSP")
	if rsp[0] != 1 || rsp[1] != 0 {
		t.Errorf("RSP = %v, want [1 0]", rsp)
	}
}

func TestWithLabels(t *testing.T) {
	d := sample().WithLabels(map[string]string{"AGE": "Age (years)"})
	if got := d.Label("AGE"); got != "Age (years)" {
		t.Errorf("Label = %q", got)
	}
	if got := d.Label("SEX"); got != "SEX" {
		t.Errorf("Label = %q, want SEX", got)
	}
}
