// ABOUTME: Typed experiment result views keyed by the "test" discriminator
// ABOUTME: Decode never fails on an unknown test; it yields an Unsupported view instead

package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Test kinds understood by Decode.
const (
	TestTTest              = "ttest"
	TestANOVA              = "anova"
	TestLinearRegression   = "linear_regression"
	TestLogisticRegression = "logistic_regression"
	TestLogical            = "logical"
	TestChi2               = "chi2"
)

// UnsupportedTitle is shown for results whose test kind has no view.
const UnsupportedTitle = "Unsupported test type"

// ErrNotObject is returned when a payload is not a JSON object.
var ErrNotObject = errors.New("result payload must be a JSON object")

// Field is one labelled value.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Table is a rectangular grid of already formatted cells.
type Table struct {
	Title   string     `json:"title,omitempty"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Section is the presentation of one result.
type Section struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields,omitempty"`
	Table  *Table  `json:"table,omitempty"`
}

// Common holds the fields every backend result may carry.
type Common struct {
	Test       string   `json:"test"`
	Conclusion string   `json:"conclusion,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Plots      []string `json:"plots,omitempty"`
}

// Outcome returns the shared fields.
func (c Common) Outcome() Common { return c }

// View is a decoded result.
type View interface {
	// Kind is the test discriminator as sent by the backend.
	Kind() string
	Section() Section
	Outcome() Common
}

// Decode picks the view for payload's "test" field.
func Decode(payload []byte) (View, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}

	var probe struct {
		Test json.RawMessage `json:"test"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	var test string
	_ = json.Unmarshal(probe.Test, &test)

	var v View
	switch test {
	case TestTTest:
		v = &TTest{}
	case TestANOVA:
		v = &ANOVA{}
	case TestLinearRegression:
		v = &LinearRegression{}
	case TestLogisticRegression:
		v = &LogisticRegression{}
	case TestLogical:
		v = &Logical{}
	case TestChi2:
		v = &Chi2{}
	default:
		u := &Unsupported{}
		// Best effort: an unknown shape still yields a view.
		_ = json.Unmarshal(trimmed, &u.Common)
		u.Test = test
		return u, nil
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", test, err)
	}
	return v, nil
}

// TTest is a two-sample t-test.
type TTest struct {
	Common
	Hypothesis         string   `json:"hypothesis"`
	TStatistic         *float64 `json:"t_statistic"`
	PValue             *float64 `json:"p_value"`
	ConfidenceInterval Interval `json:"confidence_interval"`
}

func (r *TTest) Kind() string { return TestTTest }

func (r *TTest) Section() Section {
	s := Section{
		Title: "T-Test Result",
		Fields: []Field{
			{"Hypothesis", r.Hypothesis},
			{"T-Statistic", formatOptional(r.TStatistic)},
			{"P-Value", formatOptional(r.PValue)},
		},
	}
	if len(r.ConfidenceInterval) > 0 {
		s.Fields = append(s.Fields, Field{"Confidence Interval", r.ConfidenceInterval.String()})
	}
	return s
}

// Group is one ANOVA sample.
type Group struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// ANOVA is a one-way analysis of variance.
type ANOVA struct {
	Common
	FStatistic *float64 `json:"f_statistic"`
	PValue     *float64 `json:"p_value"`
	Groups     []Group  `json:"groups"`
}

func (r *ANOVA) Kind() string { return TestANOVA }

func (r *ANOVA) Section() Section {
	t := &Table{Title: "Groups", Columns: []string{"Group", "Values"}}
	for _, g := range r.Groups {
		t.Rows = append(t.Rows, []string{g.Name, joinFloats(g.Values, ", ")})
	}
	return Section{
		Title: "ANOVA Result",
		Fields: []Field{
			{"F-Statistic", formatOptional(r.FStatistic)},
			{"P-Value", formatOptional(r.PValue)},
		},
		Table: t,
	}
}

// LinearRegression is an ordinary least squares fit.
type LinearRegression struct {
	Common
	Coefficients []float64 `json:"coefficients"`
	Intercept    *float64  `json:"intercept"`
	RSquared     *float64  `json:"r_squared"`
}

func (r *LinearRegression) Kind() string { return TestLinearRegression }

func (r *LinearRegression) Section() Section {
	return Section{
		Title: "Linear Regression Result",
		Fields: []Field{
			{"Intercept", formatOptional(r.Intercept)},
			{"R²", formatOptional(r.RSquared)},
		},
		Table: coefficientTable(r.Coefficients),
	}
}

// LogisticRegression is a binary logistic fit.
type LogisticRegression struct {
	Common
	Coefficients []float64 `json:"coefficients"`
	Intercept    *float64  `json:"intercept"`
	Accuracy     *float64  `json:"accuracy"`
}

func (r *LogisticRegression) Kind() string { return TestLogisticRegression }

func (r *LogisticRegression) Section() Section {
	return Section{
		Title: "Logistic Regression Result",
		Fields: []Field{
			{"Intercept", formatOptional(r.Intercept)},
			{"Accuracy", formatOptional(r.Accuracy)},
		},
		Table: coefficientTable(r.Coefficients),
	}
}

func coefficientTable(coefs []float64) *Table {
	t := &Table{Title: "Coefficients", Columns: []string{"Term", "Coefficient"}}
	for i, c := range coefs {
		t.Rows = append(t.Rows, []string{"X" + strconv.Itoa(i+1), formatFloat(c)})
	}
	return t
}

// Logical is a truth-table evaluation of a propositional claim.
type Logical struct {
	Common
	TruthTable TruthTable `json:"truth_table"`
}

func (r *Logical) Kind() string { return TestLogical }

func (r *Logical) Section() Section {
	return Section{
		Title: "Logical Test Result",
		Table: &Table{Columns: r.TruthTable.Columns, Rows: r.TruthTable.Rows},
	}
}

// Chi2 is a chi-square test, rendered from the generic statistical fields.
type Chi2 struct {
	Common
	Hypothesis string          `json:"hypothesis"`
	TestUsed   string          `json:"test_used"`
	PValue     *float64        `json:"p_value"`
	EffectSize *float64        `json:"effect_size"`
	DF         json.RawMessage `json:"df"`
}

func (r *Chi2) Kind() string { return TestChi2 }

func (r *Chi2) Section() Section {
	s := Section{
		Title: "Chi-Square Result",
		Fields: []Field{
			{"Hypothesis", r.Hypothesis},
			{"P-Value", formatOptional(r.PValue)},
			{"Effect Size", formatOptional(r.EffectSize)},
		},
	}
	if r.TestUsed != "" {
		s.Fields = append(s.Fields, Field{"Method", r.TestUsed})
	}
	if len(r.DF) > 0 && string(r.DF) != "null" {
		s.Fields = append(s.Fields, Field{"Degrees of Freedom", string(bytes.TrimSpace(r.DF))})
	}
	return s
}

// Unsupported is any result whose test kind has no dedicated view.
type Unsupported struct {
	Common
}

func (r *Unsupported) Kind() string { return r.Test }

func (r *Unsupported) Section() Section {
	return Section{Title: UnsupportedTitle}
}
