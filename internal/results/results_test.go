// ABOUTME: Tests for result decoding and presentation
// ABOUTME: Covers every test kind, the unsupported fallback, lenient shapes and text output

package results

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Sections(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    string
		want    Section
	}{
		{
			name:    "ttest",
			payload: `{"test":"ttest","hypothesis":"A beats B","t_statistic":2.5,"p_value":0.013,"confidence_interval":[0.1,0.9]}`,
			kind:    TestTTest,
			want: Section{
				Title: "T-Test Result",
				Fields: []Field{
					{"Hypothesis", "A beats B"},
					{"T-Statistic", "2.5"},
					{"P-Value", "0.013"},
					{"Confidence Interval", "0.1 - 0.9"},
				},
			},
		},
		{
			name:    "ttest without interval",
			payload: `{"test":"ttest","hypothesis":"h","t_statistic":-1,"p_value":0.5}`,
			kind:    TestTTest,
			want: Section{
				Title: "T-Test Result",
				Fields: []Field{
					{"Hypothesis", "h"},
					{"T-Statistic", "-1"},
					{"P-Value", "0.5"},
				},
			},
		},
		{
			name:    "anova",
			payload: `{"test":"anova","f_statistic":4.2,"p_value":0.02,"groups":[{"name":"a","values":[1,2]},{"name":"b","values":[3.5]}]}`,
			kind:    TestANOVA,
			want: Section{
				Title:  "ANOVA Result",
				Fields: []Field{{"F-Statistic", "4.2"}, {"P-Value", "0.02"}},
				Table: &Table{
					Title:   "Groups",
					Columns: []string{"Group", "Values"},
					Rows:    [][]string{{"a", "1, 2"}, {"b", "3.5"}},
				},
			},
		},
		{
			name:    "linear regression",
			payload: `{"test":"linear_regression","coefficients":[0.5,-2],"intercept":1,"r_squared":0.81}`,
			kind:    TestLinearRegression,
			want: Section{
				Title:  "Linear Regression Result",
				Fields: []Field{{"Intercept", "1"}, {"R²", "0.81"}},
				Table: &Table{
					Title:   "Coefficients",
					Columns: []string{"Term", "Coefficient"},
					Rows:    [][]string{{"X1", "0.5"}, {"X2", "-2"}},
				},
			},
		},
		{
			name:    "logistic regression",
			payload: `{"test":"logistic_regression","coefficients":[1.25],"intercept":-0.3,"accuracy":0.9}`,
			kind:    TestLogisticRegression,
			want: Section{
				Title:  "Logistic Regression Result",
				Fields: []Field{{"Intercept", "-0.3"}, {"Accuracy", "0.9"}},
				Table: &Table{
					Title:   "Coefficients",
					Columns: []string{"Term", "Coefficient"},
					Rows:    [][]string{{"X1", "1.25"}},
				},
			},
		},
		{
			name:    "logical keeps column order",
			payload: `{"test":"logical","truth_table":[{"q":true,"p":false,"p->q":true},{"q":false,"p":true,"p->q":false}]}`,
			kind:    TestLogical,
			want: Section{
				Title: "Logical Test Result",
				Table: &Table{
					Columns: []string{"q", "p", "p->q"},
					Rows:    [][]string{{"true", "false", "true"}, {"false", "true", "false"}},
				},
			},
		},
		{
			name:    "chi2",
			payload: `{"test":"chi2","hypothesis":"independent","test_used":"chi2_contingency","p_value":0.04,"effect_size":0.3,"df":2}`,
			kind:    TestChi2,
			want: Section{
				Title: "Chi-Square Result",
				Fields: []Field{
					{"Hypothesis", "independent"},
					{"P-Value", "0.04"},
					{"Effect Size", "0.3"},
					{"Method", "chi2_contingency"},
					{"Degrees of Freedom", "2"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
			if diff := cmp.Diff(tt.want, v.Section()); diff != "" {
				t.Errorf("Section mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_UnknownTestIsUnsupported(t *testing.T) {
	for _, payload := range []string{
		`{"test":"bayesian","conclusion":"maybe"}`,
		`{"conclusion":"no test field"}`,
		`{"test":42}`,
		`{"test":"regression","plots":"not-a-list"}`,
	} {
		t.Run(payload, func(t *testing.T) {
			v, err := Decode([]byte(payload))
			require.NoError(t, err)
			_, ok := v.(*Unsupported)
			require.True(t, ok, "got %T", v)
			assert.Equal(t, UnsupportedTitle, v.Section().Title)
		})
	}
}

func TestDecode_UnsupportedKeepsOutcome(t *testing.T) {
	v, err := Decode([]byte(`{"test":"bayesian","conclusion":"weak evidence","plots":["a.png"]}`))
	require.NoError(t, err)
	assert.Equal(t, "bayesian", v.Kind())
	assert.Equal(t, "weak evidence", v.Outcome().Conclusion)
	assert.Equal(t, []string{"a.png"}, v.Outcome().Plots)
}

func TestDecode_Errors(t *testing.T) {
	for _, payload := range []string{``, `[]`, `"ttest"`, `{"test":"ttest"`} {
		_, err := Decode([]byte(payload))
		assert.Error(t, err, payload)
	}

	_, err := Decode([]byte(`{"test":"anova","groups":"many"}`))
	assert.Error(t, err, "known test with malformed fields is an error")
}

func TestDecode_MissingNumbersRenderNA(t *testing.T) {
	v, err := Decode([]byte(`{"test":"linear_regression"}`))
	require.NoError(t, err)
	s := v.Section()
	assert.Equal(t, "n/a", s.Fields[0].Value)
	assert.Empty(t, s.Table.Rows)
}

func TestInterval_Nested(t *testing.T) {
	v, err := Decode([]byte(`{"test":"ttest","confidence_interval":[[0.1,0.2],[0.3,0.4]]}`))
	require.NoError(t, err)
	tt := v.(*TTest)
	assert.Equal(t, Interval{0.1, 0.2, 0.3, 0.4}, tt.ConfidenceInterval)
	assert.Equal(t, "0.1 - 0.2 - 0.3 - 0.4", tt.ConfidenceInterval.String())
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.05", formatFloat(0.05))
	assert.Equal(t, "0", formatFloat(0))
	assert.Equal(t, "1e-09", formatFloat(1e-9))
	assert.Equal(t, "123456", formatFloat(123456))
}

func TestWriteText(t *testing.T) {
	v, err := Decode([]byte(`{"test":"anova","f_statistic":4.2,"p_value":0.02,"groups":[{"name":"control","values":[1,2]}]}`))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, v.Section()))

	out := buf.String()
	assert.Contains(t, out, "ANOVA Result\n")
	assert.Contains(t, out, "F-Statistic:")
	assert.Contains(t, out, "4.2")
	assert.Contains(t, out, "Groups")
	assert.Contains(t, out, "control")
	assert.Contains(t, out, "1, 2")
}
