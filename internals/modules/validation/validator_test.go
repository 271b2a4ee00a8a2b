package validation

import (
	"testing"
	"time"
	"upwatch/internals/modules/monitor"
	"upwatch/internals/modules/probe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okOutcome(status int, body string) probe.Outcome {
	return probe.Outcome{
		Succeeded:  true,
		HTTPStatus: status,
		LatencyMs:  12,
		Body:       body,
		CheckedAt:  time.Now(),
	}
}

func TestEvaluateDefaultStatus(t *testing.T) {
	res := Evaluate(okOutcome(200, ""), monitor.ValidationRules{})
	assert.True(t, res.Passed)
	assert.Empty(t, res.Failures)

	res = Evaluate(okOutcome(500, ""), monitor.ValidationRules{})
	require.False(t, res.Passed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "expected status 200, got 500")
}

func TestEvaluateExplicitStatus(t *testing.T) {
	rules := monitor.ValidationRules{StatusCode: 204}

	res := Evaluate(okOutcome(204, ""), rules)
	assert.True(t, res.Passed)

	res = Evaluate(okOutcome(200, ""), rules)
	assert.False(t, res.Passed)
}

func TestEvaluateProbeFailure(t *testing.T) {
	out := probe.Outcome{
		Succeeded:    false,
		ErrorKind:    probe.ErrKindTimeout,
		ErrorMessage: "context deadline exceeded",
	}

	res := Evaluate(out, monitor.ValidationRules{})
	require.False(t, res.Passed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "probe failed: timeout")
}

func TestEvaluateRequiredKeys(t *testing.T) {
	rules := monitor.ValidationRules{RequiredKeys: []string{"data.status"}}

	res := Evaluate(okOutcome(200, `{"data":{"status":"ok"}}`), rules)
	assert.True(t, res.Passed)

	res = Evaluate(okOutcome(200, `{"data":{}}`), rules)
	require.False(t, res.Passed)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], `"data.status"`)
}

func TestEvaluateRequiredKeyNullCountsAsMissing(t *testing.T) {
	rules := monitor.ValidationRules{RequiredKeys: []string{"data.status"}}

	res := Evaluate(okOutcome(200, `{"data":{"status":null}}`), rules)
	require.False(t, res.Passed)
	assert.Contains(t, res.Failures[0], "missing or null")
}

func TestEvaluateRequiredKeyIndexesArrays(t *testing.T) {
	rules := monitor.ValidationRules{RequiredKeys: []string{"items.1.id"}}

	res := Evaluate(okOutcome(200, `{"items":[{"id":1},{"id":2}]}`), rules)
	assert.True(t, res.Passed)

	res = Evaluate(okOutcome(200, `{"items":[{"id":1}]}`), rules)
	assert.False(t, res.Passed)
}

func TestEvaluateBodyNotJSON(t *testing.T) {
	rules := monitor.ValidationRules{
		RequiredKeys: []string{"a", "b"},
		CustomCheck:  "a == 1",
	}

	res := Evaluate(okOutcome(200, "<html>hi</html>"), rules)
	require.False(t, res.Passed)
	// one reason per rule that could not run
	require.Len(t, res.Failures, 3)
	for _, f := range res.Failures {
		assert.Contains(t, f, "not valid JSON")
	}
}

func TestEvaluateBodyRulesSkippedOnProbeFailure(t *testing.T) {
	rules := monitor.ValidationRules{RequiredKeys: []string{"data"}}
	out := probe.Outcome{Succeeded: false, ErrorKind: probe.ErrKindNetwork}

	res := Evaluate(out, rules)
	require.False(t, res.Passed)
	require.Len(t, res.Failures, 2)
	assert.Contains(t, res.Failures[0], "probe failed")
	assert.Contains(t, res.Failures[1], "could not be checked")
}

func TestEvaluateCustomCheck(t *testing.T) {
	body := `{"data":{"count":5,"status":"ok","items":[1,2,3]}}`

	cases := []struct {
		expr   string
		passed bool
	}{
		{"data.count == 5", true},
		{"data.count > 10", false},
		{"data.status == 'ok'", true},
		{`data.status != "ok"`, false},
		{"len(data.items) >= 3", true},
		{"len(data.items) < 3", false},
		{"data.count <= 5", true},
	}

	for _, tc := range cases {
		res := Evaluate(okOutcome(200, body), monitor.ValidationRules{CustomCheck: tc.expr})
		assert.Equal(t, tc.passed, res.Passed, "expr %q", tc.expr)
		if !tc.passed {
			require.Len(t, res.Failures, 1)
			assert.Contains(t, res.Failures[0], tc.expr)
		}
	}
}

func TestEvaluateCustomCheckErrors(t *testing.T) {
	body := `{"data":{"count":5}}`

	cases := []string{
		"data.count",           // no operator
		"data.missing == 1",    // unknown path
		"data.count == 'five'", // type mismatch
		"len(data.count) > 0",  // len of a number
	}

	for _, expr := range cases {
		res := Evaluate(okOutcome(200, body), monitor.ValidationRules{CustomCheck: expr})
		require.False(t, res.Passed, "expr %q", expr)
		require.Len(t, res.Failures, 1)
		assert.Contains(t, res.Failures[0], "custom check error", "expr %q", expr)
	}
}

func TestEvaluateCollectsAllFailures(t *testing.T) {
	rules := monitor.ValidationRules{
		StatusCode:   200,
		RequiredKeys: []string{"a", "b"},
		CustomCheck:  "c == 1",
	}

	res := Evaluate(okOutcome(200, `{"c":2}`), rules)
	require.False(t, res.Passed)
	assert.Len(t, res.Failures, 3)
}
