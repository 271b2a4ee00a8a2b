package validation

import (
	"encoding/json"
	"fmt"
	"upwatch/internals/modules/monitor"
	"upwatch/internals/modules/probe"
	"upwatch/pkg/jsonpath"
)

const defaultExpectedStatus = 200

type Result struct {
	Passed   bool
	Failures []string
}

// Evaluate checks a probe outcome against the monitor's rule set. It
// never returns an error: every failure mode becomes a reason in the
// result items.
func Evaluate(out probe.Outcome, rules monitor.ValidationRules) Result {
	var failures []string

	expected := rules.StatusCode
	if expected == 0 {
		expected = defaultExpectedStatus
	}

	if !out.Succeeded {
		failures = append(failures, fmt.Sprintf("probe failed: %s", out.ErrorKind))
	} else if out.HTTPStatus != expected {
		failures = append(failures, fmt.Sprintf("expected status %d, got %d", expected, out.HTTPStatus))
	}

	needsBody := len(rules.RequiredKeys) > 0 || rules.CustomCheck != ""
	if !needsBody {
		return Result{Passed: len(failures) == 0, Failures: failures}
	}

	doc, parseErr := parseBody(out)
	if parseErr != "" {
		// body rules cannot be evaluated; record one reason per
		// configured rule rather than silently passing them
		for _, key := range rules.RequiredKeys {
			failures = append(failures, fmt.Sprintf("required key %q could not be checked: %s", key, parseErr))
		}
		if rules.CustomCheck != "" {
			failures = append(failures, fmt.Sprintf("custom check could not be evaluated: %s", parseErr))
		}
		return Result{Passed: false, Failures: failures}
	}

	for _, key := range rules.RequiredKeys {
		value, ok := jsonpath.Lookup(doc, key)
		if !ok || value == nil {
			failures = append(failures, fmt.Sprintf("required key %q is missing or null", key))
		}
	}

	if rules.CustomCheck != "" {
		ok, err := evalExpr(rules.CustomCheck, doc)
		if err != nil {
			failures = append(failures, fmt.Sprintf("custom check error: %v", err))
		} else if !ok {
			failures = append(failures, fmt.Sprintf("custom check failed: %s", rules.CustomCheck))
		}
	}

	return Result{Passed: len(failures) == 0, Failures: failures}
}

// parseBody returns the parsed JSON document, or a short reason why the
// body rules cannot run against this outcome.
func parseBody(out probe.Outcome) (any, string) {
	if !out.Succeeded {
		return nil, "probe did not return a response"
	}
	if out.HTTPStatus < 200 || out.HTTPStatus > 299 {
		return nil, fmt.Sprintf("response status %d", out.HTTPStatus)
	}

	var doc any
	if err := json.Unmarshal([]byte(out.Body), &doc); err != nil {
		return nil, "response body is not valid JSON"
	}
	return doc, ""
}
