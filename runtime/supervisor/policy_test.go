package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name string
		exc  Exception
		want string
	}{
		{
			"high value damaged",
			Exception{DeliveryID: "DEL-1", Status: ExceptionStatus{Status: "failed", Reason: "package damaged in transit"}, OrderValue: 250},
			"damaged_or_lost_high_value",
		},
		{
			"low value damaged",
			Exception{DeliveryID: "DEL-2", Status: ExceptionStatus{Status: "failed", Reason: "package damaged in transit"}, OrderValue: 40},
			"damaged_or_lost",
		},
		{
			"boundary value is not high value",
			Exception{DeliveryID: "DEL-3", Status: ExceptionStatus{Status: "failed", Reason: "package lost"}, OrderValue: 200},
			"damaged_or_lost",
		},
		{
			"theft",
			Exception{DeliveryID: "DEL-4", Status: ExceptionStatus{Status: "failed", Reason: "package stolen from porch"}},
			"loss_or_theft",
		},
		{
			"customer not home",
			Exception{DeliveryID: "DEL-5", Status: ExceptionStatus{Status: "failed", Reason: "customer not home"}},
			"customer_not_home",
		},
		{
			"repeated attempts from driver notes",
			Exception{DeliveryID: "DEL-6", Status: ExceptionStatus{Status: "failed"}, DriverNotes: "third attempt, nobody answers"},
			"repeated_failed_attempts",
		},
		{
			"unmatched falls back",
			Exception{DeliveryID: "DEL-7", Status: ExceptionStatus{Status: "failed", Reason: "address illegible"}},
			"unclassifiable",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, p.Classify(tc.exc))
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - class: cold_chain_breach
    signal: refrigerated goods above temperature
    keywords: ["temperature", "spoiled"]
    strategy: refund and notify
fallback:
  class: manual_review
  signal: anything else
  strategy: escalate to a human
`), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	require.Len(t, p.Rules, 1)
	require.Equal(t, "cold_chain_breach", p.Classify(Exception{
		DeliveryID: "DEL-1",
		Status:     ExceptionStatus{Status: "failed", Reason: "goods spoiled"},
	}))
	require.Equal(t, "manual_review", p.Classify(Exception{
		DeliveryID: "DEL-2",
		Status:     ExceptionStatus{Status: "failed", Reason: "unknown"},
	}))
}

func TestLoadPolicyRejectsEmptyRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o600))
	_, err := LoadPolicy(path)
	require.Error(t, err)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadPolicyDefaultsFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rules:
  - class: anything
    signal: anything
    keywords: ["x"]
    strategy: do something
`), 0o600))
	p, err := LoadPolicy(path)
	require.NoError(t, err)
	require.Equal(t, "unclassifiable", p.Fallback.Class)
}

func TestRenderListsEveryRule(t *testing.T) {
	out := DefaultPolicy().Render()
	require.Contains(t, out, "order value over $200")
	require.Contains(t, out, "anything not matched above")
}
