package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := `
name: test_scenario
kind: array
replicas: [a, b]
steps:
  - replica: a
    insert: { index: 0, value: widget }
  - replica: b
    sync: { from: a }
  - replica: b
    remove: 0
  - replica: a
    export: {}
expect:
  items: []
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, KindArray, scenario.Kind)
	assert.Equal(t, []string{"a", "b"}, scenario.Replicas)
	require.Len(t, scenario.Steps, 4)
	assert.Equal(t, "insert", scenario.Steps[0].Action())
	assert.Equal(t, "widget", scenario.Steps[0].Insert.Value)
	assert.Equal(t, "a", scenario.Steps[1].Sync.From)
	assert.Equal(t, 0, *scenario.Steps[2].Remove)
	assert.Equal(t, "export", scenario.Steps[3].Action())
	assert.False(t, scenario.Steps[3].Export.Compress)

	// an explicit empty list is a check, not a skip
	require.NotNil(t, scenario.Expect.Items)
	assert.Empty(t, scenario.Expect.Items)
	assert.True(t, scenario.Expect.wantConverged())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
kind: array
replicas: [a]
step:
  - replica: a
    insert: { index: 0, value: x }
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing name",
			doc:  "kind: array\nreplicas: [a]\nsteps:\n  - replica: a\n    remove: 0\n",
			want: "name is required",
		},
		{
			name: "bad kind",
			doc:  "name: x\nkind: text\nreplicas: [a]\nsteps:\n  - replica: a\n    remove: 0\n",
			want: "kind must be",
		},
		{
			name: "no replicas",
			doc:  "name: x\nkind: array\nsteps:\n  - replica: a\n    remove: 0\n",
			want: "replicas list is required",
		},
		{
			name: "duplicate replica",
			doc:  "name: x\nkind: array\nreplicas: [a, a]\nsteps:\n  - replica: a\n    remove: 0\n",
			want: `duplicate replica "a"`,
		},
		{
			name: "no steps",
			doc:  "name: x\nkind: array\nreplicas: [a]\n",
			want: "steps list is required",
		},
		{
			name: "unknown replica",
			doc:  "name: x\nkind: array\nreplicas: [a]\nsteps:\n  - replica: z\n    remove: 0\n",
			want: `step 1: unknown replica "z"`,
		},
		{
			name: "two actions",
			doc:  "name: x\nkind: array\nreplicas: [a]\nsteps:\n  - replica: a\n    remove: 0\n    snapshot: true\n",
			want: "exactly one action",
		},
		{
			name: "no action",
			doc:  "name: x\nkind: array\nreplicas: [a]\nsteps:\n  - replica: a\n",
			want: "exactly one action",
		},
		{
			name: "array action on object",
			doc:  "name: x\nkind: object\nreplicas: [a]\nsteps:\n  - replica: a\n    insert: { index: 0, value: v }\n",
			want: "insert is not an object action",
		},
		{
			name: "set on array",
			doc:  "name: x\nkind: array\nreplicas: [a]\nsteps:\n  - replica: a\n    set: { key: k, value: v }\n",
			want: "set is not an array action",
		},
		{
			name: "sync from self",
			doc:  "name: x\nkind: array\nreplicas: [a]\nsteps:\n  - replica: a\n    sync: { from: a }\n",
			want: "cannot sync from itself",
		},
		{
			name: "sync from unknown",
			doc:  "name: x\nkind: array\nreplicas: [a]\nsteps:\n  - replica: a\n    sync: { from: q }\n",
			want: `unknown sync source "q"`,
		},
		{
			name: "fields on array",
			doc:  "name: x\nkind: array\nreplicas: [a]\nsteps:\n  - replica: a\n    remove: 0\nexpect:\n  fields: { k: v }\n",
			want: "expect.fields is only valid for objects",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
