package conf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationJSONRoundTrip(t *testing.T) {
	d := Duration(90 * time.Second)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))

	var parsed Duration
	require.NoError(t, json.Unmarshal(b, &parsed))
	assert.Equal(t, d, parsed)
}

func TestDurationUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Duration
		wantErr bool
	}{
		{"seconds", `"30s"`, Duration(30 * time.Second), false},
		{"minutes", `"5m"`, Duration(5 * time.Minute), false},
		{"null resets", `null`, 0, false},
		{"garbage string", `"soon"`, 0, true},
		{"number rejected", `30`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDurationYAML(t *testing.T) {
	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte(`"2m"`), &d))
	assert.Equal(t, Duration(2*time.Minute), d)

	out, err := yaml.Marshal(Duration(45 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "45s\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte(`"whenever"`), &d))
}
