package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Type
		wantErr bool
	}{
		{name: "postgres", input: "postgres", want: TypePostgres},
		{name: "uppercase is normalized", input: "SQLITE", want: TypeSQLite},
		{name: "surrounding whitespace", input: "  redis ", want: TypeRedis},
		{name: "mem0 sidecar", input: "mem0_http", want: TypeMem0HTTP},
		{name: "in-process", input: "memory", want: TypeMemory},
		{name: "unknown", input: "dynamodb", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Name:         "primary",
		ProviderType: TypeMemory,
		Priority:     10,
		Enabled:      true,
	}
	require.NoError(t, valid.Validate())

	noName := valid
	noName.Name = ""
	assert.Error(t, noName.Validate())

	badType := valid
	badType.ProviderType = "carrier-pigeon"
	assert.Error(t, badType.Validate())

	negPriority := valid
	negPriority.Priority = -1
	assert.Error(t, negPriority.Validate())
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Name: "primary", ProviderType: TypeMemory}.WithDefaults()

	assert.Equal(t, 30*time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.RetryAttempts)

	tuned := Config{
		Name:                "tuned",
		ProviderType:        TypeMemory,
		HealthCheckInterval: time.Minute,
		Timeout:             time.Second,
		RetryAttempts:       1,
	}.WithDefaults()

	assert.Equal(t, time.Minute, tuned.HealthCheckInterval)
	assert.Equal(t, time.Second, tuned.Timeout)
	assert.Equal(t, 1, tuned.RetryAttempts)
}
