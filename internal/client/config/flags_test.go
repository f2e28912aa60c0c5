package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected Config
		wantErr  bool
	}{
		{
			name: "defaults kept",
			args: nil,
			expected: Config{ServerEndpointAddr: "127.0.0.1:50051", SessionDB: "medkeeper-cli.db",
				RequestTimeout: 10 * time.Second},
		},
		{
			name: "short flags",
			args: []string{"-a", "127.0.0.1:9090", "-k", "s3cret", "-f", "/tmp/s.db", "-t", "30s"},
			expected: Config{ServerEndpointAddr: "127.0.0.1:9090", AdminSecret: "s3cret",
				SessionDB: "/tmp/s.db", RequestTimeout: 30 * time.Second},
		},
		{
			name: "long flags and ignored config",
			args: []string{"--addr=srv:1", "--config", "x.json"},
			expected: Config{ServerEndpointAddr: "srv:1", SessionDB: "medkeeper-cli.db",
				RequestTimeout: 10 * time.Second},
		},
		{name: "bad timeout", args: []string{"-t", "abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()

			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			c.BindFlags(fs)
			err := fs.Parse(tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, c))
		})
	}
}
