package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "tagged",
			info: Info{Version: "v0.4.0", CommitHash: "0123456789abcdef", BuildTime: "2024-05-01"},
			want: "bindgen v0.4.0 (commit 0123456, built 2024-05-01)",
		},
		{
			name: "dev",
			info: Info{Version: "dev", CommitHash: "abc", BuildTime: "unknown"},
			want: "bindgen dev (commit abc, built unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.GoVersion)
	assert.Equal(t, PayloadVersion, info.PayloadVersion)
}
