package sqliteutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		location string
		opts     Options
		want     string
	}{
		{
			name:     "plain path",
			location: "/cache/kdb/history.db",
			opts:     DefaultOptions,
			want:     "file:/cache/kdb/history.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		},
		{
			name:     "existing pragma kept",
			location: "file:/x.db?_pragma=busy_timeout(10)",
			opts:     Options{BusyTimeoutMS: 5000},
			want:     "file:/x.db?_pragma=busy_timeout(10)",
		},
		{
			name:     "memory untouched",
			location: ":memory:",
			opts:     DefaultOptions,
			want:     ":memory:",
		},
		{
			name:     "empty",
			location: "",
			opts:     DefaultOptions,
			want:     "",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(tt.location, tt.opts))
		})
	}
}
