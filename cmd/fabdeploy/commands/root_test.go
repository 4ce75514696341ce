package commands

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xidis/fabdeploy/pkg/config"
	"github.com/xidis/fabdeploy/pkg/engine"
	"github.com/xidis/fabdeploy/pkg/store"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", &config.Error{Field: "raid.level", Msg: "bad"}, ExitConfig},
		{"dependency", engine.NewDependencyError("storage_export", "precheck", "node/node-a"), ExitDependency},
		{"apply", engine.NewApplyError("reexport", 1), ExitApply},
		{"timeout", engine.NewTimeoutError("connect", errors.New("deadline")), ExitApply},
		{"store", &store.Error{Op: "put", Err: errors.New("disk full")}, ExitStateStore},
		{"wrapped store", fmt.Errorf("run: %w", &store.Error{Op: "get", Err: errors.New("io")}), ExitStateStore},
		{"other", errors.New("unexpected"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
