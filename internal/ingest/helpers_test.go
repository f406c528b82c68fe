package ingest

import (
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// newTestFS returns an in-memory tree holding files, keyed by slash path.
func newTestFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for p, body := range files {
		require.NoError(t, util.WriteFile(fs, p, []byte(body), 0o644))
	}
	return fs
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func header(title string, fields ...string) string {
	out := "@graph\n  @title " + title + "\n"
	for i := 0; i+1 < len(fields); i += 2 {
		out += "  @" + fields[i] + " " + fields[i+1] + "\n"
	}
	return out
}
