package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const llmCheckTimeout = 30 * time.Second

func pass(name, detail string) Result { return Result{Name: name, Passed: true, Detail: detail} }

func fail(name, format string, args ...any) Result {
	return Result{Name: name, Detail: fmt.Sprintf(format, args...)}
}

// CheckLLM sends one probe request through llm. A blank key fails without
// touching the network.
func CheckLLM(ctx context.Context, name, apiKey string, llm HealthChecker) Result {
	if strings.TrimSpace(apiKey) == "" {
		return fail(name, "API key missing")
	}
	probeCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()
	if err := llm.HealthCheck(probeCtx); err != nil {
		return fail(name, "%s", describeLLMError(err))
	}
	return pass(name, "API reachable")
}

// CheckDirectoryAccess requires path to be a directory the daemon can list,
// create files in, and traverse.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail(name, "%s does not exist", path)
	case err != nil:
		return fail(name, "%s: %v", path, err)
	case !info.IsDir():
		return fail(name, "%s is not a directory", path)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail(name, "%s is not writable: %v", path, err)
	}
	return pass(name, path+" writable")
}

// CheckFreeSpace compares the space available to unprivileged users on the
// filesystem holding path against minMiB.
func CheckFreeSpace(name, path string, minMiB uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return fail(name, "statfs %s: %v", path, err)
	}
	free := st.Bavail * uint64(st.Bsize) >> 20
	if free < minMiB {
		return fail(name, "%d MiB free, need %d MiB", free, minMiB)
	}
	return pass(name, fmt.Sprintf("%d MiB free", free))
}

func describeLLMError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "health check timed out (LLM API unresponsive)"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "health check timed out (LLM API unreachable)"
	default:
		return err.Error()
	}
}
