package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"pressroom/internal/config"
	"pressroom/internal/services/llm"
	"pressroom/internal/services/wordpress"
)

// MinFreeBytes is the free space below which a writable directory fails.
const MinFreeBytes = 64 << 20

// probe runs fn once under timeout and folds its error into a Result.
func probe(ctx context.Context, name string, timeout time.Duration, okDetail string, fn func(context.Context) error) Result {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := fn(probeCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: okDetail}
}

// CheckLLM sends one JSON ping without retries.
func CheckLLM(ctx context.Context, cfg config.LLM) Result {
	const name = "LLM"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "api key missing"}
	}
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithRetryMaxAttempts(1))
	return probe(ctx, name, 30*time.Second, "model "+client.Model()+" answered", client.HealthCheck)
}

// CheckPublisher lists one post with the configured application password.
func CheckPublisher(ctx context.Context, cfg config.Publisher) Result {
	const name = "Publisher"
	switch {
	case strings.TrimSpace(cfg.BaseURL) == "":
		return Result{Name: name, Detail: "site url missing"}
	case strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.AppPassword) == "":
		return Result{Name: name, Detail: "credentials missing"}
	}
	client := wordpress.NewClient(wordpress.Config{
		BaseURL:        cfg.BaseURL,
		Username:       cfg.Username,
		AppPassword:    cfg.AppPassword,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, wordpress.WithRetryBackoff(1, 0, 0))
	return probe(ctx, name, 10*time.Second, "authenticated", client.CheckConnection)
}

// CheckDirectoryAccess requires an existing directory the daemon can read,
// write and traverse, with at least MinFreeBytes available.
func CheckDirectoryAccess(name, path string) Result {
	fail := func(format string, args ...any) Result {
		return Result{Name: name, Detail: path + ": " + fmt.Sprintf(format, args...)}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fail("does not exist")
	case err != nil:
		return fail("stat: %v", err)
	case !info.IsDir():
		return fail("not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail("insufficient permissions: %v", err)
	}
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return fail("statfs: %v", err)
	}
	free := fs.Bavail * uint64(fs.Bsize)
	if free < MinFreeBytes {
		return fail("only %d MiB free", free>>20)
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MiB free)", path, free>>20)}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (service unreachable)"
	}
	return err.Error()
}
