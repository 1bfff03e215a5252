package document

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/unityscope/pkg/logger"
	"github.com/jingkaihe/unityscope/pkg/unityerr"
)

const (
	lockRetryDelay  = 25 * time.Millisecond
	lockRetryJitter = 25 * time.Millisecond
)

var lockTimeout = 10 * time.Second

// pathLocks serializes saves to the same file within the process; the lock
// file below extends that to other processes.
var pathLocks sync.Map

func lockInProcess(key string) func() {
	m, _ := pathLocks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func jitteredDelay() time.Duration {
	return lockRetryDelay + time.Duration(rand.Int63n(int64(lockRetryJitter)))
}

// fileLock is an exclusive <document>.lock file holding the owner's PID.
type fileLock struct {
	path string
	file *os.File
}

func acquireFileLock(ctx context.Context, documentPath string) (*fileLock, error) {
	lockPath := documentPath + ".lock"
	deadline := time.Now().Add(lockTimeout)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			return &fileLock{path: lockPath, file: f}, nil
		}
		if !os.IsExist(err) {
			return nil, unityerr.IO(lockPath, errors.Wrap(err, "failed to create lock file"))
		}
		if time.Now().After(deadline) {
			return nil, unityerr.IO(lockPath, errors.Errorf("timed out after %s waiting for lock held by %s; remove the lock file if that process is gone", lockTimeout, lockOwner(lockPath)))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jitteredDelay()):
		}
	}
}

// lockOwner describes the process recorded in an existing lock file.
func lockOwner(lockPath string) string {
	content, err := os.ReadFile(lockPath)
	if err != nil {
		return "an unknown process"
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return "an unknown process"
	}
	return fmt.Sprintf("pid %d", pid)
}

func (l *fileLock) release(ctx context.Context) {
	if l.file != nil {
		l.file.Close()
	}
	if err := os.Remove(l.path); err != nil {
		logger.G(ctx).WithError(err).WithField("lock", l.path).Warn("failed to release document lock")
	}
}

// lockDocument holds both the in-process and the cross-process lock for path
// until the returned function is called.
func lockDocument(ctx context.Context, path string) (func(), error) {
	unlock := lockInProcess(path)
	lock, err := acquireFileLock(ctx, path)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		lock.release(ctx)
		unlock()
	}, nil
}
