// Package instance makes sure only one client process per user does
// catalog and install work. The arbiter is an exclusive advisory lock
// on a file in the config directory; the file's contents (pid and IPC
// endpoint address) are informational. Secondary invocations forward
// their command-line argument to the primary over the endpoint and
// exit.
package instance

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"dropsclient/internal/logging"
)

// Role is the outcome of lock acquisition.
type Role int

const (
	RolePrimary Role = iota
	RoleForwarding
)

const dialTimeout = 2 * time.Second

// Coordinator owns the lock file and, for the primary, the one-shot
// IPC endpoint.
type Coordinator struct {
	LockPath string

	mu       sync.Mutex
	lockFile *os.File
	listener net.Listener
	args     chan string
	done     chan struct{}
	closed   sync.Once
	logger   *logging.Logger
}

// New builds a coordinator rooted at the given config directory.
func New(configDir string) *Coordinator {
	return &Coordinator{
		LockPath: filepath.Join(configDir, "drops.lock"),
		args:     make(chan string, 4),
		done:     make(chan struct{}),
		logger:   logging.GetGlobalLogger(),
	}
}

// Acquire decides whether this process is the primary. On RolePrimary
// the OS lock is held for the process lifetime, the IPC endpoint is
// listening and the lock file names both. On RoleForwarding nothing
// is held and the caller should Forward its argument and exit. Lock
// file I/O failure is fatal: without the lock we cannot know our
// singleton status.
func (c *Coordinator) Acquire() (Role, error) {
	if err := os.MkdirAll(filepath.Dir(c.LockPath), 0700); err != nil {
		return 0, fmt.Errorf("failed to create lock directory: %w", err)
	}

	file, err := os.OpenFile(c.LockPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := lockFile(file); err != nil {
		file.Close()
		if isLockContended(err) {
			// A live holder exists; its endpoint is in the file.
			return RoleForwarding, nil
		}
		return 0, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}

	// Lock acquired. If a stale file from a dead holder was left
	// behind, the successful lock is what makes it reclaimable; the
	// rewrite below overrides its contents.
	c.lockFile = file

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		c.releaseLock()
		return 0, fmt.Errorf("failed to open ipc endpoint: %w", err)
	}
	c.listener = listener

	if err := c.writeLockInfo(); err != nil {
		listener.Close()
		c.releaseLock()
		return 0, err
	}

	go c.acceptLoop()

	c.logger.Debug("Acquired singleton lock (PID: %d, endpoint: %s)", os.Getpid(), listener.Addr())
	return RolePrimary, nil
}

// writeLockInfo records pid and endpoint address, truncating whatever
// a previous (possibly dead) holder left.
func (c *Coordinator) writeLockInfo() error {
	if err := c.lockFile.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := c.lockFile.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(c.lockFile, "%d\n%s\n", os.Getpid(), c.listener.Addr().String()); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return c.lockFile.Sync()
}

// ReadLockInfo reads the recorded pid and endpoint address of the
// current holder.
func (c *Coordinator) ReadLockInfo() (pid int, addr string, err error) {
	data, err := os.ReadFile(c.LockPath)
	if err != nil {
		return 0, "", fmt.Errorf("failed to read lock file: %w", err)
	}

	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	if len(lines) > 0 {
		pid, _ = strconv.Atoi(strings.TrimSpace(lines[0]))
	}
	if len(lines) > 1 {
		addr = strings.TrimSpace(lines[1])
	}
	return pid, addr, nil
}

// Args delivers the game identifiers forwarded by secondary
// invocations.
func (c *Coordinator) Args() <-chan string {
	return c.args
}

// acceptLoop serves the one-shot endpoint: accept a single
// connection, read its payload, then tear the endpoint down and open
// a fresh one, rewriting the lock file with the new address. Runs for
// the life of the primary.
func (c *Coordinator) acceptLoop() {
	for {
		c.mu.Lock()
		listener := c.listener
		c.mu.Unlock()
		if listener == nil {
			return
		}

		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("IPC accept failed: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		payload, err := bufio.NewReader(conn).ReadString('\n')
		conn.Close()
		if err != nil && payload == "" {
			c.logger.Warn("Failed to read forwarded argument: %v", err)
		} else if arg := strings.TrimSpace(payload); arg != "" {
			select {
			case c.args <- arg:
			case <-c.done:
				return
			}
		}

		// One-shot endpoint: recreate after every accept cycle.
		listener.Close()
		fresh, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			c.logger.Error("Failed to reopen ipc endpoint: %v", err)
			return
		}
		c.mu.Lock()
		select {
		case <-c.done:
			c.mu.Unlock()
			fresh.Close()
			return
		default:
		}
		c.listener = fresh
		err = c.writeLockInfo()
		c.mu.Unlock()
		if err != nil {
			c.logger.Error("Failed to rewrite lock file: %v", err)
			return
		}
	}
}

// Forward sends the command-line argument to the running primary. Any
// failure is returned so the secondary can exit non-zero instead of
// silently dropping the request.
func (c *Coordinator) Forward(arg string) error {
	_, addr, err := c.ReadLockInfo()
	if err != nil {
		return err
	}
	if addr == "" {
		return fmt.Errorf("lock file names no ipc endpoint")
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("failed to reach running instance at %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintln(conn, arg); err != nil {
		return fmt.Errorf("failed to send argument to running instance: %w", err)
	}

	c.logger.Info("Forwarded %q to running instance", arg)
	return nil
}

// Release gives up the lock and deletes the file. Safe to call on any
// exit path; the stale-lock handling in Acquire is the backstop for
// the paths that never get here.
func (c *Coordinator) Release() error {
	c.closed.Do(func() { close(c.done) })
	c.mu.Lock()
	if c.listener != nil {
		c.listener.Close()
		c.listener = nil
	}
	c.mu.Unlock()
	return c.releaseLock()
}

func (c *Coordinator) releaseLock() error {
	if c.lockFile == nil {
		return nil
	}

	_ = unlockFile(c.lockFile)
	_ = c.lockFile.Close()
	c.lockFile = nil

	if err := os.Remove(c.LockPath); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to remove lock file on release: %v", err)
	}

	c.logger.Debug("Released singleton lock")
	return nil
}
