// Package activation picks up sockets passed by systemd socket activation,
// so the webhook server can run from a .socket unit.
package activation

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// systemd hands over descriptors starting after stderr
const firstFD = 3

// Listen returns the first socket-activated listener of this process, or a
// new TCP listener on addr without socket activation.
func Listen(addr string) (net.Listener, error) {
	inherited, err := listeners(os.Getenv, os.Getpid())
	if err != nil {
		return nil, err
	}
	if len(inherited) > 0 {
		// Only one socket is served; the rest are released
		for _, l := range inherited[1:] {
			_ = l.Close()
		}
		return inherited[0], nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}

// listeners reads LISTEN_PID and LISTEN_FDS. A missing or foreign
// activation yields no listeners and no error.
func listeners(getenv func(string) string, pid int) ([]net.Listener, error) {
	pidStr := getenv("LISTEN_PID")
	if pidStr == "" {
		return nil, nil
	}
	listenPID, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_PID %q: %w", pidStr, err)
	}
	if listenPID != pid {
		return nil, nil
	}

	fdsStr := getenv("LISTEN_FDS")
	if fdsStr == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(fdsStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_FDS %q: %w", fdsStr, err)
	}

	out := make([]net.Listener, 0, max(n, 0))
	for i := 0; i < n; i++ {
		fd := firstFD + i
		file := os.NewFile(uintptr(fd), fmt.Sprintf("systemd-socket-%d", i))
		if file == nil {
			return nil, fmt.Errorf("failed to create file for fd %d", fd)
		}

		l, err := net.FileListener(file)
		// FileListener dups the descriptor
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to create listener from fd %d: %w", fd, err)
		}
		out = append(out, l)
	}

	// Keep child processes such as git from inheriting the activation
	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")
	_ = os.Unsetenv("LISTEN_FDNAMES")

	return out, nil
}
