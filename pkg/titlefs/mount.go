package titlefs

import (
	"fmt"
	"os/exec"

	"rsc.io/rsc/fuse"
)

// Mount is a mounted filesystem
type Mount struct {
	dir  string
	conn *fuse.Conn
	done chan error
}

// MountFS mounts fs on dir and serves it in the background
func MountFS(dir string, fs *FS) (*Mount, error) {
	c, err := fuse.Mount(dir)
	if err != nil {
		return nil, fmt.Errorf("mounting %s: %w", dir, err)
	}
	m := &Mount{dir: dir, conn: c, done: make(chan error, 1)}
	go func() {
		m.done <- c.Serve(fs)
	}()
	return m, nil
}

// Dir returns the mount point
func (m *Mount) Dir() string {
	return m.dir
}

// Done delivers the result of serving once the filesystem is unmounted
func (m *Mount) Done() <-chan error {
	return m.done
}

// Unmount detaches the filesystem
func (m *Mount) Unmount() error {
	out, err := exec.Command("/bin/umount", m.dir).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmounting %s: %w: %s", m.dir, err, out)
	}
	return nil
}
