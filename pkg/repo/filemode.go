package repo

import (
	"io/fs"
	"os"

	"github.com/odvcencio/lanes/pkg/object"
)

// modeFromFileInfo maps lstat results to a tree mode. The second result is
// false for special files (sockets, devices, fifos) that have no tree mode.
func modeFromFileInfo(info fs.FileInfo) (string, bool) {
	m := info.Mode()
	switch {
	case m&fs.ModeSymlink != 0:
		return object.TreeModeSymlink, true
	case m.IsDir():
		return object.TreeModeDir, true
	case !m.IsRegular():
		return "", false
	case m&0o111 != 0:
		return object.TreeModeExecutable, true
	default:
		return object.TreeModeFile, true
	}
}

func filePermFromMode(mode string) os.FileMode {
	if mode == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}
