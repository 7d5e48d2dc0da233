package pipeline

import (
	"fmt"
	"sync"
)

// outDirs assigns package directories within one run. Two sources with the
// same stem (a/x.mkv, b/x.mkv) would otherwise write into the same
// directory; later claimants get a "_dupN" suffix.
type outDirs struct {
	root string

	mu     sync.Mutex
	owners map[string]string // package dir -> source that claimed it
	next   map[string]int    // base package dir -> next suffix to try
}

func newOutDirs(root string) *outDirs {
	return &outDirs{root: root, owners: make(map[string]string), next: make(map[string]int)}
}

// claim returns the package directory for source. Claiming the same source
// twice returns the same directory.
func (o *outDirs) claim(source string) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	base := PackageDir(o.root, source)
	if owner, ok := o.owners[base]; !ok || owner == source {
		o.owners[base] = source
		return base
	}
	n := o.next[base]
	if n == 0 {
		n = 2
	}
	for {
		dir := fmt.Sprintf("%s_dup%d", base, n)
		owner, ok := o.owners[dir]
		if !ok || owner == source {
			o.next[base] = n + 1
			o.owners[dir] = source
			return dir
		}
		n++
	}
}
