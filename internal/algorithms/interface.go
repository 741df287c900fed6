// Processor strategy abstraction and registry
package algorithms

import (
	"fmt"
	"sort"
	"sync"

	"edge-detection-viewer/internal/frame"
)

// Processor implements the two frame transforms. Implementations must be
// safe for concurrent use on distinct frames and must return fresh
// allocations (no aliasing with the input or with earlier outputs).
type Processor interface {
	// Convert turns a planar I420 frame into a packed RGBA frame.
	Convert(raw frame.RawFrame) (frame.DisplayFrame, error)

	// Detect computes the thresholded Sobel edge map of a packed frame.
	Detect(img frame.DisplayFrame) (frame.DisplayFrame, error)

	GetName() string
	GetDescription() string
}

var (
	registryMu sync.RWMutex
	processors = make(map[string]Processor)
)

// Register makes a processor available by name. Registering the same name
// twice replaces the earlier entry.
func Register(name string, p Processor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	processors[name] = p
}

func Get(name string) (Processor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, exists := processors[name]
	return p, exists
}

// MustGet is Get for names registered in init functions.
func MustGet(name string) Processor {
	p, ok := Get(name)
	if !ok {
		panic(fmt.Sprintf("algorithms: processor not registered: %s", name))
	}
	return p
}

// Names lists registered processors in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(processors))
	for name := range processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReferenceName is the registry key of the in-process implementation.
const ReferenceName = "reference"

func init() {
	Register(ReferenceName, NewReference(1))
}
