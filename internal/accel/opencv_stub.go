//go:build !opencv

package accel

// Version reports the linked native library version. Empty when the binary
// was built without the opencv tag.
func Version() string {
	return ""
}
