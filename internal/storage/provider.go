// Package storage defines the knowledge-base output abstraction.
package storage

// Provider is the interface for knowledge-base file operations. Paths
// are relative to the knowledge-base root.
type Provider interface {
	// Write atomically writes content to path, creating parent folders.
	Write(path string, content []byte) error
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Delete removes the file at path.
	Delete(path string) error
	// List returns the relative path of every file under the root.
	List() ([]string, error)
	// Clear removes everything under the root, keeping the root itself.
	Clear() error
}
