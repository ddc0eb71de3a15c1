package index

import (
	"time"

	"github.com/out-of-cheese-error/gooseberry/internal/models"
)

// EmptyTag is the reserved bucket for annotations with no tags. It
// keeps them enumerable through the tag map and doubles as the
// untagged page name in the knowledge base. It is never sent to the
// annotation service.
const EmptyTag = "untagged"

// TagIndex defines the operations of the annotation/tag index.
type TagIndex interface {
	Put(a models.Annotation) error
	Get(id string) (*models.Annotation, error)
	GetMany(ids []string) ([]models.Annotation, error)
	GetTags(id string) ([]string, error)
	GetIDs(tag string) ([]string, error)
	Remove(id string) error
	All(group string) ([]models.Annotation, error)
	AllIDs() (map[string]struct{}, error)
	AllTags() ([]string, error)
	Verify() error
	Watermark(group string) (time.Time, error)
	SetWatermark(group string, t time.Time) error
	ResetWatermark(group string) error
	Clear() error
	Close() error
}

// Verify *DB satisfies TagIndex at compile time.
var _ TagIndex = (*DB)(nil)
