package hierarchy

import (
	"sort"
	"strings"

	"github.com/out-of-cheese-error/gooseberry/internal/models"
)

// Sort orders annotations in place by the composite comparator from
// the sort spec: compare by the first key, break ties with the next.
// String keys compare lexicographically, multi-valued keys are joined
// with a fixed separator first, timestamps compare chronologically.
// The sort is stable so equal elements keep their input order.
func Sort(annotations []models.Annotation, spec SortSpec) {
	keys := spec.Keys
	if len(keys) == 0 {
		keys = []string{KeyCreated}
	}
	sort.SliceStable(annotations, func(i, j int) bool {
		a, b := &annotations[i], &annotations[j]
		for _, key := range keys {
			if c := compareBy(a, b, key); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

func compareBy(a, b *models.Annotation, key string) int {
	switch key {
	case KeyTag:
		return strings.Compare(strings.Join(a.Tags, ","), strings.Join(b.Tags, ","))
	case KeyURI:
		return strings.Compare(CleanURI(a.URI), CleanURI(b.URI))
	case KeyBaseURI:
		return strings.Compare(CleanURI(a.BaseURI()), CleanURI(b.BaseURI()))
	case KeyTitle:
		return strings.Compare(a.Title, b.Title)
	case KeyID:
		return strings.Compare(a.ID, b.ID)
	case KeyGroup:
		return strings.Compare(a.Group, b.Group)
	case KeyGroupName:
		return strings.Compare(a.GroupName, b.GroupName)
	case KeyCreated:
		return a.Created.Compare(b.Created)
	case KeyUpdated:
		return a.Updated.Compare(b.Updated)
	}
	return 0
}
