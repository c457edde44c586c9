package hierarchy

import "github.com/facet-db/facet/internal/catalog"

// AncestorDiff compares the ordered ancestor chains of two paths. It
// returns the ancestor ids only the new chain has (added) and the ones only
// the old chain has (removed), each in root-to-parent order. Ancestors
// present in both chains contribute nothing, even when their level changed.
func AncestorDiff(oldPath, newPath string) (added, removed []string) {
	oldChain := catalog.PathSegments(catalog.ParentPath(oldPath))
	newChain := catalog.PathSegments(catalog.ParentPath(newPath))

	oldSet := make(map[string]bool, len(oldChain))
	for _, id := range oldChain {
		oldSet[id] = true
	}
	newSet := make(map[string]bool, len(newChain))
	for _, id := range newChain {
		newSet[id] = true
	}

	for _, id := range newChain {
		if !oldSet[id] {
			added = append(added, id)
		}
	}
	for _, id := range oldChain {
		if !newSet[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}
