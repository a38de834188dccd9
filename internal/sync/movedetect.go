package sync

import (
	"canvas-sync/internal/canvasmodel"
	"canvas-sync/internal/pathmap"
)

// movePair is a matched (delete, create) pair the reverse path
// applies as a reparent rather than as a delete+create.
type movePair struct {
	del    canvasmodel.FSEvent
	create canvasmodel.FSEvent
}

// detectMoves implements spec 4.4.4: a two-tier heuristic over
// deletes x creates within a single batch. Directories never
// participate. Returns matched pairs plus the remaining,
// unmatched deletes/creates in their original relative order.
func detectMoves(deletes, creates []canvasmodel.FSEvent, paths *pathmap.PathMap) (pairs []movePair, remDeletes, remCreates []canvasmodel.FSEvent) {
	usedCreate := make(map[int]bool)
	usedDelete := make(map[int]bool)

	// Tier 1: same basename, different directory. Greedy first match;
	// each create may match at most one delete.
	for di, del := range deletes {
		if del.IsDirectory {
			continue
		}
		if _, hasShape := paths.PathToShape(del.Path); !hasShape {
			continue
		}
		for ci, create := range creates {
			if usedCreate[ci] || create.IsDirectory {
				continue
			}
			if del.Path.Base() == create.Path.Base() && del.Path.Dir() != create.Path.Dir() {
				pairs = append(pairs, movePair{del: del, create: create})
				usedDelete[di] = true
				usedCreate[ci] = true
				break
			}
		}
	}

	// Tier 2: same extension + (content equality OR size+rounded-mtime
	// equality). Multiple matching creates for the same delete reject
	// the pairing (ambiguity).
	for di, del := range deletes {
		if usedDelete[di] || del.IsDirectory {
			continue
		}
		if _, hasShape := paths.PathToShape(del.Path); !hasShape {
			continue
		}
		var matchIdx = -1
		matchCount := 0
		for ci, create := range creates {
			if usedCreate[ci] || create.IsDirectory {
				continue
			}
			if del.Path.Ext() != create.Path.Ext() {
				continue
			}
			if create.Path == del.Path {
				continue // no path collision
			}
			if tier2Match(del, create) {
				matchCount++
				matchIdx = ci
			}
		}
		if matchCount == 1 {
			pairs = append(pairs, movePair{del: del, create: creates[matchIdx]})
			usedDelete[di] = true
			usedCreate[matchIdx] = true
		}
	}

	for i, d := range deletes {
		if !usedDelete[i] {
			remDeletes = append(remDeletes, d)
		}
	}
	for i, cr := range creates {
		if !usedCreate[i] {
			remCreates = append(remCreates, cr)
		}
	}
	return pairs, remDeletes, remCreates
}

func tier2Match(del, create canvasmodel.FSEvent) bool {
	if del.Content != nil && create.Content != nil {
		if *del.Content == *create.Content {
			return true
		}
	}
	if del.Size != nil && create.Size != nil && del.MTimeMs != nil && create.MTimeMs != nil {
		if *del.Size == *create.Size && roundMs(*del.MTimeMs) == roundMs(*create.MTimeMs) {
			return true
		}
	}
	return false
}

func roundMs(ms int64) int64 {
	// "equal round(mtimeMs)" per spec 4.4.4; mtimeMs is already an
	// integer millisecond count in canvasmodel.FSEvent, so rounding is
	// a no-op here and exists to document intent against a hypothetical
	// fractional-millisecond source.
	return ms
}
