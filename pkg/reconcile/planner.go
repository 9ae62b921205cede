// Package reconcile turns a classified diff into an ordered operation plan.
package reconcile

import (
	"fmt"

	"github.com/sdejongh/robinhood/pkg/compare"
	"github.com/sdejongh/robinhood/pkg/models"
)

const (
	reasonEqualModTime  = "equal modification time"
	reasonNoModTime     = "no modification time on either side"
	reasonConflict      = "conflicting kinds left for manual resolution"
	reasonUnderConflict = "under conflicting path"
	reasonNotInMode     = "not handled in %s mode"
)

// Plan maps every diff node to operations for mode and returns them in
// execution order. The result is deterministic for identical inputs.
func Plan(diff *compare.DiffTree, mode models.SyncMode) (*models.Plan, error) {
	if _, err := models.ParseSyncMode(string(mode)); err != nil {
		return nil, err
	}

	p := &planner{mode: mode, plan: &models.Plan{Mode: mode}}
	for n := range diff.All() {
		// Pre-order keeps a skipped conflict's subtree contiguous
		key := diff.Key(n.Path)
		if p.blocked != nil && key.HasAncestor(p.blocked) {
			p.skip(n, reasonUnderConflict)
			continue
		}
		p.blocked = nil

		p.node(n)
		if n.Status == models.StatusConflict && mode != models.ModeMirror {
			p.blocked = key
		}
	}

	if mode == models.ModeDedupe {
		p.plan.Duplicates = findDuplicates(diff)
	}

	order(p.plan.Operations)
	for i := range p.plan.Operations {
		p.plan.Operations[i].ID = i
	}
	return p.plan, nil
}

type planner struct {
	mode models.SyncMode
	plan *models.Plan

	// blocked is the key of the last conflict left unresolved
	blocked models.RelPath
}

func (p *planner) node(n *models.DiffNode) {
	switch n.Status {
	case models.StatusIdentical:
		// Identical entries only matter for duplicate grouping

	case models.StatusNewInSource:
		switch p.mode {
		case models.ModeUpdate, models.ModeMirror, models.ModeSync:
			p.emit(models.OpCopyToDestination, n, n.Source, "new in source")
		default:
			p.skip(n, fmt.Sprintf(reasonNotInMode, p.mode))
		}

	case models.StatusNewInDestination:
		switch p.mode {
		case models.ModeMirror:
			p.emit(models.OpDeleteFromDestination, n, n.Dest, "not in source")
		case models.ModeSync:
			p.emit(models.OpCopyToSource, n, n.Dest, "new in destination")
		default:
			p.skip(n, fmt.Sprintf(reasonNotInMode, p.mode))
		}

	case models.StatusModified:
		switch p.mode {
		case models.ModeUpdate, models.ModeMirror:
			p.emit(models.OpCopyToDestination, n, n.Source, n.Reason)
		case models.ModeSync:
			p.newer(n)
		case models.ModeDedupe:
			p.plan.DuplicateCandidates = append(p.plan.DuplicateCandidates, n.Path)
			p.skip(n, "duplicate candidate")
		}

	case models.StatusConflict:
		if p.mode == models.ModeMirror {
			p.emit(models.OpDeleteFromDestination, n, n.Dest, n.Reason)
			p.emit(models.OpCopyToDestination, n, n.Source, n.Reason)
			return
		}
		p.plan.Conflicts = append(p.plan.Conflicts, models.ConflictReport{
			Path:       n.Path,
			SourceKind: n.Source.Kind,
			DestKind:   n.Dest.Kind,
			Mode:       p.mode,
			Reason:     n.Reason,
		})
		p.skip(n, reasonConflict)

	case models.StatusDeletedInSource:
		switch p.mode {
		case models.ModeMirror, models.ModeSync:
			p.emit(models.OpDeleteFromDestination, n, n.Dest, "deleted in source")
		default:
			p.skip(n, fmt.Sprintf(reasonNotInMode, p.mode))
		}

	case models.StatusDeletedInDestination:
		switch p.mode {
		case models.ModeMirror:
			p.emit(models.OpCopyToDestination, n, n.Source, "deleted in destination")
		case models.ModeSync:
			p.emit(models.OpDeleteFromSource, n, n.Source, "deleted in destination")
		default:
			p.skip(n, fmt.Sprintf(reasonNotInMode, p.mode))
		}
	}
}

// newer copies a modified pair in the direction of the later modification
// time. Equal times are a no-op.
func (p *planner) newer(n *models.DiffNode) {
	s, d := n.Source, n.Dest
	switch {
	case !s.HasModTime() && !d.HasModTime():
		p.skip(n, reasonNoModTime)
	case !d.HasModTime() || (s.HasModTime() && s.ModTime.After(d.ModTime)):
		p.emit(models.OpCopyToDestination, n, s, "source is newer")
	case !s.HasModTime() || d.ModTime.After(s.ModTime):
		p.emit(models.OpCopyToSource, n, d, "destination is newer")
	default:
		p.skip(n, reasonEqualModTime)
	}
}

func (p *planner) emit(kind models.OpKind, n *models.DiffNode, from *models.Entry, reason string) {
	op := models.Operation{
		Kind:   kind,
		Path:   from.Path,
		IsDir:  from.IsDir(),
		Size:   -1,
		Reason: reason,
	}
	if kind.IsCopy() && !from.IsDir() {
		op.Size = from.Size
		op.ModTime = from.ModTime
	}
	p.plan.Operations = append(p.plan.Operations, op)
}

func (p *planner) skip(n *models.DiffNode, reason string) {
	p.plan.Skipped = append(p.plan.Skipped, models.Operation{
		ID:     len(p.plan.Skipped),
		Kind:   models.OpSkip,
		Path:   n.Path,
		IsDir:  n.IsDir(),
		Size:   -1,
		Reason: reason,
	})
}
