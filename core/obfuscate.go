package core

import (
	"context"
	"strings"

	"pkt.systems/framereel/internal/logx"
	"pkt.systems/framereel/schema"
	"pkt.systems/pslog"
)

// ObfuscationBackup records exactly which nodes were masked so the pass can
// be reversed. Transient, never persisted.
type ObfuscationBackup struct {
	masked []string
}

// MaskedPaths returns the node paths masked in this pass.
func (b *ObfuscationBackup) MaskedPaths() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.masked...)
}

type obfuscator struct {
	surface Surface
	logger  pslog.Logger
}

// mask applies layout-preserving masks to every node selected by cfg and
// returns a backup that undoes the pass. On partial failure the nodes masked
// so far are restored before the error is returned.
func (o *obfuscator) mask(ctx context.Context, cfg schema.ObfuscationPolicy) (*ObfuscationBackup, error) {
	log := logx.Ctx(ctx)
	targets, err := o.surface.MaskTargets(ctx)
	if err != nil {
		return nil, err
	}
	backup := &ObfuscationBackup{}
	for _, target := range targets {
		if target.Kind == NodeScript {
			continue
		}
		if !shouldMask(target, cfg) {
			continue
		}
		if err := o.surface.ApplyMask(ctx, target.Path); err != nil {
			o.restore(ctx, backup)
			return nil, err
		}
		backup.masked = append(backup.masked, target.Path)
	}
	log.Debug("obfuscation applied", "masked", len(backup.masked), "targets", len(targets))
	return backup, nil
}

// restore reverses a mask pass. Nodes that have since been detached are
// skipped silently; restore is safe to call with a nil backup.
func (o *obfuscator) restore(ctx context.Context, backup *ObfuscationBackup) {
	if backup == nil {
		return
	}
	log := logx.Ctx(ctx)
	skipped := 0
	for i := len(backup.masked) - 1; i >= 0; i-- {
		path := backup.masked[i]
		ok, err := o.surface.RemoveMask(ctx, path)
		if err != nil {
			log.Warn("obfuscation restore failed", "path", path, "err", err)
			continue
		}
		if !ok {
			skipped++
		}
	}
	if skipped > 0 {
		log.Debug("obfuscation restore skipped detached nodes", "skipped", skipped)
	}
	backup.masked = nil
}

// shouldMask resolves the masking policy for one target. Precedence: explicit
// per-node opt-out, explicit opt-in, deny list, allow list, global default.
func shouldMask(target MaskTarget, cfg schema.ObfuscationPolicy) bool {
	if target.OptOut {
		return false
	}
	if target.OptIn {
		return true
	}
	if matchesSelector(target.Path, cfg.Deny) {
		return false
	}
	if matchesSelector(target.Path, cfg.Allow) {
		return true
	}
	return cfg.MaskByDefault
}

func matchesSelector(path string, selectors []string) bool {
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if path == sel || strings.HasPrefix(path, sel+"/") {
			return true
		}
	}
	return false
}
