package line

import (
	"fmt"
	"io"
	"log/slog"
)

// Source records where a resolved handle came from.
type Source uint8

const (
	FromRegistry Source = iota + 1
	FromFallback
)

func (s Source) String() string {
	switch s {
	case FromRegistry:
		return "registry"
	case FromFallback:
		return "fallback"
	default:
		return "unresolved"
	}
}

// Resolution is the cached outcome of resolving one control line.
// Err is set when the fallback request failed; Handle may then be nil.
type Resolution struct {
	Line   ControlLine
	Handle Handle
	Source Source
	Pin    int // fallback pin, valid when Source == FromFallback
	Err    error
}

// Usable reports whether the resolution carries a handle that can be driven.
func (r Resolution) Usable() bool { return r.Handle != nil }

// Resolver resolves each control line at most once per attach cycle.
// It is not safe for concurrent use; the owning device serialises access.
type Resolver struct {
	peripheral int
	table      Table
	reg        Registry
	raw        Raw

	cache    [numLines]Resolution
	resolved [numLines]bool
}

// NewResolver creates a resolver for the given peripheral index.
func NewResolver(peripheral int, table Table, reg Registry, raw Raw) *Resolver {
	return &Resolver{
		peripheral: peripheral,
		table:      table,
		reg:        reg,
		raw:        raw,
	}
}

// Reset forgets every cached resolution. Handles that hold a kernel line
// request are released so the next attach cycle can request them again.
func (r *Resolver) Reset() {
	for i, res := range r.cache {
		if c, ok := res.Handle.(io.Closer); ok && r.resolved[i] {
			if err := c.Close(); err != nil {
				slog.Warn("line: release failed", "line", res.Line, "err", err)
			}
		}
	}
	r.cache = [numLines]Resolution{}
	r.resolved = [numLines]bool{}
}

// Resolved reports whether l has been resolved in this attach cycle.
func (r *Resolver) Resolved(l ControlLine) bool { return l.Valid() && r.resolved[l] }

// Cached returns the cached resolution of l, if any.
func (r *Resolver) Cached(l ControlLine) (Resolution, bool) {
	if !l.Valid() {
		return Resolution{}, false
	}
	return r.cache[l], r.resolved[l]
}

// Resolve returns the handle for l, resolving it on first use. A registry
// miss is recovered by the fallback pin and never surfaces as an error. A
// failed fallback request is recorded in the result and cached all the same:
// the line is not retried until the next Reset.
func (r *Resolver) Resolve(l ControlLine) Resolution {
	if !l.Valid() {
		return Resolution{Line: l, Err: fmt.Errorf("%w: %s", ErrUnknownLine, l)}
	}
	if r.resolved[l] {
		return r.cache[l]
	}
	spec := r.table[l]

	res := Resolution{Line: l}
	if r.reg != nil {
		h, err := r.reg.Lookup(r.peripheral, spec.Name)
		if err == nil {
			res.Handle = h
			res.Source = FromRegistry
			slog.Debug("line: resolved from registry", "line", l, "name", spec.Name, "handle", h)
			return r.store(res)
		}
		slog.Debug("line: registry lookup failed, using fallback pin",
			"line", l, "name", spec.Name, "pin", spec.FallbackPin, "err", err)
	}

	res.Source = FromFallback
	res.Pin = spec.FallbackPin
	h, err := r.raw.Request(spec.FallbackPin, spec.Owner)
	if err != nil {
		res.Err = fmt.Errorf("%w: pin %d (%s): %v", ErrLineAcquisition, spec.FallbackPin, spec.Owner, err)
		slog.Warn("line: fallback request failed", "line", l, "pin", spec.FallbackPin, "err", err)
		return r.store(res)
	}
	res.Handle = h
	if err := h.DirectionOutput(spec.DefaultLevel); err != nil {
		res.Err = fmt.Errorf("%w: pin %d direction: %v", ErrLineAcquisition, spec.FallbackPin, err)
		slog.Warn("line: fallback direction failed", "line", l, "pin", spec.FallbackPin, "err", err)
	}
	return r.store(res)
}

func (r *Resolver) store(res Resolution) Resolution {
	r.cache[res.Line] = res
	r.resolved[res.Line] = true
	return res
}
