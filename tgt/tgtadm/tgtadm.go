// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package tgtadm renders the tgtadm and tgt-admin command lines issued against the tgtd control
// plane.  Every argument that is not a plain token is single-quoted so the command line survives
// shell-style tokenizing unchanged.
package tgtadm

import (
	"fmt"
	"strings"
)

const (
	DefaultTgtadm   = "tgtadm"
	DefaultTgtAdmin = "tgt-admin"
	DefaultLLD      = "iscsi"
)

// tgtadm modes
const (
	ModeSystem      = "system"
	ModeTarget      = "target"
	ModeLogicalUnit = "logicalunit"
)

// tgtadm operations
const (
	OpNew    = "new"
	OpDelete = "delete"
	OpShow   = "show"
	OpBind   = "bind"
	OpUnbind = "unbind"
)

// Commands builds command lines for one tgtd instance
type Commands struct {
	Tgtadm   string
	TgtAdmin string
	LLD      string
}

// New returns a Commands using the given binaries, empty values select the defaults
func New(tgtadm, tgtAdmin, lld string) *Commands {
	c := &Commands{Tgtadm: tgtadm, TgtAdmin: tgtAdmin, LLD: lld}
	if c.Tgtadm == "" {
		c.Tgtadm = DefaultTgtadm
	}
	if c.TgtAdmin == "" {
		c.TgtAdmin = DefaultTgtAdmin
	}
	if c.LLD == "" {
		c.LLD = DefaultLLD
	}
	return c
}

// Default returns a Commands for the stock tgtadm/tgt-admin binaries on PATH
func Default() *Commands {
	return New("", "", "")
}

func (c *Commands) base(mode, op string) string {
	return fmt.Sprintf("%s --lld %s --mode %s --op %s", Quote(c.Tgtadm), Quote(c.LLD), mode, op)
}

// ShowTargets dumps every target with its LUNs, ACLs and I_T nexus information
func (c *Commands) ShowTargets() string {
	return c.base(ModeTarget, OpShow)
}

// ShowSystem is used as a liveness probe of tgtd
func (c *Commands) ShowSystem() string {
	return c.base(ModeSystem, OpShow)
}

func (c *Commands) NewTarget(tid int, name string) string {
	return fmt.Sprintf("%s --tid %d --targetname %s", c.base(ModeTarget, OpNew), tid, Quote(name))
}

func (c *Commands) DeleteTarget(tid int) string {
	return fmt.Sprintf("%s --tid %d", c.base(ModeTarget, OpDelete), tid)
}

func (c *Commands) NewLun(tid, lun int, backingStore string) string {
	return fmt.Sprintf("%s --tid %d --lun %d -b %s", c.base(ModeLogicalUnit, OpNew), tid, lun, Quote(backingStore))
}

func (c *Commands) DeleteLun(tid, lun int) string {
	return fmt.Sprintf("%s --tid %d --lun %d", c.base(ModeLogicalUnit, OpDelete), tid, lun)
}

func (c *Commands) Bind(tid int, initiator string) string {
	return fmt.Sprintf("%s --tid %d -I %s", c.base(ModeTarget, OpBind), tid, Quote(initiator))
}

func (c *Commands) Unbind(tid int, initiator string) string {
	return fmt.Sprintf("%s --tid %d -I %s", c.base(ModeTarget, OpUnbind), tid, Quote(initiator))
}

// Dump prints the live configuration in targets.conf format
func (c *Commands) Dump() string {
	return fmt.Sprintf("%s --dump", Quote(c.TgtAdmin))
}

// Quote single-quotes s unless it only contains characters that never need quoting
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	plain := true
	for _, r := range s {
		if !isPlain(r) {
			plain = false
			break
		}
	}
	if plain {
		return s
	}
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}

func isPlain(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-_./:@,+=%", r)
}
