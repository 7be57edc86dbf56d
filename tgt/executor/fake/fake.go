// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package fake provides an in-memory tgtd that answers tgtadm and tgt-admin command lines the way
// the real daemon does.  It implements executor.Executor and is used to exercise multi-step
// operations without a running target daemon.
package fake

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hpe-storage/tgt-manager/tgt/model"
	shellwords "github.com/mattn/go-shellwords"
)

const (
	// DefaultSizeMiB is reported for LUNs created through a command line
	DefaultSizeMiB = 1024

	exitInvalidRequest = 22
	exitNotConnected   = 107
	exitNoMatch        = 1
	exitNotFound       = 127

	// firstPid is the pid reported for the first launched process
	firstPid = 4242

	errTargetExists   = "tgtadm: this target already exists"
	errNoTarget       = "tgtadm: can't find the target"
	errLunExists      = "tgtadm: this logical unit number already exists"
	errNoLun          = "tgtadm: can't find the logical unit"
	errAclExists      = "tgtadm: this access control rule already exists"
	errNoAcl          = "tgtadm: can't find the access control rule"
	errNotConnected   = "tgtadm: failed to send request hdr to tgt daemon, Transport endpoint is not connected"
	errUnknownRequest = "tgtadm: unknown request"
)

type lun struct {
	id           int
	backingStore string
	sizeMiB      int
}

type session struct {
	nexusID   string
	initiator string
	ip        string
}

type target struct {
	tid      int
	name     string
	luns     map[int]*lun
	acl      []string
	sessions []*session
}

type fault struct {
	match      string
	occurrence int
	seen       int
	stderr     string
}

type process struct {
	pid         int
	commandLine string
}

// Tgtd is a goroutine safe in-memory target daemon.  Besides tgtadm and tgt-admin it runs the
// scripts registered with Script, in the foreground or through Launch, and answers pgrep and
// pkill for launched processes.
type Tgtd struct {
	mu        sync.Mutex
	targets   map[int]*target
	sizes     map[string]int
	scripts   map[string]string
	processes []*process
	nextPid   int
	faults    []*fault
	calls     []string
	stopped   bool
}

// New returns an empty, running daemon
func New() *Tgtd {
	return &Tgtd{
		targets: make(map[int]*target),
		sizes:   make(map[string]int),
		scripts: make(map[string]string),
		nextPid: firstPid,
	}
}

// Script registers a shell script that prints stdout when run with bash
func (d *Tgtd) Script(path, stdout string) *Tgtd {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[path] = stdout
	return d
}

// Processes returns the command lines of the launched processes still running
func (d *Tgtd) Processes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, p := range d.processes {
		out = append(out, p.commandLine)
	}
	return out
}

// AddTarget seeds a target
func (d *Tgtd) AddTarget(tid int, name string) *Tgtd {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets[tid] = &target{tid: tid, name: name, luns: make(map[int]*lun)}
	return d
}

// AddLun seeds a LUN on an existing target, sizeMiB is also remembered for the backing store
func (d *Tgtd) AddLun(tid, lunID int, backingStore string, sizeMiB int) *Tgtd {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sizes[backingStore] = sizeMiB
	d.targets[tid].luns[lunID] = &lun{id: lunID, backingStore: backingStore, sizeMiB: sizeMiB}
	return d
}

// AddACL seeds ACL entries on an existing target
func (d *Tgtd) AddACL(tid int, entries ...string) *Tgtd {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets[tid].acl = append(d.targets[tid].acl, entries...)
	return d
}

// AddSession seeds a connected initiator
func (d *Tgtd) AddSession(tid int, nexusID, initiator, ip string) *Tgtd {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets[tid].sessions = append(d.targets[tid].sessions, &session{nexusID: nexusID, initiator: initiator, ip: ip})
	return d
}

// Stop makes every subsequent tgtadm and tgt-admin command fail as if tgtd was not running
func (d *Tgtd) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
}

// Fail makes the n-th command containing match fail with stderr.  n == 0 fails every match.
func (d *Tgtd) Fail(match string, n int, stderr string) *Tgtd {
	d.mu.Lock()
	defer d.mu.Unlock()
	if stderr == "" {
		stderr = "tgtadm: injected failure"
	}
	d.faults = append(d.faults, &fault{match: match, occurrence: n, stderr: stderr})
	return d
}

// Calls returns every command line executed so far, in order
func (d *Tgtd) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CallsMatching returns the executed command lines containing match
func (d *Tgtd) CallsMatching(match string) []string {
	var out []string
	for _, c := range d.Calls() {
		if strings.Contains(c, match) {
			out = append(out, c)
		}
	}
	return out
}

// HasTarget reports whether tid exists
func (d *Tgtd) HasTarget(tid int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.targets[tid]
	return ok
}

// Luns returns the LUN ID to backing store map of tid, nil if tid does not exist
func (d *Tgtd) Luns(tid int) map[int]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.targets[tid]
	if !ok {
		return nil
	}
	out := make(map[int]string, len(t.luns))
	for id, l := range t.luns {
		out[id] = l.backingStore
	}
	return out
}

// ACL returns the bound initiators of tid in bind order
func (d *Tgtd) ACL(tid int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.targets[tid]
	if !ok {
		return nil
	}
	return append([]string{}, t.acl...)
}

// Execute implements executor.Executor
func (d *Tgtd) Execute(commandLine string) *model.CommandResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, commandLine)

	if result := d.injected(commandLine); result != nil {
		return result
	}
	args, err := shellwords.Parse(commandLine)
	if err != nil || len(args) == 0 {
		return failure(commandLine, -1, "unable to parse command line")
	}

	switch filepath.Base(args[0]) {
	case "tgt-admin":
		if d.stopped {
			return failure(commandLine, exitNotConnected, errNotConnected)
		}
		if len(args) > 1 && args[1] == "--dump" {
			return success(commandLine, d.dump())
		}
	case "tgtadm":
		if d.stopped {
			return failure(commandLine, exitNotConnected, errNotConnected)
		}
		return d.tgtadm(commandLine, parseFlags(args[1:]))
	case "bash":
		return d.runScript(commandLine, args)
	case "pgrep":
		return d.pgrep(commandLine, args)
	case "pkill":
		return d.pkill(commandLine, args)
	}
	return failure(commandLine, -1, fmt.Sprintf("exec: %q: executable file not found in $PATH", args[0]))
}

// Launch implements executor.Launcher.  Only registered scripts can be launched, they keep
// running until killed with pkill.
func (d *Tgtd) Launch(commandLine string) *model.CommandResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, commandLine)

	if result := d.injected(commandLine); result != nil {
		return result
	}
	args, err := shellwords.Parse(commandLine)
	if err != nil || len(args) == 0 {
		return failure(commandLine, -1, "unable to parse command line")
	}
	if filepath.Base(args[0]) != "bash" || len(args) < 2 {
		return failure(commandLine, -1, fmt.Sprintf("exec: %q: executable file not found in $PATH", args[0]))
	}
	if _, ok := d.scripts[args[1]]; !ok {
		return failure(commandLine, -1, fmt.Sprintf("bash: %s: No such file or directory", args[1]))
	}
	p := &process{pid: d.nextPid, commandLine: commandLine}
	d.nextPid++
	d.processes = append(d.processes, p)
	return success(commandLine, strconv.Itoa(p.pid))
}

// injected returns the failure of the first fault matching commandLine
func (d *Tgtd) injected(commandLine string) *model.CommandResult {
	for _, f := range d.faults {
		if !strings.Contains(commandLine, f.match) {
			continue
		}
		f.seen++
		if f.occurrence == 0 || f.occurrence == f.seen {
			return failure(commandLine, exitInvalidRequest, f.stderr)
		}
	}
	return nil
}

func (d *Tgtd) runScript(commandLine string, args []string) *model.CommandResult {
	if len(args) < 2 {
		return failure(commandLine, -1, "bash: interactive shells are not supported")
	}
	stdout, ok := d.scripts[args[1]]
	if !ok {
		return failure(commandLine, exitNotFound, fmt.Sprintf("bash: %s: No such file or directory", args[1]))
	}
	return success(commandLine, stdout)
}

// matching returns the running processes whose command line contains the -f pattern of args
func (d *Tgtd) matching(args []string) []*process {
	if len(args) < 3 || args[1] != "-f" {
		return nil
	}
	var out []*process
	for _, p := range d.processes {
		if strings.Contains(p.commandLine, args[2]) {
			out = append(out, p)
		}
	}
	return out
}

func (d *Tgtd) pgrep(commandLine string, args []string) *model.CommandResult {
	found := d.matching(args)
	if len(found) == 0 {
		return failure(commandLine, exitNoMatch, "")
	}
	var b strings.Builder
	for _, p := range found {
		fmt.Fprintf(&b, "%d\n", p.pid)
	}
	return success(commandLine, b.String())
}

func (d *Tgtd) pkill(commandLine string, args []string) *model.CommandResult {
	found := d.matching(args)
	if len(found) == 0 {
		return failure(commandLine, exitNoMatch, "")
	}
	var running []*process
	for _, p := range d.processes {
		killed := false
		for _, f := range found {
			killed = killed || f == p
		}
		if !killed {
			running = append(running, p)
		}
	}
	d.processes = running
	return success(commandLine, "")
}

func parseFlags(args []string) map[string]string {
	alias := map[string]string{
		"-L": "--lld", "-m": "--mode", "-o": "--op", "-t": "--tid", "-l": "--lun",
		"-b": "--backing-store", "-I": "--initiator-address", "-T": "--targetname",
	}
	flags := make(map[string]string)
	for i := 0; i < len(args); i++ {
		name := args[i]
		if long, ok := alias[name]; ok {
			name = long
		}
		if i+1 < len(args) {
			flags[name] = args[i+1]
			i++
		} else {
			flags[name] = ""
		}
	}
	return flags
}

func (d *Tgtd) tgtadm(commandLine string, flags map[string]string) *model.CommandResult {
	mode, op := flags["--mode"], flags["--op"]
	if mode == "system" && op == "show" {
		return success(commandLine, "System:\n    State: ready\n    debug: off\nLLDs:\n    iscsi: ready\n")
	}
	if mode == "target" && op == "show" {
		return success(commandLine, d.show())
	}

	tid, err := strconv.Atoi(flags["--tid"])
	if err != nil {
		return failure(commandLine, exitInvalidRequest, errUnknownRequest)
	}
	t, exists := d.targets[tid]

	switch mode + "/" + op {
	case "target/new":
		if exists {
			return failure(commandLine, exitInvalidRequest, errTargetExists)
		}
		d.targets[tid] = &target{tid: tid, name: flags["--targetname"], luns: make(map[int]*lun)}
		return success(commandLine, "")
	case "target/delete":
		if !exists {
			return failure(commandLine, exitInvalidRequest, errNoTarget)
		}
		delete(d.targets, tid)
		return success(commandLine, "")
	}

	if !exists {
		return failure(commandLine, exitInvalidRequest, errNoTarget)
	}

	switch mode + "/" + op {
	case "target/bind":
		initiator := flags["--initiator-address"]
		if indexOf(t.acl, initiator) >= 0 {
			return failure(commandLine, exitInvalidRequest, errAclExists)
		}
		t.acl = append(t.acl, initiator)
		return success(commandLine, "")
	case "target/unbind":
		i := indexOf(t.acl, flags["--initiator-address"])
		if i < 0 {
			return failure(commandLine, exitInvalidRequest, errNoAcl)
		}
		t.acl = append(t.acl[:i], t.acl[i+1:]...)
		return success(commandLine, "")
	}

	lunID, err := strconv.Atoi(flags["--lun"])
	if err != nil {
		return failure(commandLine, exitInvalidRequest, errUnknownRequest)
	}
	switch mode + "/" + op {
	case "logicalunit/new":
		if _, ok := t.luns[lunID]; ok {
			return failure(commandLine, exitInvalidRequest, errLunExists)
		}
		path := flags["--backing-store"]
		size, ok := d.sizes[path]
		if !ok {
			size = DefaultSizeMiB
		}
		t.luns[lunID] = &lun{id: lunID, backingStore: path, sizeMiB: size}
		return success(commandLine, "")
	case "logicalunit/delete":
		if _, ok := t.luns[lunID]; !ok {
			return failure(commandLine, exitInvalidRequest, errNoLun)
		}
		delete(t.luns, lunID)
		return success(commandLine, "")
	}
	return failure(commandLine, exitInvalidRequest, errUnknownRequest)
}

func (d *Tgtd) sortedTargets() []*target {
	targets := make([]*target, 0, len(d.targets))
	for _, t := range d.targets {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].tid < targets[j].tid })
	return targets
}

func (t *target) sortedLuns() []*lun {
	luns := make([]*lun, 0, len(t.luns))
	for _, l := range t.luns {
		luns = append(luns, l)
	}
	sort.Slice(luns, func(i, j int) bool { return luns[i].id < luns[j].id })
	return luns
}

// show renders the output of "tgtadm --mode target --op show"
func (d *Tgtd) show() string {
	var b strings.Builder
	for _, t := range d.sortedTargets() {
		fmt.Fprintf(&b, "Target %d: %s\n", t.tid, t.name)
		b.WriteString("    System information:\n")
		b.WriteString("        Driver: iscsi\n")
		b.WriteString("        State: ready\n")
		b.WriteString("    I_T nexus information:\n")
		for _, s := range t.sessions {
			fmt.Fprintf(&b, "        I_T nexus: %s\n", s.nexusID)
			fmt.Fprintf(&b, "            Initiator: %s alias: none\n", s.initiator)
			b.WriteString("            Connection: 0\n")
			fmt.Fprintf(&b, "                IP Address: %s\n", s.ip)
		}
		b.WriteString("    LUN information:\n")
		b.WriteString("        LUN: 0\n")
		b.WriteString("            Type: controller\n")
		fmt.Fprintf(&b, "            SCSI ID: IET     %04x0000\n", t.tid)
		b.WriteString("            Size: 0 MB, Block size: 1\n")
		b.WriteString("            Online: Yes\n")
		b.WriteString("            Backing store type: null\n")
		b.WriteString("            Backing store path: None\n")
		b.WriteString("            Backing store flags: \n")
		for _, l := range t.sortedLuns() {
			fmt.Fprintf(&b, "        LUN: %d\n", l.id)
			b.WriteString("            Type: disk\n")
			fmt.Fprintf(&b, "            SCSI ID: IET     %04x%04x\n", t.tid, l.id)
			fmt.Fprintf(&b, "            Size: %d MB, Block size: 512\n", l.sizeMiB)
			b.WriteString("            Online: Yes\n")
			b.WriteString("            Removable media: No\n")
			b.WriteString("            Backing store type: rdwr\n")
			fmt.Fprintf(&b, "            Backing store path: %s\n", l.backingStore)
			b.WriteString("            Backing store flags: \n")
		}
		b.WriteString("    Account information:\n")
		b.WriteString("    ACL information:\n")
		for _, entry := range t.acl {
			fmt.Fprintf(&b, "        %s\n", entry)
		}
	}
	return b.String()
}

// dump renders the output of "tgt-admin --dump"
func (d *Tgtd) dump() string {
	var b strings.Builder
	b.WriteString("default-driver iscsi\n")
	for _, t := range d.sortedTargets() {
		fmt.Fprintf(&b, "\n<target %s>\n", t.name)
		for _, l := range t.sortedLuns() {
			fmt.Fprintf(&b, "\tbacking-store %s\n", l.backingStore)
		}
		for _, entry := range t.acl {
			fmt.Fprintf(&b, "\tinitiator-address %s\n", entry)
		}
		b.WriteString("</target>\n")
	}
	return b.String()
}

func indexOf(list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}

func success(commandLine, stdout string) *model.CommandResult {
	return &model.CommandResult{
		Success: true,
		Output:  stdout,
		Details: &model.CommandDetails{Command: commandLine, Stdout: stdout},
	}
}

func failure(commandLine string, exitCode int, stderr string) *model.CommandResult {
	return &model.CommandResult{
		Success: false,
		Error:   stderr,
		Details: &model.CommandDetails{Command: commandLine, ExitCode: exitCode, Stderr: stderr},
	}
}
