// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package parser turns the output of "tgtadm --mode target --op show" into model.Target records.
//
// The dump is indentation structured:
//
//	Target 1: iqn.2025-01.com.example:disk1
//	    System information:
//	        Driver: iscsi
//	    I_T nexus information:
//	        I_T nexus: 3
//	            Initiator: iqn.1994-05.com.redhat:host alias: host
//	            Connection: 0
//	                IP Address: 10.0.0.5
//	    LUN information:
//	        LUN: 1
//	            Type: disk
//	            Size: 2048 MB, Block size: 512
//	            Online: Yes
//	            Backing store path: /app/iscsi/disk1.img
//	    ACL information:
//	        ALL
//
// A section header at indent 4 selects the parser state, and each (state, indent) pair has one
// line handler.  Lines without a handler are ignored.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/pkg/conversion"
	"github.com/hpe-storage/tgt-manager/tgt/model"
)

type state int

const (
	stateNone state = iota
	stateSystemInfo
	stateLunInfo
	stateAclInfo
	stateNexusInfo
)

func (s state) String() string {
	switch s {
	case stateSystemInfo:
		return "SystemInfo"
	case stateLunInfo:
		return "LunInfo"
	case stateAclInfo:
		return "AclInfo"
	case stateNexusInfo:
		return "NexusInfo"
	}
	return "None"
}

const (
	indentSection = 4
	indentItem    = 8
	indentField   = 12
	indentNested  = 16
)

var sections = map[string]state{
	"System information":    stateSystemInfo,
	"LUN information":       stateLunInfo,
	"ACL information":       stateAclInfo,
	"I_T nexus information": stateNexusInfo,
}

var targetLine = regexp.MustCompile(`^Target (\d+): (.+)$`)

type dispatchKey struct {
	state  state
	indent int
}

type lineHandler func(p *parser, content string)

var dispatch = map[dispatchKey]lineHandler{
	{stateSystemInfo, indentItem}:  (*parser).systemInfo,
	{stateLunInfo, indentItem}:     (*parser).lunHeader,
	{stateLunInfo, indentField}:    (*parser).lunField,
	{stateAclInfo, indentItem}:     (*parser).aclEntry,
	{stateNexusInfo, indentItem}:   (*parser).nexusHeader,
	{stateNexusInfo, indentField}:  (*parser).nexusField,
	{stateNexusInfo, indentNested}: (*parser).connectionField,
}

type parser struct {
	targets []*model.Target
	current *model.Target
	state   state
	lun     *model.Lun
	session *model.Session
}

// Parse converts a target show dump into targets, in order of appearance.  Parsing never fails:
// unknown lines are skipped and unparsable values are kept as text.
func Parse(output string) []*model.Target {
	log.Trace(">>>>> Parse")
	defer log.Trace("<<<<< Parse")

	p := &parser{targets: []*model.Target{}}
	for _, line := range strings.Split(output, "\n") {
		p.line(line)
	}
	p.finalize()

	log.Debugf("Parsed %d targets", len(p.targets))
	return p.targets
}

func (p *parser) line(line string) {
	line = strings.TrimRight(line, " \t\r")
	content := strings.TrimLeft(line, " ")
	if content == "" {
		return
	}
	indent := len(line) - len(content)

	if indent == 0 {
		if m := targetLine.FindStringSubmatch(content); m != nil {
			p.startTarget(m[1], m[2])
		}
		return
	}
	if p.current == nil {
		return
	}
	if indent == indentSection {
		if strings.HasSuffix(content, ":") {
			p.openSection(strings.TrimSuffix(content, ":"))
		}
		return
	}
	if handle, ok := dispatch[dispatchKey{p.state, indent}]; ok {
		handle(p, content)
	}
}

func (p *parser) startTarget(tid, name string) {
	p.finalize()
	id, err := strconv.Atoi(tid)
	if err != nil {
		// digits only, so this is an overflow
		log.Warnf("Unable to parse target id %s, err=%v", tid, err)
	}
	p.current = &model.Target{
		Tid:               id,
		Name:              strings.TrimSpace(name),
		Luns:              []*model.Lun{},
		AclList:           []string{},
		Sessions:          []*model.Session{},
		SystemInformation: map[string]string{},
	}
	p.state = stateNone
	p.lun = nil
	p.session = nil
}

// openSection switches state and resets the accumulator of that section
func (p *parser) openSection(name string) {
	p.state = sections[name]
	p.lun = nil
	p.session = nil
	switch p.state {
	case stateSystemInfo:
		p.current.SystemInformation = map[string]string{}
	case stateLunInfo:
		p.current.Luns = []*model.Lun{}
	case stateAclInfo:
		p.current.AclList = []string{}
	case stateNexusInfo:
		p.current.Sessions = []*model.Session{}
	}
}

func (p *parser) finalize() {
	if p.current == nil {
		return
	}
	luns := make([]*model.Lun, 0, len(p.current.Luns))
	for _, lun := range p.current.Luns {
		if lun.Type == model.LunTypeController {
			continue
		}
		luns = append(luns, lun)
	}
	p.current.Luns = luns
	p.targets = append(p.targets, p.current)
	p.current = nil
}

func (p *parser) systemInfo(content string) {
	if key, value, ok := splitField(content); ok {
		p.current.SystemInformation[key] = value
	}
}

func (p *parser) lunHeader(content string) {
	key, value, ok := splitField(content)
	if !ok || key != "LUN" {
		return
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		log.Warnf("Ignoring LUN with invalid id %q", value)
		p.lun = nil
		return
	}
	p.lun = &model.Lun{LunID: id}
	p.current.Luns = append(p.current.Luns, p.lun)
}

func (p *parser) lunField(content string) {
	if p.lun == nil {
		return
	}
	key, value, ok := splitField(content)
	if !ok {
		return
	}
	switch key {
	case "Type":
		p.lun.Type = value
	case "Size":
		p.lun.Size = parseSize(value)
	case "Backing store path":
		if !strings.EqualFold(value, "none") {
			path := value
			p.lun.BackingStore = &path
		}
	case "Online":
		if value == "Yes" {
			p.lun.Status = model.LunStatusOnline
		} else {
			p.lun.Status = model.LunStatusOffline
		}
	}
}

func (p *parser) aclEntry(content string) {
	p.current.AclList = append(p.current.AclList, strings.TrimSpace(content))
}

func (p *parser) nexusHeader(content string) {
	key, value, ok := splitField(content)
	if !ok {
		return
	}
	switch key {
	case "I_T nexus":
		p.session = &model.Session{NexusID: value}
		p.current.Sessions = append(p.current.Sessions, p.session)
	case "Connection":
		// recognized, carries nothing
	}
}

func (p *parser) nexusField(content string) {
	if p.session == nil {
		return
	}
	if key, value, ok := splitField(content); ok && key == "Initiator" {
		p.session.Initiator = value
	}
}

func (p *parser) connectionField(content string) {
	if p.session == nil {
		return
	}
	if key, value, ok := splitField(content); ok && key == "IP Address" {
		p.session.IPAddress = value
	}
}

// parseSize converts "2048 MB, Block size: 512" into "2.00 GB".  If the leading number cannot be
// parsed the text before the first comma is returned unchanged.
func parseSize(value string) string {
	raw := strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
	if gib, ok := conversion.MiBStrToGiBStr(raw); ok {
		return gib
	}
	return raw
}

func splitField(content string) (key, value string, ok bool) {
	parts := strings.SplitN(content, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}
