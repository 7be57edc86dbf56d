// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package orchestrator

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/pkg/conversion"
	"github.com/hpe-storage/tgt-manager/tgt/cerrors"
	"github.com/hpe-storage/tgt-manager/tgt/model"
	"github.com/hpe-storage/tgt-manager/util"
)

const createMethodUnknown = "unknown"

// ListTargets returns a fresh snapshot of every target
func (o *Orchestrator) ListTargets() *model.Result {
	log.Trace(">>>>> ListTargets")
	defer log.Trace("<<<<< ListTargets")

	targets, err := o.snapshot.GetTargets()
	if err != nil {
		return rejected(err)
	}
	return succeeded("", targets)
}

// RawOutput returns the unparsed target show output
func (o *Orchestrator) RawOutput() *model.Result {
	output, err := o.snapshot.RawOutput()
	if err != nil {
		return rejected(err)
	}
	return succeeded("", output)
}

// Status reports whether tgtd answers and summarizes what it exports.  An unreadable target list
// is reported in Message with zero counts; it is not an error.
func (o *Orchestrator) Status() *model.Result {
	log.Trace(">>>>> Status")
	defer log.Trace("<<<<< Status")

	status := &model.Status{
		TgtRunning:  o.snapshot.Running(),
		DefaultIQNs: o.opts.DefaultIQNs,
	}
	message := ""
	targets, err := o.snapshot.GetTargets()
	if err != nil {
		message = cerrors.NewTgtError(err).Text
	}
	for _, target := range targets {
		status.TargetCount++
		status.LunCount += len(target.Luns)
		status.SessionCount += len(target.Sessions)
	}
	if disks, err := o.scanDisks(targets); err == nil {
		status.DiskCount = len(disks)
	}
	if o.opts.DurableDir != "" {
		free, err := util.DiskFreeBytes(o.opts.DurableDir)
		if err != nil {
			log.Warnf("Unable to stat %s, err=%v", o.opts.DurableDir, err)
		}
		status.DurableFreeByte = free
	}
	return succeeded(message, status)
}

// ListSessions returns every connected initiator.  With probe set each initiator address is
// pinged and Reachable is filled in.
func (o *Orchestrator) ListSessions(probe bool) *model.Result {
	log.Tracef(">>>>> ListSessions, probe=%v", probe)
	defer log.Trace("<<<<< ListSessions")

	targets, err := o.snapshot.GetTargets()
	if err != nil {
		return rejected(err)
	}
	sessions := []*model.TargetSession{}
	var all []*model.Session
	for _, target := range targets {
		for _, session := range target.Sessions {
			sessions = append(sessions, &model.TargetSession{Tid: target.Tid, TargetName: target.Name, Session: session})
			all = append(all, session)
		}
	}
	if probe && len(all) != 0 {
		reachable := o.prober.Probe(all)
		for _, session := range sessions {
			ok := reachable[session.NexusID]
			session.Reachable = &ok
		}
	}
	return succeeded("", sessions)
}

// ListDisks lists the disk images under the disk directory with the LUN exporting each of them
func (o *Orchestrator) ListDisks() *model.Result {
	log.Trace(">>>>> ListDisks")
	defer log.Trace("<<<<< ListDisks")

	targets, err := o.snapshot.GetTargets()
	if err != nil {
		// the inventory is still useful without the LUN mapping
		log.Warnf("Listing disks without LUN mapping, err=%v", err)
	}
	disks, err := o.scanDisks(targets)
	if err != nil {
		return rejected(cerrors.NewTgtErrorf(cerrors.Internal, "unable to list %s: %v", o.opts.DiskDir, err))
	}
	return succeeded("", disks)
}

// RecordDiskMethod records which provisioning method created a disk image
func (o *Orchestrator) RecordDiskMethod(req *DiskMethodRequest) *model.Result {
	log.Tracef(">>>>> RecordDiskMethod, disk=%v, method=%v", req.DiskName, req.Method)
	defer log.Trace("<<<<< RecordDiskMethod")

	if err := validate(req); err != nil {
		return rejected(err)
	}
	if o.diskMethods == nil {
		return rejected(cerrors.NewTgtError(cerrors.Unavailable, "disk method records are not configured"))
	}
	if err := o.diskMethods.Record(req.DiskName, req.Method); err != nil {
		return rejected(cerrors.NewTgtError(cerrors.Internal, err.Error()))
	}
	return succeeded("disk method recorded", req)
}

func (o *Orchestrator) scanDisks(targets []*model.Target) ([]*model.DiskFile, error) {
	disks := []*model.DiskFile{}
	if o.opts.DiskDir == "" {
		return disks, nil
	}
	exists, _, err := util.FileExists(o.opts.DiskDir)
	if err != nil || !exists {
		return disks, err
	}

	mappings := make(map[string]*model.LunMapping)
	for _, target := range targets {
		for _, lun := range target.Luns {
			if lun.BackingStore == nil {
				continue
			}
			mappings[*lun.BackingStore] = &model.LunMapping{
				TargetID:   target.Tid,
				LunID:      lun.LunID,
				TargetName: target.Name,
				LunSize:    lun.Size,
			}
		}
	}

	methods := map[string]string{}
	if o.diskMethods != nil {
		if methods, err = o.diskMethods.Load(); err != nil {
			log.Warnf("Unable to load disk methods, err=%v", err)
			methods = map[string]string{}
		}
	}

	err = filepath.WalkDir(o.opts.DiskDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		method := methods[d.Name()]
		if method == "" {
			method = createMethodUnknown
		}
		disks = append(disks, &model.DiskFile{
			Path:         path,
			Name:         d.Name(),
			Size:         conversion.FormatGiB(conversion.ConvertBytesToGiB(uint64(info.Size()))),
			Type:         diskType(d.Name()),
			CreateMethod: method,
			UsedBy:       mappings[path],
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	sort.Slice(disks, func(i, j int) bool {
		return strings.ToLower(disks[i].Name) < strings.ToLower(disks[j].Name)
	})
	return disks, nil
}

var diskSuffixes = []struct {
	suffix string
	kind   string
}{
	{".vhd", "vhd"},
	{".vhdx", "vhd"},
	{".vmdk", "vmdk"},
	{".qcow2", "qcow2"},
	{".img", "img"},
	{".iso", "iso"},
	{".raw", "raw"},
}

// diskType guesses the image format from the file name
func diskType(name string) string {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "lvm-") {
		return "lvm"
	}
	for _, s := range diskSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind
		}
	}
	return "raw"
}
