package volume

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Default locations consulted by SysfsEnumerator.
const (
	DefaultMountInfo  = "/proc/self/mountinfo"
	DefaultByLabelDir = "/dev/disk/by-label"
	DefaultSysBlock   = "/sys/class/block"
)

// automountParents are the directories automounters create label-named
// mount points under.
var automountParents = []string{"/media", "/run/media", "/Volumes"}

// SysfsEnumerator lists block-device mounts from mountinfo, labels from
// the udev by-label links and removability from sysfs.
type SysfsEnumerator struct {
	MountInfo  string
	ByLabelDir string
	SysBlock   string

	// Probe reports whether a mount root is usable right now.
	Probe func(root string) bool
}

// NewSysfsEnumerator returns an enumerator over the live system paths.
func NewSysfsEnumerator() *SysfsEnumerator {
	return &SysfsEnumerator{
		MountInfo:  DefaultMountInfo,
		ByLabelDir: DefaultByLabelDir,
		SysBlock:   DefaultSysBlock,
		Probe:      probeReady,
	}
}

type mountEntry struct {
	root   string
	fstype string
	source string
}

// Volumes returns block device mounts sorted by mount root.
func (e *SysfsEnumerator) Volumes() ([]Volume, error) {
	data, err := os.ReadFile(e.MountInfo)
	if err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}
	mounts, err := parseMountInfo(data)
	if err != nil {
		return nil, err
	}
	labels := readLabels(e.ByLabelDir)

	seen := make(map[string]bool)
	var vols []Volume
	for _, m := range mounts {
		if !strings.HasPrefix(m.source, "/dev/") || seen[m.root] {
			continue
		}
		seen[m.root] = true

		dev := resolveDevice(m.source)
		label, ok := labels[dev]
		if !ok {
			label = automountLabel(m.root)
		}

		v := Volume{
			Device:    dev,
			Label:     label,
			Root:      m.root,
			FSType:    m.fstype,
			Removable: e.removable(filepath.Base(dev)),
		}
		if e.Probe != nil {
			v.Ready = e.Probe(m.root)
		} else {
			v.Ready = true
		}
		vols = append(vols, v)
	}

	sort.SliceStable(vols, func(i, j int) bool { return vols[i].Root < vols[j].Root })
	return vols, nil
}

// removable checks the device's own removable flag, then its parent
// disk's, then whether it hangs off a USB or MMC bus.
func (e *SysfsEnumerator) removable(name string) bool {
	if name == "" || name == "." || name == "/" {
		return false
	}
	node := filepath.Join(e.SysBlock, name)
	if readFlag(filepath.Join(node, "removable")) {
		return true
	}

	real, err := filepath.EvalSymlinks(node)
	if err != nil {
		return false
	}
	if readFlag(filepath.Join(filepath.Dir(real), "removable")) {
		return true
	}
	slashed := filepath.ToSlash(real)
	return strings.Contains(slashed, "/usb") || strings.Contains(slashed, "/mmc")
}

func readFlag(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

// parseMountInfo parses the mountinfo format described in proc(5).
func parseMountInfo(data []byte) ([]mountEntry, error) {
	var entries []mountEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		sep := -1
		for i, f := range fields {
			if f == "-" {
				sep = i
				break
			}
		}
		if sep < 5 || len(fields) < sep+3 {
			return nil, fmt.Errorf("malformed mountinfo line: %q", line)
		}
		entries = append(entries, mountEntry{
			root:   unescapeOctal(fields[4]),
			fstype: fields[sep+1],
			source: unescapeOctal(fields[sep+2]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan mountinfo: %w", err)
	}
	return entries, nil
}

// readLabels maps device paths to labels using the by-label symlinks.
// A missing directory yields an empty map.
func readLabels(dir string) map[string]string {
	labels := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return labels
	}
	for _, entry := range entries {
		target, err := os.Readlink(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		labels["/dev/"+filepath.Base(target)] = unescapeHex(entry.Name())
	}
	return labels
}

// resolveDevice follows mapper and by-uuid style symlinks to the kernel
// device node.
func resolveDevice(source string) string {
	real, err := filepath.EvalSymlinks(source)
	if err != nil {
		return source
	}
	return real
}

// automountLabel derives a label from the automounter's mount point when
// no udev label link exists.
func automountLabel(root string) string {
	parent := filepath.Dir(root)
	for _, p := range automountParents {
		if parent == p || filepath.Dir(parent) == p {
			return filepath.Base(root)
		}
	}
	return ""
}

// unescapeOctal decodes the \NNN escapes the kernel uses in mountinfo.
func unescapeOctal(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// unescapeHex decodes the \xNN escapes udev uses in by-label link names.
func unescapeHex(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
