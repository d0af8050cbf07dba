package clusterconf

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cvaroqui/ini"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// Format is the encoding of a cluster configuration document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatINI
)

type document struct {
	Conf Settings          `json:"conf"`
	MDS  []json.RawMessage `json:"mds"`
	OSD  []json.RawMessage `json:"osd"`
}

// FormatFromPath guesses the document format from the file extension.
// Unknown extensions are read as JSON.
func FormatFromPath(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".ini", ".conf":
		return FormatINI
	default:
		return FormatJSON
	}
}

// LoadFile reads, decodes and validates the cluster configuration file p.
func LoadFile(p string) (*T, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrapf(err, "load cluster configuration %s", p)
	}
	defer f.Close()
	t, err := Load(f, FormatFromPath(p))
	if err != nil {
		return nil, errors.Wrapf(err, "load cluster configuration %s", p)
	}
	return t, nil
}

// Load decodes and validates a cluster configuration document.
func Load(r io.Reader, format Format) (*T, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var t *T
	switch format {
	case FormatINI:
		t, err = decodeINI(b)
	case FormatYAML:
		if b, err = yaml.YAMLToJSON(b); err != nil {
			return nil, errors.Wrap(err, "decode yaml")
		}
		t, err = decodeJSON(b)
	default:
		t, err = decodeJSON(b)
	}
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeJSON(b []byte) (*T, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "decode json")
	}
	t := &T{Conf: doc.Conf}
	for _, section := range []struct {
		typ  Type
		list []json.RawMessage
	}{
		{MDS, doc.MDS},
		{OSD, doc.OSD},
	} {
		for i, raw := range section.list {
			var d Daemon
			if err := json.Unmarshal(raw, &d); err != nil {
				return nil, errors.Wrapf(err, "decode %s#%d", section.typ, i)
			}
			var buff bytes.Buffer
			if err := json.Compact(&buff, raw); err != nil {
				return nil, errors.Wrapf(err, "compact %s#%d", section.typ, i)
			}
			d.Type = section.typ
			d.Index = i
			d.Raw = buff.Bytes()
			t.daemons = append(t.daemons, d)
		}
	}
	return t, nil
}

func decodeINI(b []byte) (*T, error) {
	f, err := ini.Load(b)
	if err != nil {
		return nil, errors.Wrap(err, "decode ini")
	}
	t := &T{}
	var errs []string
	for _, section := range f.Sections() {
		name := section.Name()
		switch {
		case name == ini.DefaultSection && len(section.Keys()) == 0:
			continue
		case name == "conf":
			t.Conf = Settings{
				SSHUser:    section.Key("ssh_user").String(),
				SSHKey:     section.Key("ssh_key").String(),
				KnownHosts: section.Key("known_hosts").String(),
			}
			if section.HasKey("ssh_port") {
				if t.Conf.SSHPort, err = section.Key("ssh_port").Int(); err != nil {
					errs = append(errs, "conf: ssh_port: "+err.Error())
				}
			}
			continue
		}
		typ, index, ok := parseSectionName(name)
		if !ok {
			errs = append(errs, "unknown section "+name)
			continue
		}
		d := Daemon{
			Type:            typ,
			Index:           index,
			Host:            section.Key("host").String(),
			BaseDir:         section.Key("base_dir").String(),
			PidFileTemplate: section.Key("pid_file").String(),
			SSHUser:         section.Key("ssh_user").String(),
		}
		raw := make(map[string]interface{})
		for _, key := range section.Keys() {
			raw[key.Name()] = key.String()
		}
		if section.HasKey("ssh_port") {
			if d.SSHPort, err = section.Key("ssh_port").Int(); err != nil {
				errs = append(errs, name+": ssh_port: "+err.Error())
			}
			raw["ssh_port"] = d.SSHPort
		}
		if d.Raw, err = json.Marshal(raw); err != nil {
			return nil, errors.Wrapf(err, "encode %s", name)
		}
		t.daemons = append(t.daemons, d)
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Errs: errs}
	}
	sort.SliceStable(t.daemons, func(i, j int) bool {
		a, b := t.daemons[i], t.daemons[j]
		if a.Type != b.Type {
			return typeRank(a.Type) < typeRank(b.Type)
		}
		return a.Index < b.Index
	})
	return t, nil
}

// parseSectionName splits a daemon section name like "osd#2".
func parseSectionName(s string) (Type, int, bool) {
	l := strings.SplitN(s, "#", 2)
	if len(l) != 2 {
		return "", 0, false
	}
	typ := Type(l[0])
	if !typ.IsValid() {
		return "", 0, false
	}
	i, err := strconv.Atoi(l[1])
	if err != nil || i < 0 {
		return "", 0, false
	}
	return typ, i, true
}

func typeRank(t Type) int {
	for i, s := range Types {
		if s == t {
			return i
		}
	}
	return len(Types)
}
