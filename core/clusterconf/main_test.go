package clusterconf

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redfish/deploy/testhelper"
)

func TestFormatFromPath(t *testing.T) {
	cases := map[string]Format{
		"cluster.json":      FormatJSON,
		"cluster.conf":      FormatINI,
		"cluster.ini":       FormatINI,
		"cluster.yaml":      FormatYAML,
		"CLUSTER.YML":       FormatYAML,
		"cluster":           FormatJSON,
		"/etc/redfish/conf": FormatJSON,
	}
	for p, expected := range cases {
		t.Run(p, func(t *testing.T) {
			assert.Equal(t, expected, FormatFromPath(p))
		})
	}
}

func TestLoadFile(t *testing.T) {
	for _, name := range []string{"cluster.json", "cluster.yaml", "cluster.ini"} {
		t.Run(name, func(t *testing.T) {
			conf, err := LoadFile(filepath.Join("test-fixtures", name))
			require.NoError(t, err)

			assert.Equal(t, "redfish", conf.Conf.SSHUser)
			assert.Equal(t, 2222, conf.Conf.SSHPort)
			require.Equal(t, 3, conf.Len())

			daemons := conf.Daemons(nil)
			require.Len(t, daemons, 3)

			t.Run("enumeration order is mds then osd, by position", func(t *testing.T) {
				var names []string
				for _, d := range daemons {
					names = append(names, d.Name())
				}
				assert.Equal(t, []string{"mds#0", "osd#0", "osd#1"}, names)
			})

			t.Run("daemon values", func(t *testing.T) {
				assert.Equal(t, "localhost", daemons[0].Host)
				assert.Equal(t, "/run/redfish/mds0.pid", daemons[0].PidFile())
				assert.Equal(t, "node2", daemons[1].Host)
				assert.Equal(t, "/var/redfish/osd0/pid", daemons[1].PidFile())
				assert.Equal(t, 0, daemons[1].SSHPort)
				assert.Equal(t, "/var/redfish/osd1/run/osd.pid", daemons[2].PidFile())
				assert.Equal(t, 22, daemons[2].SSHPort)
			})

			t.Run("raw configuration object", func(t *testing.T) {
				assert.JSONEq(t,
					`{"host":"localhost","base_dir":"/var/redfish/mds0","pid_file":"/run/redfish/mds0.pid"}`,
					daemons[0].String())
				assert.NotContains(t, daemons[0].String(), "\n")
			})
		})
	}
}

func TestLoadFileDeterministic(t *testing.T) {
	p := filepath.Join("test-fixtures", "cluster.ini")
	first, err := LoadFile(p)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := LoadFile(p)
		require.NoError(t, err)
		assert.Equal(t, first.Daemons(nil), again.Daemons(nil))
	}
}

func TestLoadFileWithoutExtension(t *testing.T) {
	p := filepath.Join(t.TempDir(), "etc", "cluster")
	testhelper.InstallFile(t, filepath.Join("test-fixtures", "cluster.json"), p)
	conf, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, 3, conf.Len())
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "cluster.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load cluster configuration")
	})

	t.Run("malformed json", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "cluster.json")
		testhelper.WriteFile(t, p, `{"mds": [`)
		_, err := LoadFile(p)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "cluster.yaml")
		testhelper.WriteFile(t, p, "mds:\n  - host: [node1\n")
		_, err := LoadFile(p)
		assert.Error(t, err)
	})

	t.Run("daemon is not an object", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "cluster.json")
		testhelper.WriteFile(t, p, `{"mds": ["node1"]}`)
		_, err := LoadFile(p)
		assert.Error(t, err)
	})

	t.Run("all violations are reported", func(t *testing.T) {
		_, err := LoadFile(filepath.Join("test-fixtures", "invalid.json"))
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), "unexpected error %v", err)
		assert.ElementsMatch(t, []string{
			"mds#0: host is required",
			`mds#0: base_dir "var/redfish/mds0" is not an absolute path`,
			`osd#0: invalid host "node_2"`,
			"osd#0: invalid ssh_port 70000",
		}, validationErr.Errs)
	})

	t.Run("unknown ini section", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "cluster.ini")
		testhelper.WriteFile(t, p, "[mgr#0]\nhost = node1\nbase_dir = /var/redfish/mgr0\n")
		_, err := LoadFile(p)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr), "unexpected error %v", err)
		assert.Equal(t, []string{"unknown section mgr#0"}, validationErr.Errs)
	})

	t.Run("relative pid file", func(t *testing.T) {
		_, err := Load(strings.NewReader(`{"osd": [{"host": "node1", "base_dir": "/var/redfish/osd0", "pid_file": "osd.pid"}]}`), FormatJSON)
		assert.ErrorContains(t, err, `osd#0: pid_file "osd.pid" is not an absolute path`)
	})
}

func TestLoadEmpty(t *testing.T) {
	conf, err := Load(strings.NewReader(`{}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 0, conf.Len())
	assert.Empty(t, conf.Daemons(nil))
}

func TestDaemonsFilter(t *testing.T) {
	conf, err := LoadFile(filepath.Join("test-fixtures", "cluster.json"))
	require.NoError(t, err)

	osds := conf.Daemons(TypeFilter(OSD))
	require.Len(t, osds, 2)
	for _, d := range osds {
		assert.Equal(t, OSD, d.Type)
	}
	assert.Len(t, conf.Daemons(TypeFilter(MDS)), 1)
	assert.Len(t, conf.Daemons(TypeFilter(MDS, OSD)), 3)
	assert.Len(t, conf.Daemons(func(d Daemon) bool { return d.Host == "node3" }), 1)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("OSD")
	require.NoError(t, err)
	assert.Equal(t, OSD, typ)

	_, err = ParseType("mgr")
	assert.Error(t, err)
}

func TestPidFile(t *testing.T) {
	cases := []struct {
		d        Daemon
		expected string
	}{
		{Daemon{BaseDir: "/var/redfish/mds0"}, "/var/redfish/mds0/pid"},
		{Daemon{BaseDir: "/var/redfish/mds0/"}, "/var/redfish/mds0/pid"},
		{Daemon{BaseDir: "/var/redfish/mds0", PidFileTemplate: "/run/mds0.pid"}, "/run/mds0.pid"},
		{Daemon{BaseDir: "/var/redfish/mds0", PidFileTemplate: "${base_dir}/mds.pid"}, "/var/redfish/mds0/mds.pid"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, c.d.PidFile())
	}
}

func TestLoadDigitLeadingHosts(t *testing.T) {
	conf, err := Load(strings.NewReader(`{
		"mds": [{"host": "10-rack3", "base_dir": "/var/redfish/mds0"}],
		"osd": [{"host": "1node.example", "base_dir": "/var/redfish/osd0"}]
	}`), FormatJSON)
	require.NoError(t, err)
	daemons := conf.Daemons(nil)
	require.Len(t, daemons, 2)
	assert.Equal(t, "10-rack3", daemons[0].Host)
	assert.Equal(t, "1node.example", daemons[1].Host)
}
