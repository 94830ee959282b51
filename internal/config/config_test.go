package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	filename := filepath.Join(dir, "config.ini")
	if err := os.WriteFile(filename, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestLoadAppliesDefaults(t *testing.T) {
	filename := writeConfig(t, "")
	c, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "tcp", c.ServiceListenNet)
	assert.Equal(t, "127.0.0.1:7070", c.ServiceListenAddr)
	assert.Equal(t, "tcp", c.RegistrationListenNet)
	assert.Equal(t, "127.0.0.1:7071", c.RegistrationListenAddr)
	assert.Equal(t, defaultReplicaThreshold, c.ReplicaThreshold)
	assert.Equal(t, defaultReplicationWorkers, c.ReplicationWorkers)
}

func TestLoadOverridesDefaults(t *testing.T) {
	filename := writeConfig(t, `
service-listen-net = unix
service-listen-addr = /tmp/naming.service
registration-listen-net = unix
registration-listen-addr = /tmp/naming.registration
replica-threshold = 3
replication-workers = 8
`)
	c, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "unix", c.ServiceListenNet)
	assert.Equal(t, "/tmp/naming.service", c.ServiceListenAddr)
	assert.Equal(t, 3, c.ReplicaThreshold)
	assert.Equal(t, 8, c.ReplicationWorkers)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	if err == nil {
		t.Fatal("expected error loading a missing config file")
	}
}
