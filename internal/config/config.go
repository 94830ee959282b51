package config

import (
	"github.com/go-ini/ini"
)

// C is the naming server's configuration, loaded from an ini file by Load.
type C struct {
	// Listen on localhost or a local-only network for the client-facing
	// Service interface. There is no authentication nor TLS,
	// so this must not be exposed on a public address.
	ServiceListenNet  string `ini:"service-listen-net"`
	ServiceListenAddr string `ini:"service-listen-addr"`

	// Listen for the storage-server-facing Registration interface.
	RegistrationListenNet  string `ini:"registration-listen-net"`
	RegistrationListenAddr string `ini:"registration-listen-addr"`

	// Number of shared-lock acquisitions on a file, since its last grow,
	// that triggers a replication grow task.
	ReplicaThreshold int `ini:"replica-threshold"`

	// Bounded pool size for the ReplicationController.
	ReplicationWorkers int `ini:"replication-workers"`
}

const (
	defaultReplicaThreshold   = 2
	defaultReplicationWorkers = 4
)

// Load loads the configuration from filename, an ini file, applying
// defaults for any field the file leaves unset.
func Load(filename string) (*C, error) {
	f, err := ini.Load(filename)
	if err != nil {
		return nil, errorf("Load", "%s: %w", filename, err)
	}
	c := &C{
		ReplicaThreshold:   defaultReplicaThreshold,
		ReplicationWorkers: defaultReplicationWorkers,
	}
	if err := f.Section("").MapTo(c); err != nil {
		return nil, errorf("Load", "%s: %w", filename, err)
	}
	if c.ServiceListenNet == "" {
		c.ServiceListenNet = "tcp"
	}
	if c.ServiceListenAddr == "" {
		c.ServiceListenAddr = "127.0.0.1:7070"
	}
	if c.RegistrationListenNet == "" {
		c.RegistrationListenNet = "tcp"
	}
	if c.RegistrationListenAddr == "" {
		c.RegistrationListenAddr = "127.0.0.1:7071"
	}
	if c.ReplicaThreshold <= 0 {
		c.ReplicaThreshold = defaultReplicaThreshold
	}
	if c.ReplicationWorkers <= 0 {
		c.ReplicationWorkers = defaultReplicationWorkers
	}
	return c, nil
}
