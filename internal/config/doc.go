// The config package loads the naming server's configuration: the two
// net/rpc listener addresses (client-facing Service, storage-facing
// Registration), the replica-grow threshold, and the replication worker
// pool size. Configuration is an ini-style file, loaded with
// github.com/go-ini/ini, and corresponds to the C struct of this package.
package config
