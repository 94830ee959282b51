// Package stub defines the capability handles the naming core holds for
// each registered storage server, and the net/rpc transport that backs
// them when talking to a real storage server process. Storage servers
// themselves are external collaborators: this package specifies only the
// contract the core consumes from them — two role interfaces, Storage and
// Command, each with a net/rpc client implementation.
package stub

import (
	"context"
	"fmt"
	"net/rpc"

	"github.com/pkg/errors"

	"github.com/nicolagi/naming/internal/path"
)

// Storage is the client-facing capability of one storage server: reading
// and writing file bytes, and reporting a file's size. The naming core
// itself never calls Read or Write; it hands a Storage stub to a client
// via NamingService.get_storage.
type Storage interface {
	// Identity returns a string that uniquely identifies the storage
	// server this stub addresses, used by the naming core to dedupe
	// replicas by stub identity and by the replication controller to pick
	// a storage server that does not already hold a path.
	Identity() string
	Size(ctx context.Context, p path.Path) (int64, error)
	Read(ctx context.Context, p path.Path, offset, length int64) ([]byte, error)
	Write(ctx context.Context, p path.Path, offset int64, data []byte) error
	// Endpoint returns the network and address a client should dial to
	// reach this storage server directly, for the naming core's
	// get_storage Service RPC to hand back to a client — a stub is only
	// useful to a remote caller if it is dialable.
	Endpoint() (network, address string)
}

// Command is the privileged capability of one storage server: creating,
// deleting, and copying files. The naming core issues Command calls
// itself, on createFile/delete/the replication controller's grow/the lock
// manager's invalidate-and-restore.
type Command interface {
	Identity() string
	Create(ctx context.Context, p path.Path) (bool, error)
	Delete(ctx context.Context, p path.Path) (bool, error)
	Copy(ctx context.Context, p path.Path, source Storage) (bool, error)
}

// SizeArgs, ReadArgs, and so on mirror the args/reply pair convention used
// for every net/rpc method in this server (see also naming.LockArgs/LockReply
// for the client-facing side of the same convention).
type (
	SizeArgs  struct{ Path string }
	SizeReply struct{ Size int64 }

	ReadArgs struct {
		Path           string
		Offset, Length int64
	}
	ReadReply struct{ Data []byte }

	WriteArgs struct {
		Path   string
		Offset int64
		Data   []byte
	}
	WriteReply struct{}

	CreateArgs  struct{ Path string }
	CreateReply struct{ OK bool }

	DeleteArgs  struct{ Path string }
	DeleteReply struct{ OK bool }

	CopyArgs struct {
		Path           string
		SourceIdentity string
	}
	CopyReply struct{ OK bool }
)

// RemoteStorage implements Storage by calling a remote endpoint serving a
// Storage.* net/rpc service: dial once at construction, then one
// client.Call per method.
type RemoteStorage struct {
	identity         string
	network, address string
	client           *rpc.Client
}

// NewRemoteStorage dials network/address and returns a Storage stub
// identified by identity (the address is typically sufficient, but the
// identity is kept distinct so tests can construct stubs without dialing).
func NewRemoteStorage(identity, network, address string) (*RemoteStorage, error) {
	client, err := rpc.DialHTTP(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "stub.NewRemoteStorage: dial %s %s", network, address)
	}
	return &RemoteStorage{identity: identity, network: network, address: address, client: client}, nil
}

func (s *RemoteStorage) Identity() string { return s.identity }

func (s *RemoteStorage) Endpoint() (network, address string) { return s.network, s.address }

func (s *RemoteStorage) Size(_ context.Context, p path.Path) (int64, error) {
	var reply SizeReply
	if err := s.client.Call("Storage.Size", SizeArgs{Path: p.String()}, &reply); err != nil {
		return 0, errors.Wrapf(err, "stub.RemoteStorage.Size: %s", p)
	}
	return reply.Size, nil
}

func (s *RemoteStorage) Read(_ context.Context, p path.Path, offset, length int64) ([]byte, error) {
	var reply ReadReply
	args := ReadArgs{Path: p.String(), Offset: offset, Length: length}
	if err := s.client.Call("Storage.Read", args, &reply); err != nil {
		return nil, errors.Wrapf(err, "stub.RemoteStorage.Read: %s", p)
	}
	return reply.Data, nil
}

func (s *RemoteStorage) Write(_ context.Context, p path.Path, offset int64, data []byte) error {
	args := WriteArgs{Path: p.String(), Offset: offset, Data: data}
	if err := s.client.Call("Storage.Write", args, &WriteReply{}); err != nil {
		return errors.Wrapf(err, "stub.RemoteStorage.Write: %s", p)
	}
	return nil
}

// RemoteCommand implements Command the same way RemoteStorage implements
// Storage: a thin net/rpc client wrapper.
type RemoteCommand struct {
	identity string
	client   *rpc.Client
}

// NewRemoteCommand dials network/address for the privileged Command
// service of one storage server.
func NewRemoteCommand(identity, network, address string) (*RemoteCommand, error) {
	client, err := rpc.DialHTTP(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "stub.NewRemoteCommand: dial %s %s", network, address)
	}
	return &RemoteCommand{identity: identity, client: client}, nil
}

func (c *RemoteCommand) Identity() string { return c.identity }

func (c *RemoteCommand) Create(_ context.Context, p path.Path) (bool, error) {
	var reply CreateReply
	if err := c.client.Call("Command.Create", CreateArgs{Path: p.String()}, &reply); err != nil {
		return false, errors.Wrapf(err, "stub.RemoteCommand.Create: %s", p)
	}
	return reply.OK, nil
}

func (c *RemoteCommand) Delete(_ context.Context, p path.Path) (bool, error) {
	var reply DeleteReply
	if err := c.client.Call("Command.Delete", DeleteArgs{Path: p.String()}, &reply); err != nil {
		return false, errors.Wrapf(err, "stub.RemoteCommand.Delete: %s", p)
	}
	return reply.OK, nil
}

func (c *RemoteCommand) Copy(_ context.Context, p path.Path, source Storage) (bool, error) {
	var reply CopyReply
	args := CopyArgs{Path: p.String(), SourceIdentity: source.Identity()}
	if err := c.client.Call("Command.Copy", args, &reply); err != nil {
		return false, errors.Wrapf(err, "stub.RemoteCommand.Copy: %s from %s", p, source.Identity())
	}
	return reply.OK, nil
}

// Pair bundles the two stubs the naming core stores per registered storage
// server. The global StorageStub -> CommandStub mapping is just this
// struct kept alongside every Storage occurrence (see the naming
// package's registry).
type Pair struct {
	Storage Storage
	Command Command
}

func (p Pair) String() string {
	if p.Storage == nil {
		return "<nil>"
	}
	return fmt.Sprintf("storage(%s)", p.Storage.Identity())
}
