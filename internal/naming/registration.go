package naming

import (
	"context"
	"fmt"
	"net/rpc"

	"github.com/pkg/errors"

	"github.com/nicolagi/naming/internal/nerr"
	"github.com/nicolagi/naming/internal/stub"
)

// RegisterArgs carries a storage server's dial-back coordinates plus its
// local file inventory. A Go stub.Storage/stub.Command value cannot cross
// the wire itself, so the registering server instead advertises the
// network/address/identity of both its Storage and Command net/rpc
// services; the naming server dials back via stub.NewRemoteStorage and
// stub.NewRemoteCommand before calling Core.Register.
type RegisterArgs struct {
	StorageIdentity string
	StorageNetwork  string
	StorageAddress  string

	CommandIdentity string
	CommandNetwork  string
	CommandAddress  string

	Files []string
}

// RegisterReply reports the paths the registering server must discard
// locally because they were already known under another server.
type RegisterReply struct {
	Duplicates []string
}

// Registration wraps a Core for use as the storage-server-facing net/rpc
// role interface, using the same *Service wrapping pattern service.go
// uses for the client-facing role.
type Registration struct {
	core *Core
}

// NewRegistration constructs a Registration over core.
func NewRegistration(core *Core) *Registration {
	return &Registration{core: core}
}

func (r *Registration) Register(args RegisterArgs, reply *RegisterReply) error {
	storage, err := stub.NewRemoteStorage(args.StorageIdentity, args.StorageNetwork, args.StorageAddress)
	if err != nil {
		return fmt.Errorf("%w: dial back storage: %v", nerr.ErrRPC, err)
	}
	command, err := stub.NewRemoteCommand(args.CommandIdentity, args.CommandNetwork, args.CommandAddress)
	if err != nil {
		return fmt.Errorf("%w: dial back command: %v", nerr.ErrRPC, err)
	}
	duplicates, err := r.core.Register(context.Background(), storage, command, args.Files)
	if err != nil {
		return err
	}
	reply.Duplicates = duplicates
	return nil
}

// RemoteRegistration implements a storage server's registration client
// against a remote Registration, the same *rpc.Client dial-and-call shape
// as RemoteService in service.go.
type RemoteRegistration struct {
	client *rpc.Client
}

// DialRegistration dials network/address for a naming server's
// storage-server-facing Registration interface.
func DialRegistration(network, address string) (*RemoteRegistration, error) {
	client, err := rpc.DialHTTP(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "naming.DialRegistration: dial %s %s", network, address)
	}
	return &RemoteRegistration{client: client}, nil
}

func (c *RemoteRegistration) Register(args RegisterArgs) ([]string, error) {
	var reply RegisterReply
	if err := c.client.Call("Registration.Register", args, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", nerr.ErrRPC, err)
	}
	return reply.Duplicates, nil
}
