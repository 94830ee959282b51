package naming

import (
	"context"
	"fmt"
	"net/rpc"

	"github.com/pkg/errors"

	"github.com/nicolagi/naming/internal/nerr"
)

// LockArgs, UnlockArgs, and so on mirror the args/reply pair convention
// used for every net/rpc method exposed by this server (see also
// stub.SizeArgs/SizeReply for the storage-facing side of the same
// convention). Transport errors surface to the client as nerr.ErrRPC.
type (
	LockArgs  struct{ Path string; Exclusive bool }
	LockReply struct{}

	UnlockArgs  struct{ Path string; Exclusive bool }
	UnlockReply struct{}

	IsDirectoryArgs  struct{ Path string }
	IsDirectoryReply struct{ IsDirectory bool }

	ListArgs  struct{ Path string }
	ListReply struct{ Names []string }

	CreateFileArgs  struct{ Path string }
	CreateFileReply struct{ Created bool }

	CreateDirectoryArgs  struct{ Path string }
	CreateDirectoryReply struct{ Created bool }

	DeleteArgs  struct{ Path string }
	DeleteReply struct{ Deleted bool }

	GetStorageArgs  struct{ Path string }
	GetStorageReply struct {
		Network  string
		Address  string
		Identity string
	}
)

// Service wraps a Core for use as the client-facing net/rpc role interface:
// a thin net/rpc-method-per-field-struct shim around the facade, the same
// wrapping pattern Registration in registration.go uses around a Core for
// the storage-server-facing role.
type Service struct {
	core *Core
}

// NewService constructs a Service over core.
func NewService(core *Core) *Service {
	return &Service{core: core}
}

func (s *Service) Lock(args LockArgs, reply *LockReply) error {
	return s.core.Lock(context.Background(), args.Path, args.Exclusive)
}

func (s *Service) Unlock(args UnlockArgs, reply *UnlockReply) error {
	return s.core.Unlock(context.Background(), args.Path, args.Exclusive)
}

func (s *Service) IsDirectory(args IsDirectoryArgs, reply *IsDirectoryReply) error {
	isDir, err := s.core.IsDirectory(args.Path)
	if err != nil {
		return err
	}
	reply.IsDirectory = isDir
	return nil
}

func (s *Service) List(args ListArgs, reply *ListReply) error {
	names, err := s.core.List(args.Path)
	if err != nil {
		return err
	}
	reply.Names = names
	return nil
}

func (s *Service) CreateFile(args CreateFileArgs, reply *CreateFileReply) error {
	created, err := s.core.CreateFile(context.Background(), args.Path)
	if err != nil {
		return err
	}
	reply.Created = created
	return nil
}

func (s *Service) CreateDirectory(args CreateDirectoryArgs, reply *CreateDirectoryReply) error {
	created, err := s.core.CreateDirectory(context.Background(), args.Path)
	if err != nil {
		return err
	}
	reply.Created = created
	return nil
}

func (s *Service) Delete(args DeleteArgs, reply *DeleteReply) error {
	deleted, err := s.core.Delete(context.Background(), args.Path)
	if err != nil {
		return err
	}
	reply.Deleted = deleted
	return nil
}

func (s *Service) GetStorage(args GetStorageArgs, reply *GetStorageReply) error {
	storage, err := s.core.GetStorage(args.Path)
	if err != nil {
		return err
	}
	network, address := storage.Endpoint()
	reply.Network = network
	reply.Address = address
	reply.Identity = storage.Identity()
	return nil
}

// RemoteService implements a naming client against a remote Service: a
// thin *rpc.Client dial-and-call wrapper, one method per role operation.
type RemoteService struct {
	client *rpc.Client
}

// DialService dials network/address for a naming server's client-facing
// Service interface.
func DialService(network, address string) (*RemoteService, error) {
	client, err := rpc.DialHTTP(network, address)
	if err != nil {
		return nil, errors.Wrapf(err, "naming.DialService: dial %s %s", network, address)
	}
	return &RemoteService{client: client}, nil
}

func (c *RemoteService) call(method string, args, reply interface{}) error {
	if err := c.client.Call("Service."+method, args, reply); err != nil {
		return fmt.Errorf("%w: %v", nerr.ErrRPC, err)
	}
	return nil
}

func (c *RemoteService) Lock(path string, exclusive bool) error {
	return c.call("Lock", LockArgs{Path: path, Exclusive: exclusive}, &LockReply{})
}

func (c *RemoteService) Unlock(path string, exclusive bool) error {
	return c.call("Unlock", UnlockArgs{Path: path, Exclusive: exclusive}, &UnlockReply{})
}

func (c *RemoteService) IsDirectory(path string) (bool, error) {
	var reply IsDirectoryReply
	err := c.call("IsDirectory", IsDirectoryArgs{Path: path}, &reply)
	return reply.IsDirectory, err
}

func (c *RemoteService) List(path string) ([]string, error) {
	var reply ListReply
	err := c.call("List", ListArgs{Path: path}, &reply)
	return reply.Names, err
}

func (c *RemoteService) CreateFile(path string) (bool, error) {
	var reply CreateFileReply
	err := c.call("CreateFile", CreateFileArgs{Path: path}, &reply)
	return reply.Created, err
}

func (c *RemoteService) CreateDirectory(path string) (bool, error) {
	var reply CreateDirectoryReply
	err := c.call("CreateDirectory", CreateDirectoryArgs{Path: path}, &reply)
	return reply.Created, err
}

func (c *RemoteService) Delete(path string) (bool, error) {
	var reply DeleteReply
	err := c.call("Delete", DeleteArgs{Path: path}, &reply)
	return reply.Deleted, err
}

func (c *RemoteService) GetStorage(path string) (GetStorageReply, error) {
	var reply GetStorageReply
	err := c.call("GetStorage", GetStorageArgs{Path: path}, &reply)
	return reply, err
}
