// Package admin exposes cluster administration and store access over gRPC.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"globaldb/pkg/cluster"
	"globaldb/pkg/globaldb"
	"globaldb/pkg/identifier"
	"globaldb/pkg/link"
	"globaldb/pkg/metrics"
	"globaldb/pkg/storage"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// watchBuffer bounds the events held for one slow watcher before new
// events are dropped.
const watchBuffer = 256

type ServerOptions struct {
	Token string
	// Monitor supplies the health score for Status. The score is computed
	// from a fresh snapshot when nil.
	Monitor *metrics.HealthMonitor
}

type Server struct {
	inst    *globaldb.Instance
	store   *storage.Store
	monitor *metrics.HealthMonitor
	logger  *zap.Logger

	grpcServer *grpc.Server
	listener   net.Listener
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewServer creates an admin server. store may be nil, in which case the
// data calls return Unimplemented.
func NewServer(inst *globaldb.Instance, store *storage.Store, opts ServerOptions, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		inst:    inst,
		store:   store,
		monitor: opts.Monitor,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	tokens := NewTokenInterceptor(opts.Token)
	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(tokens.UnaryServerInterceptor(), loggingUnaryInterceptor(logger)),
		grpc.ChainStreamInterceptor(tokens.StreamServerInterceptor()),
	)
	RegisterAdminServer(s.grpcServer, s)
	return s
}

// Start listens on address and serves in the background.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.listener = listener

	s.logger.Info("Admin server starting", zap.String("address", listener.Addr().String()))
	go func() {
		if err := s.Serve(listener); err != nil {
			s.logger.Error("Admin server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Serve serves on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Addr returns the listening address after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop ends open watches and waits for in-flight calls.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.grpcServer.GracefulStop()
}

func (s *Server) CreateCluster(ctx context.Context, req *CreateClusterRequest) (*CreateClusterResponse, error) {
	cfg, err := globaldb.ClusterConfig(req.Cluster)
	if err != nil {
		return nil, toStatus(err)
	}
	c, err := s.inst.CreateCluster(cfg)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CreateClusterResponse{Cluster: describe(c)}, nil
}

func (s *Server) ListClusters(ctx context.Context, req *ListClustersRequest) (*ListClustersResponse, error) {
	clusters := s.inst.Clusters()
	resp := &ListClustersResponse{Clusters: make([]ClusterInfo, 0, len(clusters))}
	for _, c := range clusters {
		resp.Clusters = append(resp.Clusters, describe(c))
	}
	return resp, nil
}

func (s *Server) ClusterByGroup(ctx context.Context, req *ClusterByGroupRequest) (*ClusterByGroupResponse, error) {
	c := s.inst.ClusterByGroup(req.Group)
	if c == nil {
		return &ClusterByGroupResponse{}, nil
	}
	info := describe(c)
	return &ClusterByGroupResponse{Cluster: &info}, nil
}

func (s *Server) MemberAdd(ctx context.Context, req *MemberAddRequest) (*MemberAddResponse, error) {
	c, err := s.lookup(req.Cluster)
	if err != nil {
		return nil, err
	}
	if req.Address == "" {
		return nil, status.Error(codes.InvalidArgument, "member address is empty")
	}
	role := cluster.RoleDefault
	if req.Role != "" {
		if role, err = cluster.ParseRole(req.Role); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	m, err := c.MemberAdd(req.Address, role)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MemberAddResponse{Member: memberInfo(m)}, nil
}

func (s *Server) MemberDelete(ctx context.Context, req *MemberDeleteRequest) (*MemberDeleteResponse, error) {
	c, err := s.lookup(req.Cluster)
	if err != nil {
		return nil, err
	}
	return &MemberDeleteResponse{Removed: c.MemberDelete(req.Address)}, nil
}

func (s *Server) AssociateNetwork(ctx context.Context, req *AssociateNetworkRequest) (*AssociateNetworkResponse, error) {
	c, err := s.lookup(req.Cluster)
	if err != nil {
		return nil, err
	}
	if err := s.inst.Associate(c, req.NetworkID); err != nil {
		return nil, toStatus(err)
	}
	return &AssociateNetworkResponse{Associated: true}, nil
}

func (s *Server) Put(ctx context.Context, req *PutRequest) (*WriteResponse, error) {
	if s.store == nil {
		return nil, status.Error(codes.Unimplemented, "no store configured")
	}
	n, err := s.store.Put(req.Group, req.Key, req.Value)
	if err != nil {
		return nil, toStatus(err)
	}
	return &WriteResponse{Notified: n}, nil
}

func (s *Server) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	if s.store == nil {
		return nil, status.Error(codes.Unimplemented, "no store configured")
	}
	value, err := s.store.Get(req.Group, req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetResponse{Value: value}, nil
}

func (s *Server) Delete(ctx context.Context, req *DeleteRequest) (*WriteResponse, error) {
	if s.store == nil {
		return nil, status.Error(codes.Unimplemented, "no store configured")
	}
	n, err := s.store.Delete(req.Group, req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &WriteResponse{Notified: n}, nil
}

func (s *Server) Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	snap := s.inst.Snapshot()
	resp := &StatusResponse{Snapshot: snap, Health: metrics.Score(snap)}
	if s.monitor != nil {
		resp.Health, _ = s.monitor.GetHealth()
	}
	if t := s.inst.Links(); t != nil {
		resp.Networks = t.Networks()
	}
	return resp, nil
}

// Watch streams the mutations of one cluster until the client goes away.
// Events that do not fit the per-watcher buffer are dropped.
func (s *Server) Watch(req *WatchRequest, stream WatchStream) error {
	c, err := s.lookup(req.Cluster)
	if err != nil {
		return err
	}

	events := make(chan *Event, watchBuffer)
	var dropped atomic.Uint64
	sub, err := c.NotifyAdd(func(c *cluster.Cluster, m cluster.Mutation, _ interface{}) error {
		ev := &Event{
			Cluster: c.Name(),
			Group:   m.Group,
			Key:     m.Key,
			Value:   m.Value,
			Op:      m.Op.String(),
			Time:    time.Now(),
		}
		select {
		case events <- ev:
		default:
			dropped.Add(1)
		}
		return nil
	}, nil)
	if err != nil {
		return toStatus(err)
	}
	defer sub.Cancel()

	s.logger.Info("Watch started",
		zap.String("cluster", c.Name()),
		zap.Uint64("subscription", sub.ID()))
	defer func() {
		s.logger.Info("Watch ended",
			zap.String("cluster", c.Name()),
			zap.Uint64("subscription", sub.ID()),
			zap.Uint64("dropped", dropped.Load()))
	}()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopCh:
			return status.Error(codes.Unavailable, "admin server stopping")
		case ev := <-events:
			if err := stream.Send(ev); err != nil {
				return err
			}
		}
	}
}

// lookup resolves a cluster by hex identifier or mnemonic.
func (s *Server) lookup(ref string) (*cluster.Cluster, error) {
	if ref == "" {
		return nil, status.Error(codes.InvalidArgument, "cluster reference is empty")
	}
	if len(ref) == identifier.HexLen {
		if id, err := identifier.ParseHex(ref); err == nil {
			if c := s.inst.Registry().ClusterByID(id); c != nil {
				return c, nil
			}
		}
	}
	if c := s.inst.ClusterByMnemonic(ref); c != nil {
		return c, nil
	}
	return nil, status.Errorf(codes.NotFound, "cluster %q not found", ref)
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var cfgErr *cluster.ConfigurationError
	var assocErr *link.AssociationError
	switch {
	case errors.As(err, &cfgErr),
		errors.Is(err, identifier.ErrInvalidFormat),
		errors.Is(err, cluster.ErrInvalidRole),
		errors.Is(err, cluster.ErrNilCallback),
		errors.Is(err, storage.ErrInvalidKey),
		errors.Is(err, storage.ErrValueTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &assocErr):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, cluster.ErrTornDown),
		errors.Is(err, globaldb.ErrShutdown),
		errors.Is(err, storage.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
