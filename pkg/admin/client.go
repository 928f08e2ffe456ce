package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"globaldb/pkg/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote admin server.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to an admin server. extra options are appended after the
// defaults, which makes them suitable for custom dialers in tests.
func Dial(address, token string, extra ...grpc.DialOption) (*Client, error) {
	tokens := NewTokenInterceptor(token)
	backoffConfig := backoff.Config{
		BaseDelay:  500 * time.Millisecond,
		Multiplier: 1.5,
		Jitter:     0.2,
		MaxDelay:   10 * time.Second,
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoffConfig,
			MinConnectTimeout: 5 * time.Second,
		}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
		grpc.WithChainUnaryInterceptor(tokens.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(tokens.StreamClientInterceptor()),
	}
	opts = append(opts, extra...)

	conn, err := grpc.Dial(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	return c.conn.Invoke(ctx, fullMethod(method), req, resp)
}

func (c *Client) CreateCluster(ctx context.Context, cc config.ClusterConfig) (*ClusterInfo, error) {
	resp := new(CreateClusterResponse)
	if err := c.invoke(ctx, "CreateCluster", &CreateClusterRequest{Cluster: cc}, resp); err != nil {
		return nil, err
	}
	return &resp.Cluster, nil
}

func (c *Client) ListClusters(ctx context.Context) ([]ClusterInfo, error) {
	resp := new(ListClustersResponse)
	if err := c.invoke(ctx, "ListClusters", &ListClustersRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.Clusters, nil
}

// ClusterByGroup returns nil when no cluster owns group.
func (c *Client) ClusterByGroup(ctx context.Context, group string) (*ClusterInfo, error) {
	resp := new(ClusterByGroupResponse)
	if err := c.invoke(ctx, "ClusterByGroup", &ClusterByGroupRequest{Group: group}, resp); err != nil {
		return nil, err
	}
	return resp.Cluster, nil
}

func (c *Client) MemberAdd(ctx context.Context, clusterRef, address, role string) (*MemberInfo, error) {
	resp := new(MemberAddResponse)
	req := &MemberAddRequest{Cluster: clusterRef, Address: address, Role: role}
	if err := c.invoke(ctx, "MemberAdd", req, resp); err != nil {
		return nil, err
	}
	return &resp.Member, nil
}

func (c *Client) MemberDelete(ctx context.Context, clusterRef, address string) (bool, error) {
	resp := new(MemberDeleteResponse)
	req := &MemberDeleteRequest{Cluster: clusterRef, Address: address}
	if err := c.invoke(ctx, "MemberDelete", req, resp); err != nil {
		return false, err
	}
	return resp.Removed, nil
}

func (c *Client) AssociateNetwork(ctx context.Context, clusterRef string, networkID uint64) error {
	req := &AssociateNetworkRequest{Cluster: clusterRef, NetworkID: networkID}
	return c.invoke(ctx, "AssociateNetwork", req, new(AssociateNetworkResponse))
}

func (c *Client) Put(ctx context.Context, group, key string, value []byte) (int, error) {
	resp := new(WriteResponse)
	if err := c.invoke(ctx, "Put", &PutRequest{Group: group, Key: key, Value: value}, resp); err != nil {
		return 0, err
	}
	return resp.Notified, nil
}

func (c *Client) Get(ctx context.Context, group, key string) ([]byte, error) {
	resp := new(GetResponse)
	if err := c.invoke(ctx, "Get", &GetRequest{Group: group, Key: key}, resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (c *Client) Delete(ctx context.Context, group, key string) (int, error) {
	resp := new(WriteResponse)
	if err := c.invoke(ctx, "Delete", &DeleteRequest{Group: group, Key: key}, resp); err != nil {
		return 0, err
	}
	return resp.Notified, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	resp := new(StatusResponse)
	if err := c.invoke(ctx, "Status", &StatusRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Watch streams events of clusterRef to fn until ctx ends, the server
// closes the stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, clusterRef string, fn func(*Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(ctx, &watchStreamDesc, fullMethod("Watch"))
	if err != nil {
		return err
	}
	// io.EOF here means the server already ended the stream; RecvMsg
	// reports the real status.
	if err := stream.SendMsg(&WatchRequest{Cluster: clusterRef}); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		ev := new(Event)
		if err := stream.RecvMsg(ev); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
