package admin

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "globaldb.Admin"

// AdminServer is the server side of the admin service.
type AdminServer interface {
	CreateCluster(context.Context, *CreateClusterRequest) (*CreateClusterResponse, error)
	ListClusters(context.Context, *ListClustersRequest) (*ListClustersResponse, error)
	ClusterByGroup(context.Context, *ClusterByGroupRequest) (*ClusterByGroupResponse, error)
	MemberAdd(context.Context, *MemberAddRequest) (*MemberAddResponse, error)
	MemberDelete(context.Context, *MemberDeleteRequest) (*MemberDeleteResponse, error)
	AssociateNetwork(context.Context, *AssociateNetworkRequest) (*AssociateNetworkResponse, error)
	Put(context.Context, *PutRequest) (*WriteResponse, error)
	Get(context.Context, *GetRequest) (*GetResponse, error)
	Delete(context.Context, *DeleteRequest) (*WriteResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Watch(*WatchRequest, WatchStream) error
}

// WatchStream is the server side of a Watch call.
type WatchStream interface {
	Send(*Event) error
	Context() context.Context
}

type watchStream struct {
	grpc.ServerStream
}

func (s *watchStream) Send(ev *Event) error {
	return s.ServerStream.SendMsg(ev)
}

var watchStreamDesc = grpc.StreamDesc{
	StreamName:    "Watch",
	ServerStreams: true,
	Handler: func(srv interface{}, stream grpc.ServerStream) error {
		in := new(WatchRequest)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return srv.(AdminServer).Watch(in, &watchStream{stream})
	},
}

// ServiceDesc describes the admin service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateCluster", AdminServer.CreateCluster),
		unary("ListClusters", AdminServer.ListClusters),
		unary("ClusterByGroup", AdminServer.ClusterByGroup),
		unary("MemberAdd", AdminServer.MemberAdd),
		unary("MemberDelete", AdminServer.MemberDelete),
		unary("AssociateNetwork", AdminServer.AssociateNetwork),
		unary("Put", AdminServer.Put),
		unary("Get", AdminServer.Get),
		unary("Delete", AdminServer.Delete),
		unary("Status", AdminServer.Status),
	},
	Streams:  []grpc.StreamDesc{watchStreamDesc},
	Metadata: "globaldb/admin",
}

// RegisterAdminServer registers srv on s.
func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(AdminServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(AdminServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
