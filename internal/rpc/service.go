// Package rpc declares the BinQR gRPC service. Every method is unary and exchanges
// google.protobuf.Struct messages built by package convert.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "binqr.v1.BinQR"

// Method names.
const (
	MethodSignUp               = "SignUp"
	MethodSignIn               = "SignIn"
	MethodRefresh              = "Refresh"
	MethodSignOut              = "SignOut"
	MethodGetIdentity          = "GetIdentity"
	MethodGetProfile           = "GetProfile"
	MethodUpdateProfile        = "UpdateProfile"
	MethodRequestPasswordReset = "RequestPasswordReset"
	MethodResetPassword        = "ResetPassword"
	MethodUpdatePassword       = "UpdatePassword"

	MethodValidateInvite = "ValidateInvite"
	MethodCreateInvite   = "CreateInvite"
	MethodListInvites    = "ListInvites"
	MethodRevokeInvite   = "RevokeInvite"

	MethodListLocations      = "ListLocations"
	MethodCreateLocation     = "CreateLocation"
	MethodUpdateLocation     = "UpdateLocation"
	MethodDeleteLocation     = "DeleteLocation"
	MethodCountLocationBoxes = "CountLocationBoxes"

	MethodListBoxes     = "ListBoxes"
	MethodGetBox        = "GetBox"
	MethodCreateBox     = "CreateBox"
	MethodUpdateBox     = "UpdateBox"
	MethodFindBoxByCode = "FindBoxByCode"
	MethodSearchBoxes   = "SearchBoxes"
	MethodDeleteBox     = "DeleteBox"
)

// FullMethod returns the gRPC method path, e.g. "/binqr.v1.BinQR/SignIn".
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// publicMethods can be called without a bearer token.
var publicMethods = map[string]bool{
	FullMethod(MethodSignUp):               true,
	FullMethod(MethodSignIn):               true,
	FullMethod(MethodRefresh):              true,
	FullMethod(MethodRequestPasswordReset): true,
	FullMethod(MethodResetPassword):        true,
	FullMethod(MethodValidateInvite):       true,
}

// IsPublic reports whether fullMethod is served to anonymous callers.
func IsPublic(fullMethod string) bool { return publicMethods[fullMethod] }

// Handler is the server side of the service.
type Handler interface {
	SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignOut(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetIdentity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestPasswordReset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResetPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdatePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)

	ValidateInvite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateInvite(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListInvites(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokeInvite(context.Context, *structpb.Struct) (*structpb.Struct, error)

	ListLocations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CountLocationBoxes(context.Context, *structpb.Struct) (*structpb.Struct, error)

	ListBoxes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBox(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateBox(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateBox(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FindBoxByCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchBoxes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteBox(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(Handler, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn call) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := srv.(Handler)
			if interceptor == nil {
				return fn(h, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(h, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodSignUp, Handler.SignUp),
		unary(MethodSignIn, Handler.SignIn),
		unary(MethodRefresh, Handler.Refresh),
		unary(MethodSignOut, Handler.SignOut),
		unary(MethodGetIdentity, Handler.GetIdentity),
		unary(MethodGetProfile, Handler.GetProfile),
		unary(MethodUpdateProfile, Handler.UpdateProfile),
		unary(MethodRequestPasswordReset, Handler.RequestPasswordReset),
		unary(MethodResetPassword, Handler.ResetPassword),
		unary(MethodUpdatePassword, Handler.UpdatePassword),
		unary(MethodValidateInvite, Handler.ValidateInvite),
		unary(MethodCreateInvite, Handler.CreateInvite),
		unary(MethodListInvites, Handler.ListInvites),
		unary(MethodRevokeInvite, Handler.RevokeInvite),
		unary(MethodListLocations, Handler.ListLocations),
		unary(MethodCreateLocation, Handler.CreateLocation),
		unary(MethodUpdateLocation, Handler.UpdateLocation),
		unary(MethodDeleteLocation, Handler.DeleteLocation),
		unary(MethodCountLocationBoxes, Handler.CountLocationBoxes),
		unary(MethodListBoxes, Handler.ListBoxes),
		unary(MethodGetBox, Handler.GetBox),
		unary(MethodCreateBox, Handler.CreateBox),
		unary(MethodUpdateBox, Handler.UpdateBox),
		unary(MethodFindBoxByCode, Handler.FindBoxByCode),
		unary(MethodSearchBoxes, Handler.SearchBoxes),
		unary(MethodDeleteBox, Handler.DeleteBox),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "binqr/v1/binqr.proto",
}

// RegisterServer registers h on s.
func RegisterServer(s grpc.ServiceRegistrar, h Handler) {
	s.RegisterService(&ServiceDesc, h)
}

// Client invokes service methods over a connection and restores domain errors.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call invokes method with req. A nil req is sent as an empty message.
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, FromStatus(err)
	}
	return out, nil
}
