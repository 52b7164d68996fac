package twirp

import "context"

// MethodHandler is the signature of a generated method handler. It is given
// the registered service implementation, a dec function that decodes the
// request body into a freshly allocated request message, and the server's
// combined interceptor (nil when none are registered). The handler decodes,
// runs the interceptor chain around the implementation, and returns the
// response message.
type MethodHandler func(srv any, ctx context.Context, dec func(any) error, interceptor Interceptor) (any, error)

// MethodDesc describes one unary RPC method of a service.
type MethodDesc struct {
	MethodName string
	Handler    MethodHandler
}

// ServiceDesc describes a Twirp service: its protobuf identity and its
// method table. Generated bindings produce one of these per service; servers
// consume them to route requests.
type ServiceDesc struct {
	// PackageName is the proto package the service was defined in, empty
	// if it was defined outside any package.
	PackageName string
	// ServiceName is the unqualified service name.
	ServiceName string
	// HandlerType is a nil pointer to the service interface, used only to
	// type-check implementations at registration time.
	HandlerType any
	Methods     []MethodDesc
}

// FullName returns the dot-qualified service name that appears in request
// paths, e.g. "twitch.twirp.example.Haberdasher". For a service without a
// package it is the bare service name, with no leading dot.
func (sd *ServiceDesc) FullName() string {
	if sd.PackageName == "" {
		return sd.ServiceName
	}
	return sd.PackageName + "." + sd.ServiceName
}

// method looks up a method descriptor by name.
func (sd *ServiceDesc) method(name string) (*MethodDesc, bool) {
	for i := range sd.Methods {
		if sd.Methods[i].MethodName == name {
			return &sd.Methods[i], true
		}
	}
	return nil, false
}
