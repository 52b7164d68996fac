package twirp

import (
	"context"
)

// WithInterceptor returns a view of the given ServiceRegistry that will
// automatically apply the given interceptors to all services registered
// through it. This is how interceptors are attached when services are
// accumulated in a shared registry instead of being built into individual
// servers:
//
//	reg := twirp.HandlerMap{}
//	intercepted := twirp.WithInterceptor(reg, authInterceptor, quotaInterceptor)
//	haberdasherpb.RegisterHaberdasherServer(intercepted, svc)
//
// The first interceptor in the set is outermost, per ChainInterceptors.
// Interceptors registered on a server that serves the registry's services
// run outside the ones applied here. If no interceptors are given, reg is
// returned unchanged.
func WithInterceptor(reg ServiceRegistry, interceptors ...Interceptor) ServiceRegistry {
	if len(interceptors) == 0 {
		return reg
	}
	if intReg, ok := reg.(*interceptingRegistry); ok {
		// Instead of building a chain of multiple interceptingRegistry
		// instances, build a single one with the combined set of interceptors.
		reg = intReg.reg
		interceptors = append(interceptors, intReg.interceptor)
	}
	interceptor := ChainInterceptors(interceptors...)
	if interceptor == nil {
		return reg
	}
	return &interceptingRegistry{reg: reg, interceptor: interceptor}
}

type interceptingRegistry struct {
	reg         ServiceRegistry
	interceptor Interceptor
}

func (r *interceptingRegistry) RegisterService(desc *ServiceDesc, impl any) {
	r.reg.RegisterService(InterceptService(desc, r.interceptor), impl)
}

// InterceptService returns a new service description whose method handlers
// run interceptor around every invocation. If interceptor is nil, desc is
// returned unchanged. When a server registers its own interceptors on top,
// those run outermost, then interceptor, then the method implementation.
func InterceptService(desc *ServiceDesc, interceptor Interceptor) *ServiceDesc {
	if interceptor == nil {
		return desc
	}
	intercepted := *desc
	intercepted.Methods = make([]MethodDesc, len(desc.Methods))
	for i, md := range desc.Methods {
		origHandler := md.Handler
		intercepted.Methods[i] = MethodDesc{
			MethodName: md.MethodName,
			Handler: func(srv any, ctx context.Context, dec func(any) error, serverInt Interceptor) (any, error) {
				return origHandler(srv, ctx, dec, ChainInterceptors(serverInt, interceptor))
			},
		}
	}
	return &intercepted
}
