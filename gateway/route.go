package gateway

import (
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/api/annotations"
)

// HTTPRoute is one REST binding: it maps requests with the given HTTP method
// and path shape onto a Twirp service method. Routes can be built in code,
// converted from google.api.http annotations with RoutesFromRule, or loaded
// from a file with LoadRoutesFromFile.
type HTTPRoute struct {
	// PackageName, ServiceName, and MethodName identify the Twirp method
	// this route targets. PackageName may be empty for services defined
	// outside any proto package.
	PackageName string `yaml:"package" json:"package"`
	ServiceName string `yaml:"service" json:"service"`
	MethodName  string `yaml:"method" json:"method"`

	// HTTPMethod is the REST verb, e.g. "GET".
	HTTPMethod string `yaml:"http_method" json:"http_method"`

	// Path is the path template: literal segments and {param}
	// placeholders, each matching one segment. Captured parameters become
	// string fields of the Twirp request body.
	Path string `yaml:"path" json:"path"`

	// BodyKey controls how the HTTP request body maps onto the Twirp
	// request: "*" means the JSON body is the whole request message, a
	// field name nests the body under that one field, and empty means the
	// body is not read at all.
	BodyKey string `yaml:"body,omitempty" json:"body,omitempty"`

	// ResponseBodyKey, when set, wraps the Twirp response as
	// {ResponseBodyKey: response} before replying; when empty the
	// response object is the reply body as is.
	ResponseBodyKey string `yaml:"response_body,omitempty" json:"response_body,omitempty"`

	// AdditionalBindings are further REST shapes for the same method.
	// They inherit nothing: each binding carries its own verb, path, and
	// body keys, but targets this route's method.
	AdditionalBindings []HTTPRoute `yaml:"additional_bindings,omitempty" json:"additional_bindings,omitempty"`
}

// FullServiceName returns the dot-qualified service name used on the wire.
func (r *HTTPRoute) FullServiceName() string {
	if r.PackageName == "" {
		return r.ServiceName
	}
	return r.PackageName + "." + r.ServiceName
}

func (r *HTTPRoute) validate() error {
	if r.ServiceName == "" || r.MethodName == "" {
		return fmt.Errorf("route %s %q: service and method are required", r.HTTPMethod, r.Path)
	}
	if r.HTTPMethod == "" {
		return fmt.Errorf("route for %s.%s: http_method is required", r.FullServiceName(), r.MethodName)
	}
	return nil
}

// RoutesFromRule converts a google.api.http annotation into routes, the
// primary binding first and additional bindings after, in order. The rule's
// selector must name the target method as "package.Service.Method";
// additional bindings take their identity from it and may not nest further,
// per the annotation contract.
func RoutesFromRule(rule *annotations.HttpRule) ([]HTTPRoute, error) {
	pkg, svc, method, err := splitSelector(rule.GetSelector())
	if err != nil {
		return nil, err
	}
	primary, err := routeFromRule(rule, pkg, svc, method)
	if err != nil {
		return nil, err
	}
	routes := []HTTPRoute{primary}
	for _, b := range rule.GetAdditionalBindings() {
		if len(b.GetAdditionalBindings()) > 0 {
			return nil, fmt.Errorf("rule %q: additional bindings may not nest", rule.GetSelector())
		}
		r, err := routeFromRule(b, pkg, svc, method)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func routeFromRule(rule *annotations.HttpRule, pkg, svc, method string) (HTTPRoute, error) {
	verb, path, err := rulePattern(rule)
	if err != nil {
		return HTTPRoute{}, fmt.Errorf("rule for %s.%s.%s: %w", pkg, svc, method, err)
	}
	return HTTPRoute{
		PackageName:     pkg,
		ServiceName:     svc,
		MethodName:      method,
		HTTPMethod:      verb,
		Path:            path,
		BodyKey:         rule.GetBody(),
		ResponseBodyKey: rule.GetResponseBody(),
	}, nil
}

func rulePattern(rule *annotations.HttpRule) (verb, path string, err error) {
	switch p := rule.GetPattern().(type) {
	case *annotations.HttpRule_Get:
		return "GET", p.Get, nil
	case *annotations.HttpRule_Put:
		return "PUT", p.Put, nil
	case *annotations.HttpRule_Post:
		return "POST", p.Post, nil
	case *annotations.HttpRule_Delete:
		return "DELETE", p.Delete, nil
	case *annotations.HttpRule_Patch:
		return "PATCH", p.Patch, nil
	case *annotations.HttpRule_Custom:
		return strings.ToUpper(p.Custom.GetKind()), p.Custom.GetPath(), nil
	default:
		return "", "", fmt.Errorf("no HTTP pattern set")
	}
}

func splitSelector(selector string) (pkg, svc, method string, err error) {
	parts := strings.Split(selector, ".")
	if len(parts) < 2 || parts[len(parts)-1] == "" || parts[len(parts)-2] == "" {
		return "", "", "", fmt.Errorf("selector %q must name a method as [package.]Service.Method", selector)
	}
	method = parts[len(parts)-1]
	svc = parts[len(parts)-2]
	pkg = strings.Join(parts[:len(parts)-2], ".")
	return pkg, svc, method, nil
}
