package twirp

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// contentType identifies the serialization negotiated for a request. Twirp
// supports exactly two encodings; anything else routes to a BadRoute error
// before the method is resolved.
type contentType int

const (
	contentTypeUnknown contentType = iota
	contentTypeJSON
	contentTypeProtobuf
)

// contentTypeFromHeader classifies a Content-Type header value. Media type
// parameters (e.g. "; charset=utf-8") are ignored.
func contentTypeFromHeader(header string) contentType {
	mediaType := strings.TrimSpace(strings.SplitN(header, ";", 2)[0])
	switch mediaType {
	case "application/json":
		return contentTypeJSON
	case "application/protobuf":
		return contentTypeProtobuf
	default:
		return contentTypeUnknown
	}
}

// String returns the canonical header value for the content type, or "" for
// unknown. Responses echo this back so the reply encoding always matches the
// request encoding.
func (t contentType) String() string {
	switch t {
	case contentTypeJSON:
		return "application/json"
	case contentTypeProtobuf:
		return "application/protobuf"
	default:
		return ""
	}
}

// jsonCodec bundles the protojson options one server or client serializes
// with. The defaults emit unpopulated fields so that clients in weakly-typed
// environments always see a complete object, and discard unknown fields so
// that old servers tolerate new clients.
type jsonCodec struct {
	marshal   protojson.MarshalOptions
	unmarshal protojson.UnmarshalOptions
}

var defaultJSONCodec = jsonCodec{
	marshal:   protojson.MarshalOptions{EmitUnpopulated: true, UseProtoNames: true},
	unmarshal: protojson.UnmarshalOptions{DiscardUnknown: true},
}

// marshalMessage serializes msg with the given negotiated encoding.
func (c jsonCodec) marshalMessage(t contentType, msg proto.Message) ([]byte, error) {
	switch t {
	case contentTypeJSON:
		return c.marshal.Marshal(msg)
	case contentTypeProtobuf:
		return proto.Marshal(msg)
	default:
		return nil, fmt.Errorf("unsupported content type %d", t)
	}
}

// unmarshalMessage deserializes data into msg with the given negotiated
// encoding.
func (c jsonCodec) unmarshalMessage(t contentType, data []byte, msg proto.Message) error {
	switch t {
	case contentTypeJSON:
		return c.unmarshal.Unmarshal(data, msg)
	case contentTypeProtobuf:
		return proto.Unmarshal(data, msg)
	default:
		return fmt.Errorf("unsupported content type %d", t)
	}
}
