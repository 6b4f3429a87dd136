package face

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The extractor service speaks well-known types so neither side needs
// generated stubs: BytesValue (image) in, ListValue of numbers out. An
// empty list means no face.
const (
	extractorService = "janus.face.v1.Extractor"
	extractMethod    = "/" + extractorService + "/Extract"
)

// ErrBadEmbedding: the service answered with something other than numbers.
var ErrBadEmbedding = errors.New("extractor returned a malformed embedding")

// GRPCExtractor calls a remote extractor service.
type GRPCExtractor struct {
	conn *grpc.ClientConn
}

// DialExtractor connects to addr without TLS; the extractor is expected
// to sit next to the server on a private network.
func DialExtractor(addr string, opts ...grpc.DialOption) (*GRPCExtractor, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial extractor %s: %w", addr, err)
	}
	return &GRPCExtractor{conn: conn}, nil
}

func (g *GRPCExtractor) Close() error { return g.conn.Close() }

func (g *GRPCExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	out := new(structpb.ListValue)
	if err := g.conn.Invoke(ctx, extractMethod, wrapperspb.Bytes(image), out); err != nil {
		switch status.Code(err) {
		case codes.InvalidArgument:
			return nil, fmt.Errorf("%w: %s", ErrUndecodable, status.Convert(err).Message())
		case codes.DeadlineExceeded:
			return nil, fmt.Errorf("extract: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("extract: %w", err)
	}

	vals := out.GetValues()
	if len(vals) == 0 {
		return nil, ErrNoFace
	}
	emb := make([]float32, len(vals))
	for i, v := range vals {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %T", ErrBadEmbedding, i, v.GetKind())
		}
		emb[i] = float32(n.NumberValue)
	}
	return emb, nil
}

// RegisterExtractorServer exposes e as the extractor service on s, so a
// standalone extractor process (or a test) can serve any Extractor.
func RegisterExtractorServer(s grpc.ServiceRegistrar, e Extractor) {
	s.RegisterService(&extractorServiceDesc, e)
}

var extractorServiceDesc = grpc.ServiceDesc{
	ServiceName: extractorService,
	HandlerType: (*Extractor)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Extract",
		Handler:    extractHandler,
	}},
	Streams: []grpc.StreamDesc{},
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		emb, err := srv.(Extractor).Extract(ctx, req.(*wrapperspb.BytesValue).GetValue())
		switch {
		case errors.Is(err, ErrNoFace):
			return &structpb.ListValue{}, nil
		case errors.Is(err, ErrUndecodable):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case err != nil:
			return nil, status.Error(codes.Internal, err.Error())
		}
		out := &structpb.ListValue{Values: make([]*structpb.Value, len(emb))}
		for i, f := range emb {
			out.Values[i] = structpb.NewNumberValue(float64(f))
		}
		return out, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: extractMethod}
	return interceptor(ctx, in, info, call)
}
