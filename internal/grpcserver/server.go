package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"covidash/internal/dashboard"
	"covidash/internal/series"
)

const ServiceName = "covidash.SeriesService"

// SeriesServer is the server side of covidash.SeriesService. Every method
// takes and returns a google.protobuf.Struct.
type SeriesServer interface {
	Regions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Lines(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Deltas(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Map(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Share(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	Data  *dashboard.Dataset
	Codes series.CodeLookup
}

func NewServer(data *dashboard.Dataset, codes series.CodeLookup) *Server {
	return &Server{Data: data, Codes: codes}
}

func (s *Server) Regions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	return toStruct(dashboard.Regions(e))
}

func (s *Server) Lines(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	mode, err := series.ParseMode(stringField(req, "mode"))
	if err != nil {
		return nil, toStatus(err)
	}
	lines, err := e.Lines(mode)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"mode": mode, "series": lines})
}

func (s *Server) Deltas(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	mode, err := series.ParseMode(stringField(req, "mode"))
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := e.Deltas(mode)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"mode": mode, "series": out})
}

func (s *Server) Map(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	day, err := dayField(req)
	if err != nil {
		return nil, err
	}
	v, err := dashboard.Map(e, day, s.Codes)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(v)
}

func (s *Server) Share(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := s.engine()
	if err != nil {
		return nil, err
	}
	day, err := dayField(req)
	if err != nil {
		return nil, err
	}
	merged := true
	if f, ok := req.GetFields()["merged"]; ok {
		b, isBool := f.GetKind().(*structpb.Value_BoolValue)
		if !isBool {
			return nil, status.Error(codes.InvalidArgument, "merged must be a bool")
		}
		merged = b.BoolValue
	}
	v, err := dashboard.Share(e, day, merged)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(v)
}

func (s *Server) engine() (*series.Engine, error) {
	e, err := s.Data.Engine()
	if err != nil {
		return nil, toStatus(err)
	}
	return e, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, series.ErrDayOffsetOutOfRange), errors.Is(err, series.ErrUnknownMode):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, series.ErrDegenerateTotal):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, dashboard.ErrNotLoaded):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// toStruct converts v through its JSON form so the field names match the
// HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	return out, nil
}

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

// dayField reads an optional whole-number "day"; absent means latest.
func dayField(req *structpb.Struct) (*int, error) {
	f, ok := req.GetFields()["day"]
	if !ok {
		return nil, nil
	}
	n, isNum := f.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return nil, status.Error(codes.InvalidArgument, "day must be a whole number")
	}
	day := int(n.NumberValue)
	return &day, nil
}

// Register attaches srv to gs under covidash.SeriesService.
func Register(gs grpc.ServiceRegistrar, srv SeriesServer) {
	gs.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SeriesServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Regions", SeriesServer.Regions),
		unary("Lines", SeriesServer.Lines),
		unary("Deltas", SeriesServer.Deltas),
		unary("Map", SeriesServer.Map),
		unary("Share", SeriesServer.Share),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "covidash/series.proto",
}

type unaryMethod func(SeriesServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SeriesServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SeriesServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
