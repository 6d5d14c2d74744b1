package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/wealthflow-core/internal/domain"
	"github.com/simaogato/wealthflow-core/internal/usecase/currency"
	"github.com/simaogato/wealthflow-core/internal/usecase/investment"
	"github.com/simaogato/wealthflow-core/internal/usecase/quotes"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ControlServiceName is the fully qualified name of the control service
const ControlServiceName = "wealthflow.v1.Control"

// Full method names of the control service
const (
	MethodStreamEvents   = "/" + ControlServiceName + "/StreamEvents"
	MethodRefreshPrices  = "/" + ControlServiceName + "/RefreshPrices"
	MethodSwitchCurrency = "/" + ControlServiceName + "/SwitchCurrency"
	MethodTrackAsset     = "/" + ControlServiceName + "/TrackAsset"
)

// PriceRefresher refreshes every tracked asset on demand
type PriceRefresher interface {
	ForceRefreshAll(ctx context.Context) (*quotes.RefreshSummary, error)
}

// CurrencySwitcher changes the base currency and converts every amount
type CurrencySwitcher interface {
	ConvertAllValues(ctx context.Context, newBase string) (*currency.ConversionResult, error)
}

// AssetAdder stores a new asset
type AssetAdder interface {
	AddAsset(ctx context.Context, input investment.AddAssetInput) (*domain.Asset, error)
}

// ControlServer is the handler contract of the control service.
// Messages are protobuf well-known types so no generated code is needed.
type ControlServer interface {
	StreamEvents(*emptypb.Empty, grpc.ServerStream) error
	RefreshPrices(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SwitchCurrency(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	TrackAsset(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Control implements ControlServer on top of the core services
type Control struct {
	Refresher PriceRefresher
	Switcher  CurrencySwitcher
	Assets    AssetAdder
	events    *eventFeed
}

// RefreshPrices handles the RefreshPrices RPC
func (c *Control) RefreshPrices(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	summary, err := c.Refresher.ForceRefreshAll(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	errs := make([]interface{}, 0, len(summary.Errors))
	for _, e := range summary.Errors {
		errs = append(errs, e)
	}
	return newStruct(map[string]interface{}{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"errors":    errs,
	})
}

// SwitchCurrency handles the SwitchCurrency RPC
func (c *Control) SwitchCurrency(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "currency is required")
	}

	result, err := c.Switcher.ConvertAllValues(ctx, req.GetValue())
	if err != nil {
		return nil, mapError(err)
	}
	return newStruct(map[string]interface{}{
		"from":            result.From,
		"to":              result.To,
		"fieldsConverted": result.FieldsConverted,
		"rateSource":      string(result.RateSource),
		"durationMs":      result.Duration.Milliseconds(),
	})
}

// TrackAsset handles the TrackAsset RPC.
// Request fields: name, symbol, quantity, pricePerUnit, purchasePricePerUnit, currency, groupId.
func (c *Control) TrackAsset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	str := func(key string) string { return fields[key].GetStringValue() }

	input := investment.AddAssetInput{
		Name:        str("name"),
		Symbol:      str("symbol"),
		Currency:    str("currency"),
		AutoRefresh: true,
	}
	if input.Name == "" || input.Symbol == "" {
		return nil, status.Error(codes.InvalidArgument, "name and symbol are required")
	}
	var err error
	if input.Quantity, err = parseAmount(str("quantity")); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid quantity: %v", err)
	}
	if input.PricePerUnit, err = parseAmount(str("pricePerUnit")); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid pricePerUnit: %v", err)
	}
	if input.PurchasePricePerUnit, err = parseAmount(str("purchasePricePerUnit")); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid purchasePricePerUnit: %v", err)
	}
	if !input.Quantity.IsPositive() {
		return nil, status.Error(codes.InvalidArgument, "quantity must be positive")
	}
	if raw := str("groupId"); raw != "" {
		groupID, err := uuid.Parse(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid groupId format: %v", err)
		}
		input.GroupID = &groupID
	}

	asset, err := c.Assets.AddAsset(ctx, input)
	if err != nil && asset == nil {
		return nil, mapError(err)
	}
	resp := map[string]interface{}{
		"id":       asset.ID.String(),
		"currency": asset.Currency,
		"value":    asset.Value.String(),
	}
	if err != nil {
		// saved, but the scheduler did not pick it up yet
		resp["warning"] = err.Error()
	}
	return newStruct(resp)
}

// StreamEvents handles the StreamEvents RPC: every core event is sent until the client
// goes away or the server stops. Slow clients miss events rather than block the core.
func (c *Control) StreamEvents(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch, cancel := c.events.subscribe()
	defer cancel()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-c.events.closed():
			return nil
		case event := <-ch:
			msg, err := eventToStruct(event)
			if err != nil {
				return status.Errorf(codes.Internal, "failed to encode event: %v", err)
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}

func eventToStruct(e domain.Event) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"type":    string(e.Type),
		"time":    e.Time.UTC().Format(time.RFC3339Nano),
		"message": e.Message,
	}
	if e.AssetID != uuid.Nil {
		fields["assetId"] = e.AssetID.String()
	}
	if e.Symbol != "" {
		fields["symbol"] = e.Symbol
	}
	if e.Currency != "" {
		fields["currency"] = e.Currency
	}
	if e.Succeeded != 0 || e.Failed != 0 {
		fields["succeeded"] = e.Succeeded
		fields["failed"] = e.Failed
	}
	if len(e.Errors) > 0 {
		errs := make([]interface{}, 0, len(e.Errors))
		for _, msg := range e.Errors {
			errs = append(errs, msg)
		}
		fields["errors"] = errs
	}
	return structpb.NewStruct(fields)
}

// mapError maps domain errors to gRPC status codes
func mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrUnsupportedCurrency), errors.Is(err, domain.ErrSameCurrency):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrSystemManaged):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrConversionInProgress), errors.Is(err, domain.ErrRefreshInProgress):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, domain.ErrStaleState):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, fmt.Sprintf("internal error: %v", err))
	}
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RefreshPrices", Handler: refreshPricesHandler},
		{MethodName: "SwitchCurrency", Handler: switchCurrencyHandler},
		{MethodName: "TrackAsset", Handler: trackAssetHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: streamEventsHandler, ServerStreams: true},
	},
	Metadata: "wealthflow/v1/control.proto",
}

func refreshPricesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).RefreshPrices(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodRefreshPrices}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).RefreshPrices(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func switchCurrencyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).SwitchCurrency(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodSwitchCurrency}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).SwitchCurrency(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func trackAssetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).TrackAsset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodTrackAsset}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).TrackAsset(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func streamEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ControlServer).StreamEvents(in, stream)
}
