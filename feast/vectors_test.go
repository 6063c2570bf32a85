package feast

import (
	"context"
	"errors"
	"testing"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ephemeral/core"
	"github.com/rushteam/ephemeral/vector"
)

func doubleList(v ...float64) *types.Value {
	return &types.Value{Val: &types.Value_DoubleListVal{DoubleListVal: &types.DoubleList{Val: v}}}
}

func floatList(v ...float32) *types.Value {
	return &types.Value{Val: &types.Value_FloatListVal{FloatListVal: &types.FloatList{Val: v}}}
}

func TestToVector(t *testing.T) {
	tests := []struct {
		name   string
		val    *types.Value
		want   vector.Vector
		wantOK bool
	}{
		{"nil", nil, nil, false},
		{"double list", doubleList(0.5, -1), vector.Vector{0.5, -1}, true},
		{"float list", floatList(0.5, 2), vector.Vector{0.5, 2}, true},
		{"empty list", doubleList(), nil, false},
		{"scalar", feastsdk.Int64Val(3), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toVector(tt.val)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort int
	}{
		{"localhost:6566", "localhost", 6566},
		{"grpc://feast.svc:7000", "feast.svc", 7000},
		{"feast.svc", "feast.svc", 0},
		{"feast.svc:abc", "feast.svc:abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port := parseEndpoint(tt.in)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}

type stubServing struct {
	req  *feastsdk.OnlineFeaturesRequest
	resp *feastsdk.OnlineFeaturesResponse
	err  error
}

func (s *stubServing) GetOnlineFeatures(_ context.Context, req *feastsdk.OnlineFeaturesRequest) (*feastsdk.OnlineFeaturesResponse, error) {
	s.req = req
	return s.resp, s.err
}

func TestVectorFetcher_Errors(t *testing.T) {
	f := &VectorFetcher{
		client: &stubServing{err: errors.New("unavailable")},
		cfg:    Config{Project: "movies", UserEntity: "user_id", UserFeature: "user_factors:vector"},
	}

	_, err := f.FetchVectors(context.Background(), core.EntityUser, []int64{1})
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))

	_, err = f.FetchVectors(context.Background(), "genre", []int64{1})
	assert.True(t, core.IsNotSupported(err))

	got, err := f.FetchVectors(context.Background(), core.EntityUser, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewVectorFetcher_Config(t *testing.T) {
	_, err := NewVectorFetcher(Config{Endpoint: "localhost:6566"})
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))

	_, err = NewVectorFetcher(Config{Endpoint: "localhost:6566", Project: "movies"})
	require.Error(t, err)
	assert.True(t, core.IsConfiguration(err))
}
