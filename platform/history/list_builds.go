package history

import (
	"context"
	"net/http"

	"github.com/go-kit/kit/endpoint"
)

func (svc *HistoryService) ListBuilds(ctx context.Context) ([]Record, error) {
	return svc.store.List(ctx)
}

type listBuildsRequest struct{}

type listBuildsResponse struct {
	Builds []Record `json:"builds"`
	Err    error    `json:"err,omitempty"`
}

func (r listBuildsResponse) error() error { return r.Err }

func decodeListBuildsRequest(_ context.Context, _ *http.Request) (interface{}, error) {
	return listBuildsRequest{}, nil
}

func MakeListBuildsEndpoint(svc Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		builds, err := svc.ListBuilds(ctx)
		return listBuildsResponse{
			Builds: builds,
			Err:    err,
		}, nil
	}
}
