package acl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// endpoint ties a resilient client to the service name used in errors.
// Every method returns either an open body or a domain.UnavailableError.
type endpoint struct {
	client  *clients.Client
	service string
}

func (e endpoint) get(ctx context.Context, path string, query url.Values, op string) (io.ReadCloser, error) {
	resp, err := e.client.GetWithQuery(ctx, path, query)
	return e.accept(resp, err, op)
}

func (e endpoint) post(ctx context.Context, path string, payload any, op string) (io.ReadCloser, error) {
	resp, err := e.client.PostJSON(ctx, path, payload)
	return e.accept(resp, err, op)
}

func (e endpoint) accept(resp *http.Response, err error, op string) (io.ReadCloser, error) {
	if err != nil {
		return nil, remoteFailure(e.service, op, nil, err)
	}

	if failure := remoteFailure(e.service, op, resp, nil); failure != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, failure
	}

	return resp.Body, nil
}

// decodeJSON decodes body into a T and closes it.
func decodeJSON[T any](body io.ReadCloser) (T, error) {
	var out T

	if body == nil {
		return out, errors.New("empty response")
	}
	defer func() { _ = body.Close() }()

	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return out, fmt.Errorf("decoding response: %w", err)
	}

	return out, nil
}

// translateAll converts items in order. Items rejected with a validation
// error are dropped and counted; any other error stops the batch.
func translateAll[E, D any](items []E, convert func(*E) (D, error)) ([]D, int, error) {
	out := make([]D, 0, len(items))
	dropped := 0

	for i := range items {
		v, err := convert(&items[i])

		switch {
		case err == nil:
			out = append(out, v)
		case domain.IsValidation(err):
			dropped++
		default:
			return nil, dropped, fmt.Errorf("item %d: %w", i, err)
		}
	}

	return out, dropped, nil
}
