package downstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerifySecret_Valid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-A" {
			t.Errorf("expected Bearer auth, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != usagePath {
			t.Errorf("expected %s, got %s", usagePath, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(apiUsageResponse{Current: 10, Limit: 100})
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	ok, err := client.VerifySecret(context.Background(), "tok-A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected valid secret")
	}
}

func TestVerifySecret_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "authentication failed: invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	ok, err := client.VerifySecret(context.Background(), "bad-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected rejected secret")
	}
}

func TestVerifySecret_LimitedStillValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded, retry later", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	ok, err := client.VerifySecret(context.Background(), "tok-A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("usage-limited secret should still verify as valid")
	}
}

func TestVerifySecret_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	ok, err := client.VerifySecret(context.Background(), "tok-A")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if ok {
		t.Error("unreachable service must not report the secret as valid")
	}
}

func TestVerifySecret_UnknownFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "planetary alignment unfavorable", http.StatusTeapot)
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	ok, err := client.VerifySecret(context.Background(), "tok-A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("unclassified failure must be treated as invalid")
	}
}

func TestFit_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != fitPath {
			t.Errorf("expected %s, got %s", fitPath, r.URL.Path)
		}
		var req apiFitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Features) != 2 || len(req.Target) != 2 {
			t.Errorf("unexpected payload shape: %d rows, %d targets", len(req.Features), len(req.Target))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(apiFitResponse{TrainSetUID: "h1"})
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	uid, err := client.Fit(context.Background(),
		"tok-A",
		[][]any{{1.0, 2.0}, {3.0, 4.0}},
		[]any{0.0, 1.0},
		nil,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "h1" {
		t.Errorf("expected train_set_uid h1, got %q", uid)
	}
}

func TestFit_AuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "401 unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	_, err := client.Fit(context.Background(), "tok-A", [][]any{{1.0}}, []any{0.0}, nil)
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
}

func TestFit_MissingHandleIsInterfaceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	_, err := client.Fit(context.Background(), "tok-A", [][]any{{1.0}}, []any{0.0}, nil)
	if !errors.Is(err, ErrInterface) {
		t.Fatalf("expected ErrInterface, got %v", err)
	}
}

func TestFit_UnencodablePayloadIsInterfaceError(t *testing.T) {
	client := NewClient(discardLogger(), WithBaseURL("http://127.0.0.1:0"))
	// A channel cannot be JSON-encoded; the failure must be local.
	_, err := client.Fit(context.Background(), "tok-A", [][]any{{make(chan int)}}, []any{0.0}, nil)
	if !errors.Is(err, ErrInterface) {
		t.Fatalf("expected ErrInterface, got %v", err)
	}
}

func TestPredict_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiPredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.TrainSetUID != "h1" {
			t.Errorf("expected train_set_uid h1, got %q", req.TrainSetUID)
		}
		if req.Task != "classification" {
			t.Errorf("expected classification task, got %q", req.Task)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[0]}`))
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	preds, err := client.Predict(context.Background(), "tok-A", PredictRequest{
		TrainSetUID: "h1",
		Features:    [][]any{{1.0, 2.0}},
		Task:        "classification",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list, ok := preds.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("expected one prediction, got %#v", preds)
	}
}

func TestPredict_MalformedResponseIsInterfaceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	_, err := client.Predict(context.Background(), "tok-A", PredictRequest{
		TrainSetUID: "h1",
		Features:    [][]any{{1.0}},
		Task:        "classification",
	})
	if !errors.Is(err, ErrInterface) {
		t.Fatalf("expected ErrInterface, got %v", err)
	}
}

func TestPredict_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	_, err := client.Predict(context.Background(), "tok-A", PredictRequest{
		TrainSetUID: "h1",
		Features:    [][]any{{1.0}},
		Task:        "regression",
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != modelsPath {
			t.Errorf("expected %s, got %s", modelsPath, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":{"classification":["tabpfn-v2"],"regression":["tabpfn-v2-reg"]}}`))
	}))
	defer srv.Close()

	client := NewClient(discardLogger(), WithBaseURL(srv.URL))
	models, err := client.ListModels(context.Background(), "tok-A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models["classification"]) != 1 || models["classification"][0] != "tabpfn-v2" {
		t.Errorf("unexpected catalog: %#v", models)
	}
}
