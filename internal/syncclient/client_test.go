package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/harvestry/go-inspectform/pkg/draft"
	"github.com/harvestry/go-inspectform/pkg/schema"
	"github.com/harvestry/go-inspectform/pkg/triplestate"
)

func clientRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(schema.StageDefinition{
		ID:    "financeInfo",
		Order: 3,
		Fields: []schema.FieldDefinition{
			{Key: "hasBankAccount", Type: schema.TypeTripleState, BoolEncoding: triplestate.EncodingIntZeroOne},
			{Key: "monthlyIncome", Type: schema.TypeNumericDecimal},
		},
	}, schema.StageDefinition{
		ID:    "landInfo",
		Order: 4,
		Fields: []schema.FieldDefinition{
			{Key: "plotNumber", Type: schema.TypeShortText},
			{Key: "landPhotos", Type: schema.TypeImageList},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	return reg
}

func TestFetchOneFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inspection/get" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("reqId") != "req-1" || r.URL.Query().Get("tableName") != "financeInfo" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"hasBankAccount": 1,
				"monthlyIncome":  "12500",
			},
		})
	}))
	defer server.Close()

	client := New(server.URL, clientRegistry(t))
	result, err := client.FetchOne(context.Background(), "req-1", "financeInfo")
	if err != nil {
		t.Fatalf("FetchOne returned error: %v", err)
	}
	if !result.Found {
		t.Fatal("expected Found")
	}
	if result.Values["hasBankAccount"] != "Yes" {
		t.Fatalf("boolean not normalized: %v", result.Values["hasBankAccount"])
	}
	if result.Values["monthlyIncome"] != "12500" {
		t.Fatalf("unexpected income %v", result.Values["monthlyIncome"])
	}
}

func TestFetchOneNotFoundIsNotAnError(t *testing.T) {
	t.Parallel()

	for name, handler := range map[string]http.HandlerFunc{
		"404":           func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
		"success false": func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"success":false}`)) },
		"null data":     func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"success":true,"data":null}`)) },
	} {
		server := httptest.NewServer(handler)
		client := New(server.URL, clientRegistry(t))
		result, err := client.FetchOne(context.Background(), "req-1", "financeInfo")
		server.Close()
		if err != nil {
			t.Fatalf("%s: FetchOne returned error: %v", name, err)
		}
		if result.Found {
			t.Fatalf("%s: expected Found=false", name)
		}
	}
}

func TestFetchOneTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, clientRegistry(t))
	result, err := client.FetchOne(context.Background(), "req-1", "financeInfo")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if result.Found {
		t.Fatal("transport failure must not assert Found=false semantics via Found=true")
	}
}

func TestSaveOneJSONInsertThenUpdate(t *testing.T) {
	t.Parallel()

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["reqId"] != "req-1" || body["tableName"] != "financeInfo" {
			t.Errorf("missing correlation keys: %v", body)
		}
		if body["hasBankAccount"] != float64(1) {
			t.Errorf("boolean not encoded as 0/1: %v", body["hasBankAccount"])
		}
		op := "insert"
		if calls > 1 {
			op = "update"
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "operation": op})
	}))
	defer server.Close()

	client := New(server.URL, clientRegistry(t))
	values := map[string]any{"hasBankAccount": "Yes", "monthlyIncome": "12500"}

	result, err := client.SaveOne(context.Background(), "req-1", "financeInfo", values)
	if err != nil {
		t.Fatalf("SaveOne returned error: %v", err)
	}
	if result.Operation != draft.OperationInsert {
		t.Fatalf("expected insert, got %q", result.Operation)
	}

	result, err = client.SaveOne(context.Background(), "req-1", "financeInfo", values)
	if err != nil {
		t.Fatalf("SaveOne returned error: %v", err)
	}
	if result.Operation != draft.OperationUpdate {
		t.Fatalf("expected update on second save, got %q", result.Operation)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 backend calls, got %d", calls)
	}
}

func TestSaveOneMultipartSplitsAttachments(t *testing.T) {
	t.Parallel()

	localPath := filepath.Join(t.TempDir(), "plot.jpg")
	if err := os.WriteFile(localPath, []byte("jpeg-bytes"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got := r.FormValue("landPhotosUrl_0"); got != "https://cdn.example.com/old.jpg" {
			t.Errorf("remote ref not re-referenced: %q", got)
		}
		file, header, err := r.FormFile("landPhotos_1")
		if err != nil {
			t.Errorf("missing binary part: %v", err)
		} else {
			file.Close()
			if header.Filename != "plot.jpg" {
				t.Errorf("unexpected filename %q", header.Filename)
			}
		}
		if got := r.FormValue("plotNumber"); got != "B12" {
			t.Errorf("scalar field missing: %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"success": true, "operation": "update"})
	}))
	defer server.Close()

	client := New(server.URL, clientRegistry(t))
	_, err := client.SaveOne(context.Background(), "req-1", "landInfo", map[string]any{
		"plotNumber": "B12",
		"landPhotos": []string{"https://cdn.example.com/old.jpg", "file://" + localPath},
	})
	if err != nil {
		t.Fatalf("SaveOne returned error: %v", err)
	}
}
