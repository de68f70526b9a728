package meme

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchSendsTargetAndReturnsImage(t *testing.T) {
	var gotPath, gotQQ string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotQQ = req.URL.Query().Get("QQ")
		w.Header().Set("Content-Type", "image/gif")
		_, _ = w.Write([]byte("GIF89a"))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL + "/API/"})
	image, err := client.Fetch(context.Background(), "拍", 123456)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if gotPath != "/API/face_pat/api.php" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotQQ != "123456" {
		t.Fatalf("unexpected QQ param %s", gotQQ)
	}
	if string(image.Data) != "GIF89a" || image.ContentType != "image/gif" || image.Action != "拍" {
		t.Fatalf("unexpected image: %+v", image)
	}
}

func TestFetchReportsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL})
	_, err := client.Fetch(context.Background(), "咬", 1)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status code %d", statusErr.Code)
	}
}

func TestFetchRejectsUnknownAction(t *testing.T) {
	client := New(Config{})
	_, err := client.Fetch(context.Background(), "抱", 1)
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, MaxBytes: 16})
	if _, err := client.Fetch(context.Background(), "爬", 1); err == nil {
		t.Fatal("expected oversized body error")
	}
}

func TestActionsAreStable(t *testing.T) {
	client := New(Config{Endpoints: map[string]string{"b": "b.php", "a": "https://example.com/a.php"}})
	actions := client.Actions()
	if len(actions) != 2 || actions[0] != "a" || actions[1] != "b" {
		t.Fatalf("unexpected actions %v", actions)
	}
	endpoint, err := client.endpoint("a")
	if err != nil || endpoint != "https://example.com/a.php" {
		t.Fatalf("absolute endpoint should be kept, got %s %v", endpoint, err)
	}
}
