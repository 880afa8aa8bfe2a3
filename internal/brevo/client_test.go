package brevo_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/questspace/digest-service/internal/brevo"
)

func TestSendSuccess(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/smtp/email" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "key-1" {
			t.Errorf("missing api-key header")
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"messageId":"<msg-123@smtp-relay>"}`))
	}))
	defer srv.Close()

	c := brevo.NewClient("key-1", srv.URL)
	id, err := c.Send(context.Background(), &brevo.SendRequest{
		Sender:  brevo.Recipient{Email: "digest@quest.app", Name: "Quest"},
		To:      []brevo.Recipient{{Email: "jane@example.com", Name: "Jane"}},
		Subject: "Your Weekly Digest",
		Tags:    []string{"weekly-digest"},
		Headers: map[string]string{"List-Unsubscribe-Post": "List-Unsubscribe=One-Click"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "<msg-123@smtp-relay>" {
		t.Fatalf("unexpected message id %q", id)
	}
	if gotBody["subject"] != "Your Weekly Digest" {
		t.Fatalf("subject not forwarded: %v", gotBody)
	}
}

func TestSendPermanentRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"invalid_parameter","message":"email is not valid"}`))
	}))
	defer srv.Close()

	c := brevo.NewClient("key-1", srv.URL)
	_, err := c.Send(context.Background(), &brevo.SendRequest{})

	var apiErr *brevo.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.Permanent() {
		t.Fatal("400 must classify as permanent")
	}
}

func TestSendTransientClassification(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := brevo.NewClient("key-1", srv.URL)
	_, err := c.Send(context.Background(), &brevo.SendRequest{})

	var apiErr *brevo.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Permanent() {
		t.Fatal("503 must classify as transient")
	}
	if attempts < 2 {
		t.Fatalf("expected retries on 503, got %d attempts", attempts)
	}
}
