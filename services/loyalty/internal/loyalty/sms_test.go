package loyalty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAirtelSenderSend(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "accepted", status: http.StatusOK},
		{name: "rejected", status: http.StatusUnauthorized, wantErr: true},
		{name: "gatewayError", status: http.StatusBadGateway, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got airtelPayload
			var auth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				auth = r.Header.Get("Authorization")
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			}))
			defer srv.Close()

			sender, err := NewAirtelSender(SMSSettings{
				URL: srv.URL, APIKey: "secret", SenderID: "EPICUR", TemplateID: "tmpl-1",
			}, nil)
			if err != nil {
				t.Fatalf("NewAirtelSender() error = %v", err)
			}

			err = sender.Send(context.Background(), "9876543210", OTPMessage("123456", DefaultOTPTTL))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}

			if auth != "Bearer secret" {
				t.Errorf("Authorization = %q, want Bearer secret", auth)
			}
			if got.Mobile != "919876543210" {
				t.Errorf("payload mobile = %q, want 919876543210", got.Mobile)
			}
			if got.Sender != "EPICUR" || got.DLTTemplateID != "tmpl-1" {
				t.Errorf("payload = %+v", got)
			}
		})
	}
}

func TestAirtelSenderHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender, err := NewAirtelSender(SMSSettings{URL: srv.URL, APIKey: "k", SenderID: "s", TemplateID: "t"}, nil)
	if err != nil {
		t.Fatalf("NewAirtelSender() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.Send(ctx, "9876543210", "hello"); err == nil {
		t.Error("Send() with cancelled context should fail")
	}
}

func TestLogSender(t *testing.T) {
	if err := NewLogSender(nil).Send(context.Background(), "9876543210", "hello"); err != nil {
		t.Errorf("LogSender.Send() error = %v", err)
	}
}
