package redis

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rhuss/keygate/pkg/auth"
	"github.com/rhuss/keygate/pkg/auth/apikey"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewWithClient(client, "test:")
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestValidate(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Set("test:knockknock", `{"name":"Who Is There","scopes":["read"]}`)
	mr.Set("test:broken", `not json`)
	mr.Set("test:null", `null`)

	tests := []struct {
		name      string
		token     string
		wantValid bool
		wantErr   bool
	}{
		{"known", "knockknock", true, false},
		{"unknown", "letmein", false, false},
		{"malformed document", "broken", false, true},
		{"null document", "null", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := store.Validate(ctx, tt.token, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if v.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v", v.IsValid, tt.wantValid)
			}
		})
	}

	v, _ := store.Validate(ctx, "knockknock", nil)
	if v.Credentials.String("name") != "Who Is There" {
		t.Errorf("name = %q", v.Credentials.String("name"))
	}
}

func TestValidate_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	store := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), "test:")
	defer store.Close()
	mr.Close()

	v, err := store.Validate(context.Background(), "knockknock", nil)
	if err == nil || v.IsValid {
		t.Errorf("Validate = %+v, %v; want invalid with error", v, err)
	}
}

func TestValidate_ExpiryAndRemoval(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	mr.Set("test:temp", `{"name":"temporary"}`)
	mr.SetTTL("test:temp", time.Minute)
	if v, _ := store.Validate(ctx, "temp", nil); !v.IsValid {
		t.Fatal("key should be valid before expiry")
	}
	mr.FastForward(2 * time.Minute)
	if v, _ := store.Validate(ctx, "temp", nil); v.IsValid {
		t.Error("expired key should be invalid")
	}

	mr.Set("test:perm", `{"name":"permanent"}`)
	mr.Del("test:perm")
	if v, err := store.Validate(ctx, "perm", nil); err != nil || v.IsValid {
		t.Errorf("removed key: Validate = %+v, %v; want invalid", v, err)
	}
}

func TestValidate_IgnoresOtherPrefixes(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Set("knockknock", `{"name":"unprefixed"}`)
	mr.Set("other:knockknock", `{"name":"foreign"}`)

	if v, _ := store.Validate(context.Background(), "knockknock", nil); v.IsValid {
		t.Error("keys outside the prefix should not resolve")
	}
}

func TestAsValidateFunc(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Set("test:mySpecialKey", `{"name":"Is Good"}`)

	authn, err := apikey.New(apikey.Options{Validate: store.Validate})
	if err != nil {
		t.Fatalf("apikey.New: %v", err)
	}

	tests := []struct {
		url  string
		want auth.AuthDecision
	}{
		{"/?token=mySpecialKey", auth.Yes},
		{"/?token=letmein", auth.No},
		{"/", auth.Abstain},
	}
	for _, tt := range tests {
		result := authn.Authenticate(context.Background(), httptest.NewRequest("GET", tt.url, nil))
		if result.Decision != tt.want {
			t.Errorf("%s: Decision = %v, want %v", tt.url, result.Decision, tt.want)
		}
	}
}

func TestNew_RequiresAddress(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Error("expected error without addresses")
	}
}

func TestNew_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := New(context.Background(), Config{Addrs: []string{mr.Addr()}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer store.Close()
	if store.keyPrefix != DefaultKeyPrefix {
		t.Errorf("keyPrefix = %q, want default", store.keyPrefix)
	}
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}
