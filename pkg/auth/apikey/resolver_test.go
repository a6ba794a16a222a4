package apikey

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/rhuss/keygate/pkg/auth"
)

func TestStaticResolver(t *testing.T) {
	mapTable := MapTable{
		"knockknock": {"name": "Who Is There"},
		"ghost":      nil,
	}
	entryTable := EntryTable{
		{"key": "mySpecialKey", "name": "Is Good"},
		{"key": "mySpecialKey", "name": "Shadowed"},
		{"key": "", "name": "Empty Key"},
	}

	tests := []struct {
		name      string
		table     KeyTable
		token     string
		wantValid bool
		wantCreds auth.Credentials
	}{
		{"map hit", mapTable, "knockknock", true, auth.Credentials{"name": "Who Is There"}},
		{"map miss", mapTable, "letmein", false, nil},
		{"map nil record", mapTable, "ghost", false, nil},
		{"map empty token", mapTable, "", false, nil},
		{"entries hit strips key", entryTable, "mySpecialKey", true, auth.Credentials{"name": "Is Good"}},
		{"entries miss", entryTable, "nope", false, nil},
		{"entries empty token never matches empty key", entryTable, "", false, nil},
		{"nil table", nil, "knockknock", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewStaticResolver(tt.table).Resolve(context.Background(), tt.token, nil)
			if out.IsValid() != tt.wantValid {
				t.Fatalf("IsValid() = %v, want %v", out.IsValid(), tt.wantValid)
			}
			if !reflect.DeepEqual(out.Credentials(), tt.wantCreds) {
				t.Errorf("Credentials() = %v, want %v", out.Credentials(), tt.wantCreds)
			}
		})
	}
}

func TestStaticResolver_EntryTableNotMutated(t *testing.T) {
	table := EntryTable{{"key": "k1", "name": "one"}}
	r := NewStaticResolver(table)

	first := r.Resolve(context.Background(), "k1", nil)
	first.Credentials()["name"] = "changed"

	second := r.Resolve(context.Background(), "k1", nil)
	if !second.IsValid() {
		t.Fatal("second lookup should still succeed")
	}
	if table[0].Key() != "k1" {
		t.Error("table entry lost its key")
	}
	if second.Credentials().String("name") != "one" {
		t.Errorf("name = %q, want one", second.Credentials().String("name"))
	}
}

func TestFuncResolver(t *testing.T) {
	creds := auth.Credentials{"name": "fn"}

	tests := []struct {
		name      string
		fn        ValidateFunc
		token     string
		wantValid bool
	}{
		{
			name: "valid",
			fn: func(context.Context, string, *http.Request) (Validation, error) {
				return Validation{IsValid: true, Credentials: creds}, nil
			},
			token:     "t",
			wantValid: true,
		},
		{
			name: "explicit rejection",
			fn: func(context.Context, string, *http.Request) (Validation, error) {
				return Validation{IsValid: false, Credentials: creds}, nil
			},
			token: "t",
		},
		{
			name: "valid but no credentials",
			fn: func(context.Context, string, *http.Request) (Validation, error) {
				return Validation{IsValid: true}, nil
			},
			token: "t",
		},
		{
			name: "error",
			fn: func(context.Context, string, *http.Request) (Validation, error) {
				return Validation{IsValid: true, Credentials: creds}, errors.New("db down")
			},
			token: "t",
		},
		{
			name: "panic",
			fn: func(context.Context, string, *http.Request) (Validation, error) {
				panic("boom")
			},
			token: "t",
		},
		{
			name: "empty token not dispatched",
			fn: func(context.Context, string, *http.Request) (Validation, error) {
				return Validation{IsValid: true, Credentials: creds}, nil
			},
			token: "",
		},
		{
			name:  "nil func",
			fn:    nil,
			token: "t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewFuncResolver(tt.fn).Resolve(context.Background(), tt.token, nil)
			if out.IsValid() != tt.wantValid {
				t.Errorf("IsValid() = %v, want %v", out.IsValid(), tt.wantValid)
			}
			if !tt.wantValid && out.Credentials() != nil {
				t.Errorf("invalid outcome carries credentials %v", out.Credentials())
			}
		})
	}
}

func TestFuncResolver_WaitsForSlowFunction(t *testing.T) {
	fn := func(ctx context.Context, token string, _ *http.Request) (Validation, error) {
		select {
		case <-time.After(20 * time.Millisecond):
			return Validation{IsValid: true, Credentials: auth.Credentials{"token": token}}, nil
		case <-ctx.Done():
			return Validation{}, ctx.Err()
		}
	}

	out := NewFuncResolver(fn).Resolve(context.Background(), "slow", nil)
	if !out.IsValid() || out.Credentials().String("token") != "slow" {
		t.Fatalf("slow function: got %+v, want valid", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out = NewFuncResolver(fn).Resolve(ctx, "slow", nil)
	if out.IsValid() {
		t.Error("cancelled context should yield invalid")
	}
}

func TestMethods(t *testing.T) {
	m := Methods{}
	m.Register("keys.lookup", func(context.Context, string, *http.Request) (Validation, error) {
		return Validation{IsValid: true, Credentials: auth.Credentials{"name": "named"}}, nil
	})
	m.Register("b", func(context.Context, string, *http.Request) (Validation, error) {
		return Validation{}, nil
	})

	if names := m.Names(); len(names) != 2 || names[0] != "b" || names[1] != "keys.lookup" {
		t.Errorf("Names() = %v", names)
	}

	r, err := m.Resolver("keys.lookup")
	if err != nil {
		t.Fatalf("Resolver: %v", err)
	}
	if out := r.Resolve(context.Background(), "t", nil); !out.IsValid() {
		t.Error("named method should resolve")
	}

	_, err = m.Resolver("missing")
	if !errors.Is(err, ErrMethodNotFound) {
		t.Fatalf("Resolver(missing) error = %v, want ErrMethodNotFound", err)
	}
	if err.Error() != "methods did not contain a method called missing" {
		t.Errorf("error message = %q", err.Error())
	}

	var nilMethods Methods
	if _, err := nilMethods.Resolver("x"); !errors.Is(err, ErrMethodNotFound) {
		t.Errorf("nil registry error = %v, want ErrMethodNotFound", err)
	}
}

func TestNewResolver_Dispatch(t *testing.T) {
	fn := func(context.Context, string, *http.Request) (Validation, error) {
		return Validation{IsValid: true, Credentials: auth.Credentials{"from": "func"}}, nil
	}
	named := func(context.Context, string, *http.Request) (Validation, error) {
		return Validation{IsValid: true, Credentials: auth.Credentials{"from": "method"}}, nil
	}
	table := MapTable{"t": {"from": "table"}}

	tests := []struct {
		name     string
		opts     Options
		wantFrom string
	}{
		{"func wins", Options{Validate: fn, Method: "m", Methods: Methods{"m": named}, APIKeys: table}, "func"},
		{"method over table", Options{Method: "m", Methods: Methods{"m": named}, APIKeys: table}, "method"},
		{"table", Options{APIKeys: table}, "table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(tt.opts)
			if err != nil {
				t.Fatalf("NewResolver: %v", err)
			}
			out := r.Resolve(context.Background(), "t", nil)
			if got := out.Credentials().String("from"); got != tt.wantFrom {
				t.Errorf("resolved from %q, want %q", got, tt.wantFrom)
			}
		})
	}
}

func TestOutcome(t *testing.T) {
	if Valid(nil).IsValid() {
		t.Error("Valid(nil) must be invalid")
	}
	if Invalid().IsValid() || Invalid().Credentials() != nil {
		t.Error("Invalid() must carry nothing")
	}
	out := Valid(auth.Credentials{"a": 1})
	if !out.IsValid() || out.Credentials()["a"] != 1 {
		t.Errorf("Valid() = %+v", out)
	}
}
