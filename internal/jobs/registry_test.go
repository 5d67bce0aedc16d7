package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestRegistryRegister(t *testing.T) {
	t.Run("registers and retrieves factory", func(t *testing.T) {
		r := NewRegistry()

		err := r.Register("echo", func(data json.RawMessage) (Task, error) {
			return NewTask("echo", func(context.Context, *Job) error { return nil }), nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := r.Get("echo"); err != nil {
			t.Errorf("expected factory, got error %v", err)
		}
	})

	t.Run("rejects duplicate kind", func(t *testing.T) {
		r := NewRegistry()
		factory := func(json.RawMessage) (Task, error) {
			return NewTask("echo", func(context.Context, *Job) error { return nil }), nil
		}

		if err := r.Register("echo", factory); err != nil {
			t.Fatalf("first registration failed: %v", err)
		}
		if err := r.Register("echo", factory); !errors.Is(err, ErrFactoryExists) {
			t.Errorf("got %v, want ErrFactoryExists", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		r := NewRegistry()

		if _, err := r.Get("missing"); !errors.Is(err, ErrFactoryNotFound) {
			t.Errorf("got %v, want ErrFactoryNotFound", err)
		}
	})

	t.Run("must register panics on duplicate", func(t *testing.T) {
		r := NewRegistry()
		factory := func(json.RawMessage) (Task, error) {
			return NewTask("echo", func(context.Context, *Job) error { return nil }), nil
		}
		r.MustRegister("echo", factory)

		defer func() {
			if recover() == nil {
				t.Error("expected panic on duplicate MustRegister")
			}
		}()
		r.MustRegister("echo", factory)
	})
}

func TestRegistryRegisterTask(t *testing.T) {
	r := NewRegistry()
	task := NewTask("stateless", func(context.Context, *Job) error { return nil })

	if err := r.RegisterTask(task); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	rebuilt, err := r.Rebuild(Payload{Metadata: Metadata{Kind: "stateless"}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rebuilt != task {
		t.Error("expected the registered task back")
	}
}

func TestRegistryRebuild(t *testing.T) {
	t.Run("rebuilds from payload", func(t *testing.T) {
		r := NewRegistry()
		r.MustRegister("echo", func(data json.RawMessage) (Task, error) {
			return NewTask("echo", func(context.Context, *Job) error { return nil }), nil
		})

		task, err := r.Rebuild(Payload{
			Data:     json.RawMessage(`{"message":"hi"}`),
			Metadata: Metadata{Kind: "echo"},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if task.Kind() != "echo" {
			t.Errorf("got kind %q, want %q", task.Kind(), "echo")
		}
	})

	t.Run("unknown kind fails", func(t *testing.T) {
		r := NewRegistry()

		_, err := r.Rebuild(Payload{Metadata: Metadata{Kind: "ghost"}})
		if !errors.Is(err, ErrFactoryNotFound) {
			t.Errorf("got %v, want ErrFactoryNotFound", err)
		}
	})
}

func TestRegistryKinds(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("a", func(json.RawMessage) (Task, error) { return nil, nil })
	r.MustRegister("b", func(json.RawMessage) (Task, error) { return nil, nil })

	kinds := r.Kinds()
	if len(kinds) != 2 {
		t.Errorf("expected 2 kinds, got %d", len(kinds))
	}
}
