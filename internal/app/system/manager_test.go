package system

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name     string
	startErr error
	log      *[]string
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.log = append(*s.log, "start:"+s.name)
	return nil
}

func (s *fakeService) Stop(context.Context) error {
	*s.log = append(*s.log, "stop:"+s.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var log []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&fakeService{name: name, log: &log}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if err := m.StopAll(ctx); err != nil {
		t.Fatalf("stop all: %v", err)
	}

	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log[%d] = %s, want %s", i, log[i], want[i])
		}
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	m := NewManager()
	_ = m.Register(&fakeService{name: "a", log: &log})
	_ = m.Register(&fakeService{name: "b", startErr: boom, log: &log})
	_ = m.Register(&fakeService{name: "c", log: &log})

	err := m.StartAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	want := []string{"start:a", "stop:a"}
	if len(log) != len(want) || log[0] != want[0] || log[1] != want[1] {
		t.Fatalf("log = %v, want %v", log, want)
	}
}

func TestManagerRejectsDuplicateAndLateRegistration(t *testing.T) {
	var log []string
	m := NewManager()
	if err := m.Register(&fakeService{name: "a", log: &log}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&fakeService{name: "a", log: &log}); err == nil {
		t.Fatal("duplicate registration must fail")
	}

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if err := m.Register(&fakeService{name: "b", log: &log}); err == nil {
		t.Fatal("registration after start must fail")
	}
}
