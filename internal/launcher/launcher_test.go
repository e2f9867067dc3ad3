package launcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/railboard/railctl/internal/logger"
	"github.com/railboard/railctl/internal/registry"
)

func TestNativeLaunchCapturesOutput(t *testing.T) {
	requireUnix(t)
	logs := filepath.Join(t.TempDir(), "logs")
	n := &Native{Log: logger.Config{Dir: logs}}
	svc := registry.Service{Name: "echoer", Port: 1, Command: "sh -c 'echo hello-from-service'"}

	if err := n.Launch(context.Background(), svc); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	var content string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		b, err := os.ReadFile(filepath.Join(logs, "echoer.stdout.log"))
		if err == nil && strings.Contains(string(b), "hello-from-service") {
			content = string(b)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if content == "" {
		t.Fatal("stdout not captured to log file")
	}
}

func TestNativeLaunchResolvesRelativeWorkdir(t *testing.T) {
	requireUnix(t)
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	logs := filepath.Join(base, "logs")
	n := &Native{BaseDir: base, Log: logger.Config{Dir: logs}}
	svc := registry.Service{Name: "pwd", Port: 1, Command: "sh -c 'pwd'", WorkDir: "sub"}

	if err := n.Launch(context.Background(), svc); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	want := filepath.Join(base, "sub")
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		b, err := os.ReadFile(filepath.Join(logs, "pwd.stdout.log"))
		if err == nil && strings.Contains(string(b), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("workdir %s not used", want)
}

func TestNativeLaunchFailsForMissingBinary(t *testing.T) {
	requireUnix(t)
	n := &Native{}
	svc := registry.Service{Name: "ghost", Port: 1, Command: "definitely-not-a-binary-xyz"}
	if err := n.Launch(context.Background(), svc); err == nil {
		t.Fatal("missing binary accepted")
	}
}

// routeRecorder records which side of a Mixed launcher handled a service.
type routeRecorder struct {
	name string
	got  *[]string
}

func (r routeRecorder) Launch(_ context.Context, svc registry.Service) error {
	*r.got = append(*r.got, r.name+":"+svc.Name)
	return nil
}

func TestMixedRoutesByCommand(t *testing.T) {
	var got []string
	m := &Mixed{
		Containers: routeRecorder{"ctr", &got},
		Native:     routeRecorder{"native", &got},
	}
	ctx := context.Background()
	_ = m.Launch(ctx, registry.Service{Name: "postgres", Command: "docker compose up -d postgres"})
	_ = m.Launch(ctx, registry.Service{Name: "backend", Command: "cargo run --release"})
	_ = m.Launch(ctx, registry.Service{Name: "cache", Command: "podman run redis"})

	want := []string{"ctr:postgres", "native:backend", "ctr:cache"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("routing: %v, want %v", got, want)
		}
	}
}

func TestIsContainerCommand(t *testing.T) {
	if !IsContainerCommand("docker compose up -d redis") {
		t.Fatal("docker command not recognized")
	}
	if IsContainerCommand("npm run dev") || IsContainerCommand("") {
		t.Fatal("host command treated as container command")
	}
}
