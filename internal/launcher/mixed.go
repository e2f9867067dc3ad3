package launcher

import (
	"context"
	"strings"

	"github.com/railboard/railctl/internal/registry"
)

// Mixed routes each service to the container or native launcher depending on
// its command. Services whose command invokes the compose runtime go through
// Containers; everything else runs natively. This is the dev-mode split:
// infrastructure in containers, the application tier on the host.
type Mixed struct {
	Containers Launcher
	Native     Launcher
}

var _ Launcher = (*Mixed)(nil)

func (m *Mixed) Launch(ctx context.Context, svc registry.Service) error {
	if IsContainerCommand(svc.Command) {
		return m.Containers.Launch(ctx, svc)
	}
	return m.Native.Launch(ctx, svc)
}

// IsContainerCommand reports whether the service's registered command
// delegates to the container runtime rather than a host process.
func IsContainerCommand(command string) bool {
	fields := strings.Fields(command)
	return len(fields) > 0 && (fields[0] == "docker" || fields[0] == "podman")
}
