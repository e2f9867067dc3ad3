package launcher

import (
	"context"

	"github.com/railboard/railctl/internal/dockerx"
	"github.com/railboard/railctl/internal/registry"
)

// Compose launches services as containers through the compose project. The
// registry service name doubles as the compose service name.
type Compose struct {
	Client *dockerx.Client
	// Build forces an image rebuild before each launch.
	Build bool
}

var _ Launcher = (*Compose)(nil)

func (c *Compose) Launch(ctx context.Context, svc registry.Service) error {
	return c.Client.Up(ctx, c.Build, svc.Name)
}
