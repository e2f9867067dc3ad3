package status

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/railboard/railctl/internal/probe"
)

// Palette holds the colorizers used by the text renderer. Disable with
// color.NoColor or by constructing from NewPalette(false).
type Palette struct {
	Healthy   *color.Color
	Unhealthy *color.Color
	Unknown   *color.Color
	Stopped   *color.Color
	Slow      *color.Color
	Dim       *color.Color
}

func NewPalette(enabled bool) *Palette {
	p := &Palette{
		Healthy:   color.New(color.FgGreen),
		Unhealthy: color.New(color.FgRed),
		Unknown:   color.New(color.FgYellow),
		Stopped:   color.New(color.FgHiBlack),
		Slow:      color.New(color.FgYellow),
		Dim:       color.New(color.Faint),
	}
	if !enabled {
		for _, c := range []*color.Color{p.Healthy, p.Unhealthy, p.Unknown, p.Stopped, p.Slow, p.Dim} {
			c.DisableColor()
		}
	}
	return p
}

func (p *Palette) state(s ServiceStatus) string {
	switch {
	case !s.Reachable:
		return p.Stopped.Sprint("stopped")
	case s.Health == HealthHealthy:
		return p.Healthy.Sprint("running+healthy")
	case s.Health == HealthUnhealthy:
		return p.Unhealthy.Sprint("running+unhealthy")
	default:
		return p.Unknown.Sprint("running")
	}
}

// Render writes a human-readable status table.
func Render(w io.Writer, snap Snapshot, p *Palette, detailed bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if detailed {
		fmt.Fprintln(tw, "SERVICE\tPORT\tSTATE\tLATENCY\tPID\tCONTAINER\tDEEP")
	} else {
		fmt.Fprintln(tw, "SERVICE\tPORT\tSTATE\tLATENCY")
	}
	for _, s := range snap.Services {
		lat := "-"
		if s.Reachable {
			lat = string(s.Latency)
			if s.Latency == probe.LatencySlow {
				lat = p.Slow.Sprint(lat)
			}
		}
		if !detailed {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Service.Name, s.Service.Port, p.state(s), lat)
			continue
		}
		pid := "-"
		if s.Process != nil {
			pid = fmt.Sprintf("%d (%s)", s.Process.PID, s.Process.Name)
		}
		ctr := "-"
		if s.Container != nil {
			ctr = fmt.Sprintf("%s [%s]", s.Container.Name, s.Container.State)
		}
		deep := "-"
		switch {
		case s.DeepErr != "":
			deep = p.Unhealthy.Sprint(s.DeepErr)
		case s.DeepOK:
			deep = p.Healthy.Sprint("ok")
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			s.Service.Name, s.Service.Port, p.state(s), lat, pid, ctr, deep)
	}
	tw.Flush()
	if snap.ContainerErr != "" {
		fmt.Fprintln(w, p.Unhealthy.Sprint("container runtime: "+snap.ContainerErr))
	}
	fmt.Fprintln(w, p.Dim.Sprintf("as of %s", snap.TakenAt.Format("15:04:05")))
}

// RenderJSON writes the snapshot as indented JSON.
func RenderJSON(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
