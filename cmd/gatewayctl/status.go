package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-observatory/httpclient"
)

var errAllFailed = errors.New("every device endpoint failed")

// statusEndpoints are the device info endpoints polled by the status command.
var statusEndpoints = []struct {
	Name string
	Path string
}{
	{"camera", "/equipment/camera/info"},
	{"mount", "/equipment/mount/info"},
	{"focuser", "/equipment/focuser/info"},
	{"filterwheel", "/equipment/filterwheel/info"},
	{"guider", "/equipment/guider/info"},
	{"weather", "/equipment/weather/info"},
	{"sequence", "/sequence/json"},
}

// deviceStatus is the outcome of polling one endpoint.
type deviceStatus struct {
	Name      string          `json:"name"`
	Connected *bool           `json:"connected,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
	Cached    bool            `json:"cached"`
}

func statusCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		cache  bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Poll every device info endpoint concurrently",
		Long: `Poll the camera, mount, focuser, filter wheel, guider, weather and sequence
endpoints concurrently. Failing endpoints are reported without failing the
command; it exits non-zero only when every endpoint failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := pollStatus(cmd.Context(), a.client, cache)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else if err := writeStatusTable(a.stdout, results); err != nil {
				return err
			}
			return allFailed(results)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&cache, "cache", true, "serve fresh responses from the response cache")
	return cmd
}

// pollStatus fans out over statusEndpoints. Endpoint failures are recorded in
// the results; only cancellation of ctx aborts the poll.
func pollStatus(ctx context.Context, client httpclient.Client, cache bool) ([]deviceStatus, error) {
	results := make([]deviceStatus, len(statusEndpoints))
	g, ctx := errgroup.WithContext(ctx)

	for i, ep := range statusEndpoints {
		g.Go(func() error {
			results[i] = pollOne(ctx, client, ep.Name, ep.Path, cache)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func pollOne(ctx context.Context, client httpclient.Client, name, path string, cache bool) deviceStatus {
	status := deviceStatus{Name: name}

	resp, err := client.Get(ctx, &httpclient.Request{URL: path, Cache: cache})
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Cached = resp.Stats.Cached

	var env httpclient.Envelope[json.RawMessage]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		status.Error = fmt.Sprintf("malformed envelope: %v", err)
		return status
	}
	payload, err := env.Result()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Response = payload

	var device struct {
		Connected *bool `json:"Connected"`
	}
	if json.Unmarshal(payload, &device) == nil {
		status.Connected = device.Connected
	}
	return status
}

func writeStatusTable(w io.Writer, results []deviceStatus) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tSTATE\tDETAIL")
	for _, r := range results {
		state, detail := "ok", ""
		switch {
		case r.Error != "":
			state, detail = "error", r.Error
		case r.Connected != nil && *r.Connected:
			state = "connected"
		case r.Connected != nil:
			state = "disconnected"
		}
		if r.Cached {
			detail = "cached"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, state, detail)
	}
	return tw.Flush()
}

func allFailed(results []deviceStatus) error {
	for _, r := range results {
		if r.Error == "" {
			return nil
		}
	}
	return errAllFailed
}
