package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-observatory/httpclient"
)

// requestFlags are shared by get and post.
type requestFlags struct {
	queue    bool
	priority int
	cache    bool
	retries  int
	params   []string
	headers  []string
	data     string
	raw      bool
}

func (f *requestFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.queue, "queue", false, "run through the sequential priority lane")
	flags.IntVar(&f.priority, "priority", 0, "lane priority; higher runs sooner (implies --queue)")
	flags.IntVar(&f.retries, "retries", -1, "retries after the first attempt (default from configuration)")
	flags.StringArrayVarP(&f.params, "param", "p", nil, "query parameter key=value (repeatable)")
	flags.StringArrayVarP(&f.headers, "header", "H", nil, "request header 'Name: value' (repeatable)")
	flags.BoolVar(&f.raw, "raw", false, "print the body exactly as received")
}

func (f *requestFlags) request(cmd *cobra.Command, path string) (*httpclient.Request, error) {
	req := &httpclient.Request{
		URL:      path,
		UseQueue: f.queue || cmd.Flags().Changed("priority"),
		Priority: f.priority,
		Cache:    f.cache,
	}

	if len(f.params) > 0 {
		req.Params = url.Values{}
		for _, p := range f.params {
			key, value, ok := strings.Cut(p, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("%w: --param %q must be key=value", errUsage, p)
			}
			req.Params.Add(key, value)
		}
	}

	if len(f.headers) > 0 {
		req.Headers = make(map[string]string, len(f.headers))
		for _, h := range f.headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("%w: --header %q must be 'Name: value'", errUsage, h)
			}
			req.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	if f.retries >= 0 {
		req.Retry = &httpclient.RetryPolicy{Retries: f.retries, Delay: 0}
	}

	if f.data != "" {
		if !json.Valid([]byte(f.data)) {
			return nil, fmt.Errorf("%w: --data is not valid JSON", errUsage)
		}
		req.Body = []byte(f.data)
	}
	return req, nil
}

func getCmd(a *app) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Send a GET request",
		Example: `  gatewayctl get /equipment/camera/info --cache
  gatewayctl get /image/history -p count=true
  gatewayctl get /equipment/mount/info --priority 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.send(cmd, &f, http.MethodGet, args[0])
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.cache, "cache", false, "serve from the response cache while fresh")
	return cmd
}

func postCmd(a *app) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:     "post <path>",
		Short:   "Send a POST request",
		Example: `  gatewayctl post /sequence/start --data '{"skipValidation":true}' --queue`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.send(cmd, &f, http.MethodPost, args[0])
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "JSON request body")
	return cmd
}

func (a *app) send(cmd *cobra.Command, f *requestFlags, method, path string) error {
	req, err := f.request(cmd, path)
	if err != nil {
		return err
	}
	// Flags carry no delay, so keep the configured one.
	if req.Retry != nil {
		req.Retry.Delay = a.cfg.Retry.Delay
	}

	resp, err := a.client.Do(cmd.Context(), method, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stderr, "%d %s (attempts: %d, cached: %t, elapsed: %s)\n",
		resp.StatusCode, http.StatusText(resp.StatusCode),
		resp.Stats.Attempts, resp.Stats.Cached, resp.Stats.ElapsedTime.Round(time.Millisecond))
	return writeBody(a.stdout, resp.Body, f.raw)
}

func writeBody(w io.Writer, body []byte, raw bool) error {
	if !raw && json.Valid(body) {
		var out bytes.Buffer
		if err := json.Indent(&out, body, "", "  "); err == nil {
			out.WriteByte('\n')
			_, err = w.Write(out.Bytes())
			return err
		}
	}
	_, err := w.Write(body)
	return err
}
