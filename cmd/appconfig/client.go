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

	"github.com/leafsii/appconfig/internal/api"
)

// client talks to a running appconfig server.
type client struct {
	base string
	http *http.Client
}

func newClient(cmd *cobra.Command) *client {
	server, _ := cmd.Flags().GetString("server")
	return &client{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *client) do(cmd *cobra.Command, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(cmd.Context(), method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func itemPath(name string) string { return "/v1/items/" + url.PathEscape(name) }
func envPath(name string) string  { return "/v1/env/" + url.PathEscape(name) }

func addServerFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String("server", "http://localhost:8080", "address of a running appconfig server")
}

func printValue(cmd *cobra.Command, v any) {
	if s, ok := v.(string); ok {
		fmt.Fprintln(cmd.OutOrStdout(), s)
		return
	}
	buf, _ := json.Marshal(v)
	fmt.Fprintln(cmd.OutOrStdout(), string(buf))
}

// parseValue treats the argument as JSON when it parses, else as a string.
func parseValue(raw string, asString bool) any {
	if asString {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Read and write items on a running server",
	}
	addServerFlag(cmd)

	var reg api.RegisterRequest
	var asString bool
	register := &cobra.Command{
		Use:   "register NAME VALUE",
		Short: "Register an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg.Value = parseValue(args[1], asString || reg.BackingStore == "remote" || reg.BackingStore == "redis")
			var out api.RegistrationResponse
			if err := newClient(cmd).do(cmd, http.MethodPost, itemPath(args[0]), nil, reg, &out); err != nil {
				return err
			}
			printValue(cmd, out)
			return nil
		},
	}
	register.Flags().StringVar(&reg.BackingStore, "backing-store", "local", "local or remote")
	register.Flags().BoolVar(&reg.Overwrite, "overwrite", false, "replace an existing item")
	register.Flags().BoolVar(&reg.Constant, "constant", false, "reject later writes")
	register.Flags().Int64Var(&reg.Timeout, "timeout", 0, "seconds until the item expires, 0 for never")
	register.Flags().BoolVar(&asString, "string", false, "send VALUE as a string even if it parses as JSON")

	var def string
	get := &cobra.Command{
		Use:   "get NAME",
		Short: "Print an item value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if cmd.Flags().Changed("default") {
				query.Set("default", def)
			}
			var out api.ValueResponse
			if err := newClient(cmd).do(cmd, http.MethodGet, itemPath(args[0]), query, nil, &out); err != nil {
				return err
			}
			printValue(cmd, out.Value)
			return nil
		},
	}
	get.Flags().StringVar(&def, "default", "", "value printed when the item is absent or empty")

	var setString bool
	set := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Write an item value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := api.ValueRequest{Value: parseValue(args[1], setString)}
			return newClient(cmd).do(cmd, http.MethodPut, itemPath(args[0]), nil, body, nil)
		},
	}
	set.Flags().BoolVar(&setString, "string", false, "send VALUE as a string even if it parses as JSON")

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(cmd).do(cmd, http.MethodDelete, itemPath(args[0]), nil, nil, nil)
		},
	}

	has := &cobra.Command{
		Use:   "has NAME",
		Short: "Print whether an item exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out api.ExistsResponse
			if err := newClient(cmd).do(cmd, http.MethodGet, itemPath(args[0])+"/exists", nil, nil, &out); err != nil {
				return err
			}
			printValue(cmd, out.Exists)
			return nil
		},
	}

	cmd.AddCommand(register, get, set, del, has)
	return cmd
}

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Read and write the server's environment namespace",
	}
	addServerFlag(cmd)

	var def string
	get := &cobra.Command{
		Use:   "get NAME",
		Short: "Print an environment variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if cmd.Flags().Changed("default") {
				query.Set("default", def)
			}
			var out api.ValueResponse
			if err := newClient(cmd).do(cmd, http.MethodGet, envPath(args[0]), query, nil, &out); err != nil {
				return err
			}
			printValue(cmd, out.Value)
			return nil
		},
	}
	get.Flags().StringVar(&def, "default", "", "value printed when the variable is unset")

	set := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Set an environment variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(cmd).do(cmd, http.MethodPut, envPath(args[0]), nil, api.ValueRequest{Value: args[1]}, nil)
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Unset an environment variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(cmd).do(cmd, http.MethodDelete, envPath(args[0]), nil, nil, nil)
		},
	}

	cmd.AddCommand(get, set, del)
	return cmd
}
