package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/adagent/pkg/builder"
	"github.com/ajitpratap0/adagent/pkg/driver"
	"github.com/ajitpratap0/adagent/pkg/json"
	"github.com/ajitpratap0/adagent/pkg/store"
)

func buildCommand(v *viper.Viper) *cobra.Command {
	var baseURL, endpoint string
	var headers map[string]string
	var attempts int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "build <source>",
		Short: "Probe an API and build a driver for it",
		Long: `Probe an API and build a driver for it. Without --base-url the API is
looked up in the catalog of known sources.

Example:
  adagent build acme --base-url http://localhost:9000 --endpoint /api/campaigns
  adagent build seznam`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, func(a *app) error {
				req := builder.Request{
					SourceName:  args[0],
					BaseURL:     baseURL,
					Endpoint:    endpoint,
					Headers:     headers,
					MaxAttempts: attempts,
				}
				if req.BaseURL == "" {
					api, ok := a.builder.Catalog().Lookup(req.SourceName)
					if !ok {
						return fmt.Errorf("unknown source %q: pass --base-url", req.SourceName)
					}
					req.BaseURL, req.Endpoint = api.BaseURL, api.Endpoint
					if len(req.Headers) == 0 {
						req.Headers = api.Headers
					}
				}

				outcome, err := a.builder.BuildDriver(cmd.Context(), req)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(outcome)
				}

				for _, line := range outcome.Logs {
					fmt.Println("  " + line)
				}
				for _, at := range outcome.Attempts {
					status := "ok"
					if at.Failed() {
						status = at.Result.ErrorText
					}
					fmt.Printf("attempt %d [%s]: %s\n", at.Number, at.Pattern, status)
				}
				if !outcome.Success {
					return fmt.Errorf("build failed after %d attempts: %s", len(outcome.Attempts), outcome.FinalError)
				}
				fmt.Printf("driver written to %s (%s)\n", outcome.DriverPath, outcome.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Endpoint path to probe")
	cmd.Flags().StringToStringVarP(&headers, "header", "H", nil, "Request header as name=value (repeatable)")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Override the configured attempt budget")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the build outcome as JSON")
	return cmd
}

func ensureCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure <source>...",
		Short: "Build drivers for known sources that do not have one yet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, func(a *app) error {
				ready, results := a.builder.EnsureDrivers(cmd.Context(), args)
				for _, r := range results {
					state := "missing"
					switch {
					case r.Ready && r.Built:
						state = "built"
					case r.Ready:
						state = "exists"
					case r.Built:
						state = "failed: " + r.Outcome.FinalError
					}
					fmt.Printf("%-12s %s\n", r.Source, state)
				}
				for _, name := range args {
					if !ready[name] {
						return fmt.Errorf("not all drivers are available")
					}
				}
				return nil
			})
		},
	}
}

func existsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <source>",
		Short: "Report whether a driver artifact exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, func(a *app) error {
				fmt.Println(a.builder.DriverExists(args[0]))
				return nil
			})
		},
	}
}

func extractCommand(v *viper.Viper) *cobra.Command {
	var params map[string]string
	var limit int

	cmd := &cobra.Command{
		Use:   "extract <source>",
		Short: "Run a driver and merge its records into the table store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, func(a *app) error {
				st, err := store.Open(a.cfg.Store.Path, a.log)
				if err != nil {
					return err
				}
				defer st.Close()

				res, err := a.builder.Extract(cmd.Context(), args[0], st, params, limit)
				if err != nil {
					return err
				}
				fmt.Printf("merged %d records from %d pages into %s\n", res.Records, res.Pages, res.Table)
				return nil
			})
		},
	}

	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "Driver parameter as name=value (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many records")
	return cmd
}

func sourcesCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List known sources and whether they have a driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, func(a *app) error {
				cat := a.builder.Catalog()
				for _, name := range cat.Names() {
					api, _ := cat.Lookup(name)
					mark := " "
					if a.builder.DriverExists(name) {
						mark = "*"
					}
					fmt.Printf("%s %-10s %s%s\n", mark, name, api.BaseURL, api.Endpoint)
				}
				return nil
			})
		},
	}
}

func inspectCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <source>",
		Short: "Show the extraction plan of a built driver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, func(a *app) error {
				ex, ok := a.builder.LoadDriver(args[0])
				if !ok {
					return fmt.Errorf("no usable driver for %s at %s", args[0], a.builder.DriverPath(args[0]))
				}
				plan := ex.Plan()
				fmt.Printf("entry point: %s\n", driver.EntryPoint(args[0]))
				fmt.Printf("url:         %s%s\n", plan.BaseURL, plan.Endpoint)
				fmt.Printf("primary key: %s\n", plan.PrimaryKey)
				fmt.Printf("plan:        %s\n", plan.Summary())

				params := ex.Params()
				names := make([]string, 0, len(params))
				for n := range params {
					names = append(names, n)
				}
				sort.Strings(names)
				if len(names) > 0 {
					fmt.Printf("parameters:  %s\n", strings.Join(names, ", "))
				}
				return nil
			})
		},
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
