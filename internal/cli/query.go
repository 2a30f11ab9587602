package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cosmosgremlin "github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin"
	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/config"
	"github.com/saulfrancisco-ruizacevedo/go-cosmosgremlin/gremlinws"
)

// connect opens the transport selected by cfg. The returned func releases
// it. Tests replace connect to avoid a real database.
var connect = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cosmosgremlin.Runner, func(), error) {
	switch cfg.Backend {
	case config.BackendNeo4j:
		exec, err := cosmosgremlin.NewNeo4jExecutor(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := exec.Verify(ctx); err != nil {
			exec.Close(context.Background())
			return nil, nil, fmt.Errorf("neo4j is not reachable: %w", err)
		}
		return cosmosgremlin.NewNeo4jTransport(exec), func() { exec.Close(context.Background()) }, nil
	default:
		if path := cfg.Gremlin.ResourcePath(); path != "" {
			logger.Debug("using cosmos db graph", zap.String("resource", path))
		}
		conn, err := gremlinws.Dial(ctx, cfg.Gremlin.Endpoint,
			gremlinws.WithLogger(logger),
			gremlinws.WithMimeType(cfg.Gremlin.MimeType),
		)
		if err != nil {
			return nil, nil, err
		}
		return conn, func() { conn.Close() }, nil
	}
}

const (
	cardinalityAll             = "all"
	cardinalityFirst           = "first"
	cardinalityFirstOrDefault  = "first-or-default"
	cardinalitySingle          = "single"
	cardinalitySingleOrDefault = "single-or-default"
)

func newQueryCmd() *cobra.Command {
	var (
		cardinality string
		asGraph     bool
		bindings    map[string]string
	)

	cmd := &cobra.Command{
		Use:   "query <query text>",
		Short: "Submit a query and print the results as JSON",
		Example: `  cosmosq query "g.V().hasLabel('person').has('name', name)" --bind name=Ann
  cosmosq query "g.V('v1')" --cardinality single
  cosmosq query "g.V().union(identity(), outE())" --graph`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			logger := loggerFromContext(ctx)

			bound, err := parseBindings(bindings)
			if err != nil {
				return err
			}
			if cfg.Backend == config.BackendGremlin && cfg.Gremlin.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Gremlin.Timeout)
				defer cancel()
			}

			runner, release, err := connect(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer release()

			client := cosmosgremlin.NewClient(runner, cosmosgremlin.WithLogger(logger))
			t := cosmosgremlin.Gremlin[any, any](args[0], bound)
			site := cosmosgremlin.WithCallSite("cosmosq query")

			var out any
			switch {
			case asGraph:
				out, err = cosmosgremlin.QueryGraph(ctx, client, t, site)
			case cardinality == cardinalityAll:
				out, err = cosmosgremlin.QueryTraversal(ctx, client, t, site)
			case cardinality == cardinalityFirst:
				out, err = cosmosgremlin.QueryTraversalFirst(ctx, client, t, site)
			case cardinality == cardinalityFirstOrDefault:
				out, err = cosmosgremlin.QueryTraversalFirstOrDefault(ctx, client, t, site)
			case cardinality == cardinalitySingle:
				out, err = cosmosgremlin.QueryTraversalSingle(ctx, client, t, site)
			case cardinality == cardinalitySingleOrDefault:
				out, err = cosmosgremlin.QueryTraversalSingleOrDefault(ctx, client, t, site)
			default:
				return fmt.Errorf("unknown cardinality %q", cardinality)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&cardinality, "cardinality", cardinalityAll,
		"result cardinality: all, first, first-or-default, single or single-or-default")
	cmd.Flags().BoolVar(&asGraph, "graph", false, "collect vertices and edges into a de-duplicated graph")
	cmd.Flags().StringToStringVar(&bindings, "bind", nil, "query parameter binding as name=value; values are parsed as JSON when possible")
	return cmd
}

// parseBindings decodes each value as JSON, falling back to the raw string,
// so that --bind age=30 binds a number and --bind name=Ann a string.
func parseBindings(raw map[string]string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(raw))
	for name, value := range raw {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("binding name must not be empty")
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			decoded = value
		}
		out[name] = decoded
	}
	return out, nil
}
